// Package server is the companion REST backend: conversation persistence
// and the ask/quiz/task inference endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/edu-assistant/internal/reasoner"
	"github.com/xaenox/edu-assistant/internal/storage"
	"go.uber.org/zap"
)

// StartOpts holds configuration for the backend server.
type StartOpts struct {
	Addr     string
	Storage  storage.Storage
	Reasoner reasoner.Reasoner
	Logger   *zap.Logger
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Storage == nil {
		return errors.New("server: storage is required")
	}
	if opts.Reasoner == nil {
		return errors.New("server: reasoner is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: NewRouter(opts.Storage, opts.Reasoner, opts.Logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			opts.Logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	opts.Logger.Info("Server listening", zap.String("addr", opts.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(store storage.Storage, r reasoner.Reasoner, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	h := &handlers{
		store:    store,
		reasoner: r,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	registerRoutes(router, h)
	return router
}

func registerRoutes(router *gin.Engine, h *handlers) {
	router.POST("/ask", h.ask)
	router.POST("/quiz", h.quiz)
	router.POST("/task", h.task)

	router.POST("/conversations", h.createConversation)
	router.GET("/conversations/:id", h.getConversation)
	router.DELETE("/conversations/:id", h.deleteConversation)
	router.GET("/conversations/:id/messages", h.getMessages)
	router.PUT("/conversations/:id/title", h.updateTitle)
	router.GET("/conversations/:id/export", h.exportConversation)
	router.GET("/users/:user_id/conversations", h.listConversations)

	router.POST("/messages", h.addMessage)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("Request failed", fields...)
			return
		}
		logger.Debug("Request handled", fields...)
	}
}
