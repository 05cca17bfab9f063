package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/xaenox/edu-assistant/internal/reasoner"
	"github.com/xaenox/edu-assistant/internal/server"
	"github.com/xaenox/edu-assistant/internal/storage"
	"github.com/xaenox/edu-assistant/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize reasoner
	var r reasoner.Reasoner
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OpenAI API key is not set, using offline reasoner")
		r = reasoner.NewOffline()
	} else {
		r = reasoner.NewOpenAI(reasoner.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		}, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx, server.StartOpts{
			Addr:     cfg.Server.Addr,
			Storage:  store,
			Reasoner: r,
			Logger:   logger,
		})
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
	logger.Info("Server stopped")
}
