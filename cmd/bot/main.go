package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/xaenox/edu-assistant/internal/bot"
	"github.com/xaenox/edu-assistant/internal/gateway"
	"github.com/xaenox/edu-assistant/internal/profile"
	"github.com/xaenox/edu-assistant/internal/session"
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
	if cfg.Telegram.Token == "" {
		logger.Fatal("Telegram token is not set")
	}

	// Per-chat client state
	profiles, err := profile.Open(cfg.Profile.Driver, cfg.Profile.Path)
	if err != nil {
		logger.Fatal("Failed to open profile store", zap.Error(err), zap.String("driver", cfg.Profile.Driver))
	}
	defer profiles.Close()

	backend := gateway.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, logger)
	opts := session.Options{
		AskK:    cfg.Backend.AskK,
		QuizNum: cfg.Backend.QuizNum,
		Texts: session.Texts{
			Fallback:    cfg.Texts.Fallback,
			QuizFormat:  cfg.Texts.QuizFormat,
			TaskFormat:  cfg.Texts.TaskFormat,
			TitleLayout: cfg.Texts.TitleLayout,
		},
	}

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, backend, profiles, opts, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Start(ctx) })

	// Start the bot
	if err := g.Wait(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Bot stopped")
}
