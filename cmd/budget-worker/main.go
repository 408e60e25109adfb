package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/config"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo})
	log.SetDefault(logger)

	logger.Info("starting budget-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize sqlite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized")
		}
	} else {
		logger.Info("AMQP disabled, budget completions will not be published")
	}

	watcher := services.NewBudgetWatcher(repo, publisher, logger, cfg.BaseCurrency)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("budget watcher configured",
		"interval", cfg.BudgetCheckInterval, "base_currency", cfg.BaseCurrency)

	// Completions only fire on a period's closing day; the persisted period
	// key set makes running this as often as we like safe.
	if err := watcher.Evaluate(ctx, time.Now()); err != nil {
		logger.Error("initial evaluation failed", log.FieldError, err)
	}

	ticker := time.NewTicker(cfg.BudgetCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("budget-worker shutdown complete")
			return
		case now := <-ticker.C:
			if err := watcher.Evaluate(ctx, now); err != nil {
				logger.Error("periodic evaluation failed", log.FieldError, err)
			}
		}
	}
}
