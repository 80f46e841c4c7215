package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finsync/internal/amqp"
	"finsync/internal/config"
	"finsync/internal/services"
	"finsync/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Materialized occurrences flow through the transaction service so the
	// export worker sees created events for them too.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
		} else {
			events = client
			defer client.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, materialized transactions will not be published")
	}

	txService := services.NewTransactionService(repo, events)
	processor := services.NewRecurringProcessor(repo, txService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()

	// Run initial processing on startup
	runProcessor(ctx, processor, time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runProcessor(ctx, processor, now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down recurring-worker...")
	cancel()
	logger.Info("Recurring-worker shutdown complete")
}

func runProcessor(ctx context.Context, processor *services.RecurringProcessor, now time.Time) {
	result, err := processor.ProcessDue(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Recurring processing failed", "error", err)
		return
	}
	for _, procErr := range result.Errors {
		slog.ErrorContext(ctx, "Template processing failed", "error", procErr)
	}
	slog.InfoContext(ctx, "Recurring processing complete",
		"transactions_created", result.Processed,
		"failed_templates", len(result.Errors))
}
