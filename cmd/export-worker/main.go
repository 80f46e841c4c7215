package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finsync/internal/amqp"
	"finsync/internal/config"
	"finsync/internal/export"
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

	logger.Info("Starting export-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the export worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter, err := export.NewSheetsExporter(ctx)
	if err != nil {
		logger.Error("Failed to initialize sheets exporter", "error", err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	logger.Info("Export-worker ready",
		"queue", cfg.AMQPQueue,
		"spreadsheet", cfg.GoogleSpreadsheetID)

	go func() {
		err := amqpClient.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
			// Deleted transactions stay in the sheet; the export is an
			// append-only audit log.
			if msg.Event != amqp.EventTransactionCreated {
				slog.InfoContext(ctx, "Skipping event", "event", msg.Event, "transaction_id", msg.TransactionID)
				return nil
			}

			tx, err := repo.GetTransaction(ctx, msg.TransactionID)
			if err != nil {
				// Row gone by the time the event arrives, nothing to export.
				slog.WarnContext(ctx, "Transaction not found for export, skipping",
					"transaction_id", msg.TransactionID, "error", err)
				return nil
			}

			return exporter.Append(ctx, tx)
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("Event consumption stopped", "error", err)
			cancel()
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

	logger.Info("Shutting down export-worker...")
	cancel()
	logger.Info("Export-worker shutdown complete")
}
