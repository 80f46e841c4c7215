package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finsync/internal/amqp"
	"finsync/internal/config"
	"finsync/internal/dashboard"
	finsynchttp "finsync/internal/http"
	"finsync/internal/services"
	"finsync/internal/storage"
)

// dataBackend is the full store surface the API server needs, satisfied by
// both the SQLite repository and the in-memory store.
type dataBackend interface {
	finsynchttp.DataStore
	services.TransactionStore
	services.TemplateStore
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting finsync")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var store dataBackend
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		store = repo
		logger.Info("Using SQLite backend", "path", cfg.SQLiteDBPath)
	case "memory":
		store = storage.NewMemoryStore()
		logger.Info("Using in-memory backend; data is lost on exit")
	}

	// AMQP is optional: without a broker the app runs local-only and the
	// export worker sees no events.
	var amqpClient *amqp.Client
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
		} else {
			amqpClient = client
			events = client
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, transaction events will not be published")
	}

	txService := services.NewTransactionService(store, events)
	processor := services.NewRecurringProcessor(store, txService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	viewModel := dashboard.NewPeriodViewModel(store)
	viewModel.Load(ctx)

	srv := finsynchttp.NewServer(":"+cfg.Port, store, txService, processor, viewModel)

	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down finsync...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	viewModel.Wait()
	logger.Info("Finsync shutdown complete")
}
