package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"dcledger/internal/amqp"
	"dcledger/internal/config"
	"dcledger/internal/export"
	"dcledger/internal/export/xlsx"
	applog "dcledger/internal/log"
	"dcledger/internal/services"
	"dcledger/internal/storage"
	"dcledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.ParseLevel(cfg.LogLevel), applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting dcledger-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var archives export.Store
	archives, err = xlsx.New(cfg.ExportDir)
	if err != nil {
		logger.Error("Failed to initialize archive directory", "error", err, "dir", cfg.ExportDir)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	svc := services.NewMovementService(repo, archives, nil)
	exportWorker := worker.NewExportWorker(svc, repo, cfg.ExportBatchSize, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	logger.Info("Consuming export messages",
		"queue", cfg.AMQPQueue,
		"sweep_interval", cfg.SweepInterval.String(),
		"batch_size", cfg.ExportBatchSize)

	if err := exportWorker.Run(ctx, amqpClient, cfg.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
