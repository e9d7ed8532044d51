package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dcledger/internal/amqp"
	"dcledger/internal/config"
	"dcledger/internal/export"
	"dcledger/internal/export/memory"
	"dcledger/internal/export/xlsx"
	apphttp "dcledger/internal/http"
	applog "dcledger/internal/log"
	"dcledger/internal/services"
	"dcledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.ParseLevel(cfg.LogLevel), applog.ComponentApp)
	applog.SetDefault(logger)

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

	var archives export.Store
	switch cfg.ExportBackend {
	case "memory":
		archives = memory.New()
		logger.Info("Initialized in-memory archive backend")
	default:
		archives, err = xlsx.New(cfg.ExportDir)
		if err != nil {
			logger.Error("Failed to initialize archive directory", "error", err, "dir", cfg.ExportDir)
			os.Exit(1)
		}
		logger.Info("Initialized xlsx archive backend", "dir", cfg.ExportDir)
	}

	// With an AMQP URL exports go through the worker queue; without one
	// every movement is projected inline.
	var queue services.ExportQueue
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		queue = amqpClient
		logger.Info("Queued export mode enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Direct export mode - no AMQP URL provided")
	}

	svc := services.NewMovementService(repo, archives, queue)
	srv := apphttp.NewServer(":"+cfg.Port, svc, repo, archives)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting dcledger server", "port", cfg.Port, "backend", cfg.ExportBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
