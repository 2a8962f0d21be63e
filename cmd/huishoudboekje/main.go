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

	"huishoudboekje/internal/ai"
	"huishoudboekje/internal/amqp"
	"huishoudboekje/internal/categorize"
	"huishoudboekje/internal/config"
	"huishoudboekje/internal/core"
	apphttp "huishoudboekje/internal/http"
	"huishoudboekje/internal/services"
	"huishoudboekje/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting huishoudboekje server")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, cfg.CacheTTLDays)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	taxonomy := core.DefaultTaxonomy()
	if err := repo.SeedTaxonomy(context.Background(), taxonomy); err != nil {
		logger.Error("Failed to seed taxonomy", "error", err)
		os.Exit(1)
	}

	aiClient := ai.NewClient(cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout)
	if !aiClient.Configured() {
		logger.Warn("AI categorization disabled - no GEMINI_API_KEY provided")
	}
	engine := categorize.NewEngine(repo, repo, aiClient, taxonomy, cfg.SimilarLimit)

	// The AMQP connection is optional: without it the API still serves reads
	// and manual categorization, and reanalyze/export requests return 503.
	var queue services.JobQueue
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, background jobs disabled", "error", err)
	} else {
		defer amqpClient.Close()
		queue = amqpClient
	}

	svc := services.NewTransactionService(repo, engine, queue, services.DefaultInsightsOptions())

	srv := apphttp.NewServer(":"+cfg.Port, svc, taxonomy, repo)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
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

	logger.Info("Starting huishoudboekje server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
