package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"huishoudboekje/internal/ai"
	"huishoudboekje/internal/amqp"
	"huishoudboekje/internal/categorize"
	"huishoudboekje/internal/config"
	"huishoudboekje/internal/core"
	"huishoudboekje/internal/export"
	"huishoudboekje/internal/services"
	"huishoudboekje/internal/storage"
	"huishoudboekje/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting huishoudboekje-worker")

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

	// The service applies category assignments with full validation; the
	// worker never publishes jobs itself, so it runs without a queue.
	svc := services.NewTransactionService(repo, engine, nil, services.DefaultInsightsOptions())

	// Initialize Google Sheets exporter (optional)
	var exporter worker.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		sheets, err := export.NewFromEnv(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = sheets
		logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.New(repo, engine, svc, exporter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.Consume(ctx, amqp.Handlers{
			ReanalyzeMonth: w.HandleReanalyzeMonth,
			ExportMonth:    w.HandleExportMonth,
		})
	})
	g.Go(func() error {
		return w.RunPurgeLoop(ctx, cfg.PurgeInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
