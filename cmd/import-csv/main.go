package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"huishoudboekje/internal/config"
	"huishoudboekje/internal/core"
	"huishoudboekje/internal/ingest"
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

	var (
		filePath    = flag.String("file", "", "path to the bank CSV export (required)")
		format      = flag.String("format", "ing", "export format: ing or rabobank")
		accountName = flag.String("account", "Betaalrekening", "account name to register transactions under")
		accountIBAN = flag.String("iban", "", "account IBAN (defaults to the IBAN in the export)")
		replace     = flag.Bool("replace", false, "delete existing transactions in the imported months first")
	)
	flag.Parse()

	if *filePath == "" {
		logger.Error("Missing required -file flag")
		flag.Usage()
		os.Exit(1)
	}

	var parse func(io.Reader) ([]ingest.Record, error)
	switch *format {
	case "ing":
		parse = ingest.ParseING
	case "rabobank":
		parse = ingest.ParseRabobank
	default:
		logger.Error("Unknown format", "format", *format)
		os.Exit(1)
	}

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

	ctx := context.Background()

	if err := repo.SeedTaxonomy(ctx, core.DefaultTaxonomy()); err != nil {
		logger.Error("Failed to seed taxonomy", "error", err)
		os.Exit(1)
	}

	f, err := os.Open(*filePath)
	if err != nil {
		logger.Error("Failed to open CSV file", "error", err, "file", *filePath)
		os.Exit(1)
	}
	defer f.Close()

	records, err := parse(f)
	if err != nil {
		logger.Error("Failed to parse CSV export", "error", err, "file", *filePath)
		os.Exit(1)
	}
	if len(records) == 0 {
		logger.Info("No transactions in export", "file", *filePath)
		return
	}

	if *replace {
		months := make(map[string]bool)
		for _, rec := range records {
			if len(rec.Date) >= 7 {
				months[rec.Date[:7]] = true
			}
		}
		for month := range months {
			deleted, err := repo.DeleteTransactionsByMonth(ctx, month)
			if err != nil {
				logger.Error("Failed to delete existing transactions", "error", err, "month", month)
				os.Exit(1)
			}
			logger.Info("Deleted existing transactions", "month", month, "deleted", deleted)
		}
	}

	iban := *accountIBAN
	if iban == "" {
		iban = records[0].Account
	}
	accountID, err := repo.GetOrCreateAccount(ctx, *accountName, iban)
	if err != nil {
		logger.Error("Failed to resolve account", "error", err, "account", *accountName)
		os.Exit(1)
	}

	imported := 0
	for _, rec := range records {
		t := rec.Transaction()
		t.AccountID = &accountID
		if err := t.Validate(); err != nil {
			logger.Error("Skipping invalid row", "error", err, "date", rec.Date, "counterparty", rec.Name)
			continue
		}
		if _, err := repo.CreateTransaction(ctx, t); err != nil {
			logger.Error("Failed to store transaction", "error", err, "date", rec.Date, "counterparty", rec.Name)
			os.Exit(1)
		}
		imported++
	}

	logger.Info("Import completed",
		"file", *filePath,
		"account", *accountName,
		"parsed", len(records),
		"imported", imported)
}
