// Package export pushes transaction data to Google Sheets.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"huishoudboekje/internal/core"
	applog "huishoudboekje/internal/log"
)

// SheetsExporter appends a month's transactions to a spreadsheet tab. One
// row per transaction: date, counterparty, description, amount, category,
// subcategory, month key.
type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger
}

// NewFromEnv creates an exporter using service account credentials.
// Required: GOOGLE_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, spreadsheetID, sheetName string) (*SheetsExporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		sheetName = "Transacties"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        applog.New(applog.Config{Component: applog.ComponentExport}),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportMonth appends the transactions as rows to the configured sheet.
func (e *SheetsExporter) ExportMonth(ctx context.Context, month string, transactions []core.Transaction) error {
	if len(transactions) == 0 {
		e.logger.InfoContext(ctx, "No transactions to export", applog.FieldMonth, month)
		return nil
	}

	values := make([][]any, 0, len(transactions))
	for _, t := range transactions {
		values = append(values, transactionRow(t))
	}

	rangeRef := fmt.Sprintf("%s!A:G", e.sheetName)
	_, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rangeRef, &gsheet.ValueRange{
		Values: values,
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append rows to sheet %s: %w", e.sheetName, err)
	}

	e.logger.InfoContext(ctx, "Exported transactions to sheet",
		applog.FieldMonth, month,
		"rows", len(values),
		"sheet", e.sheetName)
	return nil
}

func transactionRow(t core.Transaction) []any {
	category := t.CategoryName
	if category == "" {
		category = "Te beoordelen"
	}
	subcategory := t.SubcategoryName
	if subcategory == "" {
		subcategory = "Onbekend"
	}
	return []any{
		t.Date,
		t.Counterparty,
		t.Description,
		t.Amount,
		category,
		subcategory,
		t.MonthKey(),
	}
}
