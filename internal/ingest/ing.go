// Package ingest parses ING bank CSV exports into transactions.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"huishoudboekje/internal/core"
)

// ING CSV column layout. The export is semicolon separated with a header row:
// Datum;Naam / Omschrijving;Rekening;Tegenrekening;Code;Af Bij;Bedrag (EUR);Mutatiesoort;Mededelingen
const (
	colDate = iota
	colName
	colAccount
	colCounterAccount
	colCode
	colDirection
	colAmount
	colKind
	colDescription
	columnCount
)

// Record is one parsed CSV row. Amount is signed: "Af" (debit) rows are
// negative, "Bij" (credit) rows positive.
type Record struct {
	Date           string // YYYY-MM-DD
	Name           string
	Account        string // IBAN of the own account
	CounterAccount string
	Amount         float64
	Kind           string
	Description    string
}

// Transaction converts the record to the domain type.
func (r Record) Transaction() core.Transaction {
	return core.Transaction{
		Date:                   r.Date,
		Description:            r.Description,
		Counterparty:           r.Name,
		CounterpartyNormalized: core.NormalizeCounterparty(r.Name),
		Amount:                 r.Amount,
	}
}

// ParseING reads a full ING export. A malformed row aborts the parse with
// its line number; partial imports would be harder to reconcile than a
// corrected re-run.
func ParseING(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	// Skip the header row when present.
	start := 0
	if looksLikeHeader(rows[0]) {
		start = 1
	}

	var records []Record
	for i, row := range rows[start:] {
		line := start + i + 1
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func looksLikeHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "Datum")
}

func parseRow(row []string) (Record, error) {
	if len(row) < columnCount {
		return Record{}, fmt.Errorf("expected %d columns, got %d", columnCount, len(row))
	}

	date, err := parseDate(strings.TrimSpace(row[colDate]))
	if err != nil {
		return Record{}, err
	}

	amount, err := parseAmount(strings.TrimSpace(row[colAmount]))
	if err != nil {
		return Record{}, err
	}

	switch strings.TrimSpace(row[colDirection]) {
	case "Af":
		amount = -amount
	case "Bij":
		// credit, keep positive
	default:
		return Record{}, fmt.Errorf("unknown direction %q, expected Af or Bij", row[colDirection])
	}

	return Record{
		Date:           date,
		Name:           strings.TrimSpace(row[colName]),
		Account:        strings.TrimSpace(row[colAccount]),
		CounterAccount: strings.TrimSpace(row[colCounterAccount]),
		Amount:         amount,
		Kind:           strings.TrimSpace(row[colKind]),
		Description:    strings.TrimSpace(row[colDescription]),
	}, nil
}

// parseDate accepts the compact ING format (20260301) and ISO (2026-03-01).
func parseDate(s string) (string, error) {
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("invalid date %q", s)
}

// parseAmount handles the Dutch decimal comma, with or without thousands
// separators: "1.234,56" and "1234,56" both parse to 1234.56.
func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("amount must be unsigned, direction comes from the Af/Bij column: %q", s)
	}
	return v, nil
}
