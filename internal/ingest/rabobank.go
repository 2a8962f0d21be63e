package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Rabobank CSV column layout. The export is comma separated with a header
// row; the amount column carries its own sign ("+42,50" / "-42,50").
const (
	rboColIBAN = iota
	rboColCurrency
	rboColBIC
	rboColSequence
	rboColDate
	rboColValueDate
	rboColAmount
	rboColBalance
	rboColCounterIBAN
	rboColCounterName
	rboMinColumns
)

const rboColDescription = 19 // Omschrijving-1, not present in older exports

// ParseRabobank reads a full Rabobank export. Like ParseING, a malformed row
// aborts the parse with its line number.
func ParseRabobank(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	start := 0
	if looksLikeRabobankHeader(rows[0]) {
		start = 1
	}

	var records []Record
	for i, row := range rows[start:] {
		line := start + i + 1
		rec, err := parseRabobankRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func looksLikeRabobankHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "IBAN/BBAN")
}

func parseRabobankRow(row []string) (Record, error) {
	if len(row) < rboMinColumns {
		return Record{}, fmt.Errorf("expected at least %d columns, got %d", rboMinColumns, len(row))
	}

	date, err := parseDate(strings.TrimSpace(row[rboColDate]))
	if err != nil {
		return Record{}, err
	}

	amount, err := parseSignedAmount(strings.TrimSpace(row[rboColAmount]))
	if err != nil {
		return Record{}, err
	}

	name := strings.TrimSpace(row[rboColCounterName])
	if name == "" {
		name = strings.TrimSpace(row[rboColCounterIBAN])
	}

	var description string
	if len(row) > rboColDescription {
		description = strings.TrimSpace(row[rboColDescription])
	}

	return Record{
		Date:           date,
		Name:           name,
		Account:        strings.TrimSpace(row[rboColIBAN]),
		CounterAccount: strings.TrimSpace(row[rboColCounterIBAN]),
		Amount:         amount,
		Kind:           strings.TrimSpace(row[rboColBIC]),
		Description:    description,
	}, nil
}

// parseSignedAmount handles the Rabobank amount format: comma decimal with
// an explicit sign and no thousands separators.
func parseSignedAmount(s string) (float64, error) {
	s = strings.TrimPrefix(s, "+")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
