package ingest

import (
	"strings"
	"testing"
)

const sampleCSV = `"Datum";"Naam / Omschrijving";"Rekening";"Tegenrekening";"Code";"Af Bij";"Bedrag (EUR)";"Mutatiesoort";"Mededelingen"
"20260302";"ALBERT HEIJN 1234";"NL01INGB0001234567";"";"BA";"Af";"42,50";"Betaalautomaat";"Betaalpas transactie"
"20260301";"Werkgever B.V.";"NL01INGB0001234567";"NL02RABO0009876543";"OV";"Bij";"2.850,00";"Overschrijving";"Salaris maart"
`

func TestParseING(t *testing.T) {
	records, err := ParseING(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	ah := records[0]
	if ah.Date != "2026-03-02" {
		t.Errorf("date = %s, want 2026-03-02", ah.Date)
	}
	if ah.Name != "ALBERT HEIJN 1234" {
		t.Errorf("name = %s", ah.Name)
	}
	if ah.Amount != -42.50 {
		t.Errorf("amount = %v, want -42.50 (Af rows are negative)", ah.Amount)
	}

	salary := records[1]
	if salary.Amount != 2850.00 {
		t.Errorf("amount = %v, want 2850.00 with thousands separator handled", salary.Amount)
	}
	if salary.CounterAccount != "NL02RABO0009876543" {
		t.Errorf("counter account = %s", salary.CounterAccount)
	}
}

func TestParseING_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{
			name: "unknown direction",
			csv: `"Datum";"Naam / Omschrijving";"Rekening";"Tegenrekening";"Code";"Af Bij";"Bedrag (EUR)";"Mutatiesoort";"Mededelingen"
"20260302";"X";"NL01";"";"BA";"Onbekend";"42,50";"Betaalautomaat";""
`,
		},
		{
			name: "invalid date",
			csv: `"Datum";"Naam / Omschrijving";"Rekening";"Tegenrekening";"Code";"Af Bij";"Bedrag (EUR)";"Mutatiesoort";"Mededelingen"
"02-03-2026";"X";"NL01";"";"BA";"Af";"42,50";"Betaalautomaat";""
`,
		},
		{
			name: "invalid amount",
			csv: `"Datum";"Naam / Omschrijving";"Rekening";"Tegenrekening";"Code";"Af Bij";"Bedrag (EUR)";"Mutatiesoort";"Mededelingen"
"20260302";"X";"NL01";"";"BA";"Af";"veel";"Betaalautomaat";""
`,
		},
		{
			name: "too few columns",
			csv: `"Datum";"Naam / Omschrijving"
"20260302";"X"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseING(strings.NewReader(tt.csv)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRecordTransaction(t *testing.T) {
	rec := Record{
		Date:   "2026-03-02",
		Name:   "ALBERT HEIJN 1234",
		Amount: -42.50,
	}
	tx := rec.Transaction()
	if tx.CounterpartyNormalized != "albert heijn" {
		t.Fatalf("normalized = %q, want %q", tx.CounterpartyNormalized, "albert heijn")
	}
	if !tx.IsExpense() {
		t.Fatal("expected expense")
	}
	if tx.IsCategorized() {
		t.Fatal("imported transactions start uncategorized")
	}
}
