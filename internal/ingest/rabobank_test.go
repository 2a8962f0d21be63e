package ingest

import (
	"strings"
	"testing"
)

const sampleRabobankCSV = `"IBAN/BBAN","Munt","BIC","Volgnr","Datum","Rentedatum","Bedrag","Saldo na trn","Tegenrekening IBAN/BBAN","Naam tegenpartij","Naam uiteindelijke partij","Naam initierende partij","BIC tegenpartij","Code","Batch ID","Transactiereferentie","Machtigingskenmerk","Incassant ID","Betalingskenmerk","Omschrijving-1","Omschrijving-2","Omschrijving-3"
"NL11RABO0101010101","EUR","RABONL2U","000000000000001","2026-03-02","2026-03-02","-12,95","+987,65","NL69INGB0123456789","Jumbo Supermarkten","","","INGBNL2A","bg","","","","","","Betaling kassa","",""
"NL11RABO0101010101","EUR","RABONL2U","000000000000002","2026-03-01","2026-03-01","+1500,00","+1000,60","NL02RABO0009876543","Werkgever B.V.","","","RABONL2U","cb","","","","","","Salaris","",""
`

func TestParseRabobank(t *testing.T) {
	records, err := ParseRabobank(strings.NewReader(sampleRabobankCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	jumbo := records[0]
	if jumbo.Date != "2026-03-02" {
		t.Errorf("date = %s, want 2026-03-02", jumbo.Date)
	}
	if jumbo.Name != "Jumbo Supermarkten" {
		t.Errorf("name = %s", jumbo.Name)
	}
	if jumbo.Amount != -12.95 {
		t.Errorf("amount = %v, want -12.95 (sign comes from the amount itself)", jumbo.Amount)
	}
	if jumbo.Description != "Betaling kassa" {
		t.Errorf("description = %s", jumbo.Description)
	}

	salary := records[1]
	if salary.Amount != 1500.00 {
		t.Errorf("amount = %v, want 1500.00", salary.Amount)
	}
	if salary.CounterAccount != "NL02RABO0009876543" {
		t.Errorf("counter account = %s", salary.CounterAccount)
	}
}

func TestParseRabobank_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{
			name: "invalid amount",
			csv: `"IBAN/BBAN","Munt","BIC","Volgnr","Datum","Rentedatum","Bedrag","Saldo na trn","Tegenrekening IBAN/BBAN","Naam tegenpartij"
"NL11RABO0101010101","EUR","RABONL2U","1","2026-03-02","2026-03-02","twaalf","+987,65","NL69INGB0123456789","Jumbo"
`,
		},
		{
			name: "invalid date",
			csv: `"IBAN/BBAN","Munt","BIC","Volgnr","Datum","Rentedatum","Bedrag","Saldo na trn","Tegenrekening IBAN/BBAN","Naam tegenpartij"
"NL11RABO0101010101","EUR","RABONL2U","1","02-03-2026","2026-03-02","-12,95","+987,65","NL69INGB0123456789","Jumbo"
`,
		},
		{
			name: "too few columns",
			csv: `"IBAN/BBAN","Munt"
"NL11RABO0101010101","EUR"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRabobank(strings.NewReader(tt.csv)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseRabobank_FallsBackToCounterIBAN(t *testing.T) {
	csv := `"NL11RABO0101010101","EUR","RABONL2U","1","2026-03-02","2026-03-02","-50,00","+987,65","NL69INGB0123456789",""
`
	records, err := ParseRabobank(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Name != "NL69INGB0123456789" {
		t.Fatalf("name = %q, want the counter IBAN when the name is empty", records[0].Name)
	}
}
