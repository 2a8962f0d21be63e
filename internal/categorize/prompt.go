package categorize

import (
	"fmt"
	"strings"

	"huishoudboekje/internal/core"
)

// buildPrompt assembles the Dutch categorization prompt: the full taxonomy,
// the transaction details, and up to similarLimit prior categorized
// transactions as exemplars the model is told to follow.
func buildPrompt(taxonomy core.Taxonomy, in Input, similar []core.Transaction) string {
	var b strings.Builder

	b.WriteString("Categoriseer de volgende Nederlandse banktransactie:\n\n")
	fmt.Fprintf(&b, "Tegenpartij: %s\n", in.Counterparty)
	fmt.Fprintf(&b, "Bedrag: €%.2f\n", in.Amount)
	if in.Description != "" {
		fmt.Fprintf(&b, "Omschrijving: %s\n", in.Description)
	}
	if in.UserContext != "" {
		fmt.Fprintf(&b, "\nExtra context van gebruiker: %s\n", in.UserContext)
	}

	b.WriteString("\nBeschikbare categorieën:\n")
	for _, c := range taxonomy.Categories() {
		fmt.Fprintf(&b, "- %s: %s\n  Subcategorieën: %s\n", c.Key, c.Name, strings.Join(c.Subcategories, ", "))
	}

	exemplars := exemplarLines(similar)
	if len(exemplars) > 0 {
		b.WriteString("\nVoorbeelden van vergelijkbare transacties die je al hebt gecategoriseerd:\n")
		for _, line := range exemplars {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\nLET OP: als er voorbeelden van vergelijkbare transacties hierboven staan, " +
			"gebruik dan DEZELFDE categorisatie. De gebruiker heeft deze al gecategoriseerd en " +
			"weet beter dan jij wat de transactie inhoudt.\n")
	}

	b.WriteString(`
Geef je antwoord in het volgende JSON formaat:
{
  "category": "category_key",
  "subcategory": "Subcategorie naam",
  "confidence": 0.95,
  "reasoning": "Korte uitleg waarom deze categorisatie past"
}

Belangrijke regels:
- Gebruik alleen de category_key zoals hierboven gedefinieerd
- Gebruik alleen subcategorieën die bij die categorie horen
- Confidence moet tussen 0 en 1 zijn (1 = zeer zeker)
- Geef een Nederlandse uitleg in reasoning
- Als het een interne overboeking lijkt, gebruik dan category "interne_transacties"
- Antwoord met uitsluitend geldige JSON, zonder Markdown of codeblokken
`)

	return b.String()
}

func exemplarLines(similar []core.Transaction) []string {
	var lines []string
	for _, t := range similar {
		if !t.IsCategorized() {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s > %s", t.Counterparty, t.CategoryName, t.SubcategoryName))
	}
	return lines
}
