package categorize

import (
	"strings"

	"huishoudboekje/internal/core"
)

// prefilterEntry maps a normalized counterparty fragment to a fixed
// categorization. Matches are full-confidence and never expire.
type prefilterEntry struct {
	key         string
	category    string
	subcategory string
}

// prefilterTable lists well-known Dutch counterparties. Keys are already in
// normalized form (lowercase letters and single spaces only).
var prefilterTable = []prefilterEntry{
	// Supermarkets
	{"albert heijn", "huishoudelijke_uitgaven", "Boodschappen"},
	{"ah to go", "huishoudelijke_uitgaven", "Boodschappen"},
	{"jumbo", "huishoudelijke_uitgaven", "Boodschappen"},
	{"lidl", "huishoudelijke_uitgaven", "Boodschappen"},
	{"aldi", "huishoudelijke_uitgaven", "Boodschappen"},
	{"plus retail", "huishoudelijke_uitgaven", "Boodschappen"},
	{"dirk vd broek", "huishoudelijke_uitgaven", "Boodschappen"},
	// Personal care
	{"kruidvat", "huishoudelijke_uitgaven", "Persoonlijke verzorging"},
	{"etos", "huishoudelijke_uitgaven", "Persoonlijke verzorging"},
	// Streaming & subscriptions
	{"spotify", "abonnementen_telecom", "Streamingsdiensten"},
	{"netflix", "abonnementen_telecom", "Streamingsdiensten"},
	{"disney plus", "abonnementen_telecom", "Streamingsdiensten"},
	{"videoland", "abonnementen_telecom", "Streamingsdiensten"},
	// Telecom
	{"kpn", "abonnementen_telecom", "TV Internet"},
	{"ziggo", "abonnementen_telecom", "TV Internet"},
	{"odido", "abonnementen_telecom", "Mobiele telefoon"},
	{"vodafone", "abonnementen_telecom", "Mobiele telefoon"},
	// Energy & water
	{"tibber", "energie_lokale_lasten", "Gas / Elektriciteit"},
	{"eneco", "energie_lokale_lasten", "Gas / Elektriciteit"},
	{"vattenfall", "energie_lokale_lasten", "Gas / Elektriciteit"},
	{"essent", "energie_lokale_lasten", "Gas / Elektriciteit"},
	{"greenchoice", "energie_lokale_lasten", "Gas / Elektriciteit"},
	{"vitens", "energie_lokale_lasten", "Water"},
	{"waternet", "energie_lokale_lasten", "Water"},
	// Transport
	{"ns groep", "vervoer", "Fiets, openbaar vervoer, overig"},
	{"ov chipkaart", "vervoer", "Fiets, openbaar vervoer, overig"},
	{"shell", "vervoer", "Brandstof"},
	{"esso", "vervoer", "Brandstof"},
	{"tango", "vervoer", "Brandstof"},
	// Insurance
	{"zilveren kruis", "verzekeringen", "Zorgverzekering"},
	{"vgz", "verzekeringen", "Zorgverzekering"},
	{"centraal beheer", "verzekeringen", "Overige verzekeringen"},
}

// prefilterReasoning is the fixed reasoning for table hits.
const prefilterReasoning = "Automatisch herkend op basis van bekende tegenpartij"

// checkPrefilter matches a counterparty against the static table. The match
// is substring-symmetric: the normalized counterparty may contain the table
// key, or be contained by it. Returns nil when nothing matches.
func checkPrefilter(counterparty string) *core.Suggestion {
	normalized := core.NormalizeCounterparty(counterparty)
	if normalized == "" {
		// An all-digit counterparty normalizes to the empty string, which is
		// a substring of every key; never match on it.
		return nil
	}
	for _, e := range prefilterTable {
		if containsEither(normalized, e.key) {
			return &core.Suggestion{
				CategoryKey:     e.category,
				SubcategoryName: e.subcategory,
				Confidence:      1.0,
				Reasoning:       prefilterReasoning,
				Source:          core.SourcePrefilter,
			}
		}
	}
	return nil
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
