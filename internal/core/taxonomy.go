package core

import "errors"

var (
	ErrUnknownCategory    = errors.New("unknown category")
	ErrUnknownSubcategory = errors.New("unknown subcategory")
)

// Category keys for the three non-spending buckets. Transactions in these
// buckets are excluded from all spending statistics.
const (
	CategoryToReview          = "te_beoordelen"
	CategoryInternalTransfers = "interne_transacties"
	CategoryIncome            = "inkomsten"
)

// Category is reference data: created at setup time, rarely mutated, never
// deleted while transactions reference it.
type Category struct {
	Key           string
	Name          string
	Subcategories []string
}

// Taxonomy is the closed, hand-authored set of categories. It is built once
// at process start and injected; nothing mutates it afterwards.
type Taxonomy struct {
	categories []Category
	byKey      map[string]int
}

func NewTaxonomy(categories []Category) Taxonomy {
	byKey := make(map[string]int, len(categories))
	for i, c := range categories {
		byKey[c.Key] = i
	}
	return Taxonomy{categories: categories, byKey: byKey}
}

// Categories returns the categories in their authored order.
func (t Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

func (t Taxonomy) ByKey(key string) (Category, bool) {
	i, ok := t.byKey[key]
	if !ok {
		return Category{}, false
	}
	return t.categories[i], true
}

// HasSubcategory reports whether name is a subcategory of the given category.
func (t Taxonomy) HasSubcategory(key, name string) bool {
	c, ok := t.ByKey(key)
	if !ok {
		return false
	}
	for _, s := range c.Subcategories {
		if s == name {
			return true
		}
	}
	return false
}

// IsSpendingBucket reports whether the category counts toward spending
// statistics. The to-review, internal-transfers and income buckets do not.
func IsSpendingBucket(key string) bool {
	switch key {
	case CategoryToReview, CategoryInternalTransfers, CategoryIncome:
		return false
	}
	return true
}

// DefaultTaxonomy returns the reference instance: 15 Dutch budget categories
// modelled on the Nibud household bookkeeping layout.
func DefaultTaxonomy() Taxonomy {
	return NewTaxonomy([]Category{
		{Key: "woning", Name: "Woning", Subcategories: []string{
			"Huur / Hypotheeklasten", "Servicekosten", "Erfpachtcanon", "Inleg KEW/SEW/BEW",
		}},
		{Key: "energie_lokale_lasten", Name: "Energie & lokale lasten", Subcategories: []string{
			"Gas / Elektriciteit", "Water", "Onroerende zaakbelasting", "Reinigingsheffing",
			"Rioolheffing", "Waterschapslasten", "Overige lokale lasten",
		}},
		{Key: "verzekeringen", Name: "Verzekeringen", Subcategories: []string{
			"Zorgverzekering", "Aansprakelijkheid", "Inboedel- en opstalverzekering",
			"Uitvaartverzekering", "Overlijdensrisicoverzekering", "Woonlastenverzekering",
			"Overige verzekeringen",
		}},
		{Key: "abonnementen_telecom", Name: "Abonnementen & telecom", Subcategories: []string{
			"TV Internet", "Mobiele telefoon", "Streamingsdiensten",
			"Contributies & Abonnementen", "Overige (loterijen en goede doelen)",
		}},
		{Key: "onderwijs", Name: "Onderwijs", Subcategories: []string{
			"School- en studiekosten kinderen", "Studiekosten volwassenen", "DUO studieschuld",
		}},
		{Key: "vervoer", Name: "Vervoer", Subcategories: []string{
			"Afbetaling / afschrijving", "Motorrijtuigenbelasting", "Onderhoud",
			"Verzekering", "Brandstof", "Fiets, openbaar vervoer, overig",
		}},
		{Key: "overige_vaste_lasten", Name: "Overige vaste lasten", Subcategories: []string{
			"Kinderopvang", "Alimentatie", "Bijdrage studerende kinderen",
			"Afbetaling", "Private lease", "Overig",
		}},
		{Key: "kleding_schoenen", Name: "Kleding & schoenen", Subcategories: []string{
			"Kleding & schoenen", "Overig (kleedgeld kinderen, reparaties, accessoires)",
		}},
		{Key: "inboedel_huis_tuin", Name: "Inboedel, huis & tuin", Subcategories: []string{
			"Inboedel (meubels, apparatuur, stoffering)", "Onderhoud huis en tuin", "Bijdrage VVE",
		}},
		{Key: "niet_vergoede_ziektekosten", Name: "Niet-vergoede ziektekosten", Subcategories: []string{
			"Eigen risico", "Zelfzorgmedicijnen", "Eigen bijdragen",
		}},
		{Key: "vrijetijdsuitgaven", Name: "Vrijetijdsuitgaven", Subcategories: []string{
			"Vakantie, weekendjes weg", "Hobbys", "Uitgaan", "Overige vrijetijdsuitgaven",
		}},
		{Key: "huishoudelijke_uitgaven", Name: "Huishoudelijke uitgaven", Subcategories: []string{
			"Boodschappen", "Persoonlijke verzorging", "Huishoudelijke dienstverlening",
			"Huisdieren", "Diversen (zakgeld, cadeaus, bloemen etc)",
		}},
		{Key: CategoryInternalTransfers, Name: "Interne transacties", Subcategories: []string{
			"Tussen rekeningen",
		}},
		{Key: CategoryIncome, Name: "Inkomsten", Subcategories: []string{
			"Salaris", "Overige inkomsten",
		}},
		{Key: CategoryToReview, Name: "Te beoordelen", Subcategories: []string{
			"Onbekend",
		}},
	})
}
