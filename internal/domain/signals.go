package domain

// ConcentrationEntry is one row of the externally computed supplier
// concentration table (HHI per legislator).
type ConcentrationEntry struct {
	LegislatorName string  // "Deputado"
	Index          float64 // "HHI"
	Label          string  // "Nivel_Concentracao", upper-cased
}

// FraudFeatureRow is one row of the pre-computed fraud feature matrix.
type FraudFeatureRow struct {
	ID             int
	LegislatorName string
	Party          string
	Region         string
	BenfordScore   float64
	Chi2           float64
	RoundPct       float64
	HHI            float64
	TaxIDMismatch  int
	WeekendPct     float64
	RiskScore      float64
	RiskCategory   string
}

// MismatchRow is one row of the cross-registry activity mismatch table.
type MismatchRow struct {
	TaxID            string
	SupplierName     string
	LegalName        string
	ExpenseCategory  string
	ActivityCode     string
	TotalValue       float64
	TransactionCount int
	LegislatorCount  int
	Reason           string
	Region           string
}

// Enrichment carries optional biographic and attendance data for a legislator.
type Enrichment struct {
	Name         string
	Education    *string
	Profession   *string
	BirthYear    *int
	Age          *int
	MandateCount int

	TotalEvents    int
	UniqueEvents   int
	AttendanceRate float64
	Events2023     int
	Events2024     int
	Events2025     int
}

// Dataset is the fully materialized input snapshot for one scoring run.
type Dataset struct {
	Transactions  []Transaction
	Concentration []ConcentrationEntry
	FraudFeatures []FraudFeatureRow
	Mismatches    []MismatchRow
	Enrichment    []Enrichment

	// Columns lists the canonical fields that were present in the source,
	// keyed by canonical name (e.g. "payee_tax_id").
	Columns map[string]bool
}

// HasColumn reports whether the canonical column was present in the source.
func (d *Dataset) HasColumn(name string) bool {
	return d != nil && d.Columns[name]
}
