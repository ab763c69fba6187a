package risk

// PayeeShare is one entry of a legislator's top-payee ranking.
type PayeeShare struct {
	Name  string  `json:"name"`
	TaxID string  `json:"cnpj"`
	Value float64 `json:"value"`
	Pct   float64 `json:"pct"`
}

// CategoryShare is spend per expense category.
type CategoryShare struct {
	Category         string  `json:"category"`
	Value            float64 `json:"value"`
	Pct              float64 `json:"pct"`
	TransactionCount int     `json:"transactionCount"`
}

// MonthSpend is spend per "YYYY-MM" month.
type MonthSpend struct {
	Month            string  `json:"month"`
	Value            float64 `json:"value"`
	TransactionCount int     `json:"transactionCount"`
}

// Attendance summarizes plenary attendance from the enrichment source.
type Attendance struct {
	TotalEvents  int     `json:"totalEvents"`
	UniqueEvents int     `json:"uniqueEvents"`
	Rate         float64 `json:"rate"`
	Events2023   int     `json:"events2023"`
	Events2024   int     `json:"events2024"`
	Events2025   int     `json:"events2025"`
}

// LegislatorProfile is the scored, explainable risk record of one legislator.
// Field names are a stable contract for downstream consumers.
type LegislatorProfile struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Party  string `json:"party"`
	Region string `json:"uf"`

	TotalSpend       float64  `json:"totalSpending"`
	TransactionCount int      `json:"transactionCount"`
	AvgTicket        float64  `json:"avgTicket"`
	PayeeCount       int      `json:"supplierCount"`
	PayeeTaxIDs      []string `json:"supplierCnpjs"`

	Concentration Concentration `json:"hhi"`
	DigitTest     DigitTest     `json:"benford"`
	RoundValuePct float64       `json:"roundValuePct"`

	RiskScore      float64        `json:"riskScore"`
	RiskTier       Tier           `json:"riskLevel"`
	ScoreBreakdown []Contribution `json:"scoreBreakdown"`
	RedFlags       []string       `json:"redFlags"`

	TopPayees  []PayeeShare    `json:"topSuppliers"`
	ByCategory []CategoryShare `json:"byCategory"`
	ByMonth    []MonthSpend    `json:"byMonth"`

	ZScoreParty  float64 `json:"zScoreParty"`
	ZScoreRegion float64 `json:"zScoreState"`

	Education    *string     `json:"education"`
	Profession   *string     `json:"profession"`
	BirthYear    *int        `json:"birthYear"`
	Age          *int        `json:"age"`
	MandateCount int         `json:"mandateCount"`
	Attendance   *Attendance `json:"attendance"`

	state         State
	contributions []Contribution
}

// State returns the lifecycle state of the profile.
func (p *LegislatorProfile) State() State {
	return p.state
}

// TopPayeePct returns the share of the largest payee, or 0 without payees.
func (p *LegislatorProfile) TopPayeePct() float64 {
	if len(p.TopPayees) == 0 {
		return 0
	}
	return p.TopPayees[0].Pct
}
