package risk

// Params is the immutable threshold bundle used by the scoring engine.
// It is passed by value; callers that need alternate thresholds copy
// DefaultParams and change the fields they care about.
type Params struct {
	// Leading-digit test.
	DigitMinSample      int
	DigitReference      [9]float64 // expected percentage for digits 1..9
	ChiSquareCritical01 float64    // 8 degrees of freedom, p = 0.01
	ChiSquareCritical05 float64    // 8 degrees of freedom, p = 0.05

	// Concentration index cut points and the base score of each tier.
	ConcentrationCritical float64
	ConcentrationHigh     float64
	ConcentrationMedium   float64
	ConcentrationDefault  float64
	BaseScoreCritical     float64
	BaseScoreHigh         float64
	BaseScoreMedium       float64
	BaseScoreLow          float64

	// Evidence triggers.
	RoundValueThresholdPct float64
	TopPayeeThresholdPct   float64
	ZScoreThreshold        float64

	// Additive penalties.
	RoundValuePenalty    float64
	DigitAnomalyPenalty  float64
	TopPayeePenalty      float64
	PartyOutlierPenalty  float64
	RegionOutlierPenalty float64
	MaxScore             float64

	// Final tier cut points on the composite score (inclusive).
	TierCriticalScore float64
	TierHighScore     float64
	TierMediumScore   float64

	// Activity filter floors (inclusive).
	MinTotalSpend   float64
	MinTransactions int
	TopPayeeCount   int
}

// DefaultParams returns the thresholds used for published datasets.
func DefaultParams() Params {
	return Params{
		DigitMinSample:      50,
		DigitReference:      [9]float64{30.1, 17.6, 12.5, 9.7, 7.9, 6.7, 5.8, 5.1, 4.6},
		ChiSquareCritical01: 20.09,
		ChiSquareCritical05: 15.51,

		ConcentrationCritical: 3000,
		ConcentrationHigh:     2500,
		ConcentrationMedium:   1500,
		ConcentrationDefault:  1500,
		BaseScoreCritical:     0.90,
		BaseScoreHigh:         0.70,
		BaseScoreMedium:       0.40,
		BaseScoreLow:          0.20,

		RoundValueThresholdPct: 20,
		TopPayeeThresholdPct:   50,
		ZScoreThreshold:        2.0,

		RoundValuePenalty:    0.10,
		DigitAnomalyPenalty:  0.15,
		TopPayeePenalty:      0.10,
		PartyOutlierPenalty:  0.08,
		RegionOutlierPenalty: 0.08,
		MaxScore:             1.0,

		TierCriticalScore: 0.75,
		TierHighScore:     0.55,
		TierMediumScore:   0.35,

		MinTotalSpend:   50000,
		MinTransactions: 20,
		TopPayeeCount:   5,
	}
}

// TierForScore maps a final composite score onto its risk tier.
func (p Params) TierForScore(score float64) Tier {
	switch {
	case score >= p.TierCriticalScore:
		return TierCritical
	case score >= p.TierHighScore:
		return TierHigh
	case score >= p.TierMediumScore:
		return TierMedium
	default:
		return TierLow
	}
}

// IsActive reports whether a legislator passes the activity filter.
func (p Params) IsActive(totalSpend float64, transactions int) bool {
	return totalSpend >= p.MinTotalSpend && transactions >= p.MinTransactions
}
