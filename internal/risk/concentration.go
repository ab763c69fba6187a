package risk

import "math"

// Concentration is the HHI sub-record of a profile.
type Concentration struct {
	Value float64 `json:"value"`
	Tier  Tier    `json:"tier"`
	// Label is the categorical label supplied with the external index, if any.
	Label string `json:"label,omitempty"`
	// Defaulted is set when no external index existed for the legislator.
	Defaulted bool `json:"defaulted,omitempty"`
}

// classify returns the tier and base score of the sub-record. A defaulted
// index is neutral and always scores as MEDIUM.
func (c Concentration) classify(p Params) (Tier, float64) {
	if c.Defaulted {
		return TierMedium, p.BaseScoreMedium
	}
	return ClassifyConcentration(c.Value, p)
}

// ClassifyConcentration maps a supplier-concentration index to its tier and
// base risk score.
func ClassifyConcentration(index float64, p Params) (Tier, float64) {
	switch {
	case index > p.ConcentrationCritical:
		return TierCritical, p.BaseScoreCritical
	case index > p.ConcentrationHigh:
		return TierHigh, p.BaseScoreHigh
	case index > p.ConcentrationMedium:
		return TierMedium, p.BaseScoreMedium
	default:
		return TierLow, p.BaseScoreLow
	}
}

// concentrationFor resolves the index for a legislator, falling back to the
// neutral default when the external table has no usable value.
func concentrationFor(entry *concentrationLookup, p Params) Concentration {
	c := Concentration{Value: p.ConcentrationDefault, Defaulted: true}
	if entry != nil && !math.IsNaN(entry.index) && !math.IsInf(entry.index, 0) {
		c = Concentration{Value: entry.index, Label: entry.label}
	}
	c.Tier, _ = c.classify(p)
	return c
}

type concentrationLookup struct {
	index float64
	label string
}
