package risk

import (
	"fmt"
	"math"
	"sort"
)

// State is the lifecycle position of a profile inside the composer.
type State int

const (
	StateInitial State = iota
	StateBaseScored
	StateAugmented
	StatePeerAdjusted
	StateFinalized
)

var stateNames = [...]string{"INITIAL", "BASE_SCORED", "AUGMENTED", "PEER_ADJUSTED", "FINALIZED"}

func (s State) String() string {
	if s < StateInitial || s > StateFinalized {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Signal identifies one input to the composite score. Declaration order is
// the display order of the evidence list.
type Signal int

const (
	SignalConcentration Signal = iota
	SignalTopPayee
	SignalRoundValues
	SignalDigitAnomaly
	SignalPartyOutlier
	SignalRegionOutlier
)

var signalNames = [...]string{
	"concentration", "top_payee", "round_values",
	"digit_anomaly", "party_outlier", "region_outlier",
}

func (s Signal) String() string {
	if s < SignalConcentration || s > SignalRegionOutlier {
		return fmt.Sprintf("Signal(%d)", int(s))
	}
	return signalNames[s]
}

// MarshalText encodes the signal by name.
func (s Signal) MarshalText() ([]byte, error) {
	if s < SignalConcentration || s > SignalRegionOutlier {
		return nil, fmt.Errorf("risk: invalid signal %d", int(s))
	}
	return []byte(signalNames[s]), nil
}

// UnmarshalText decodes a signal name written by MarshalText.
func (s *Signal) UnmarshalText(b []byte) error {
	for i, name := range signalNames {
		if name == string(b) {
			*s = Signal(i)
			return nil
		}
	}
	return fmt.Errorf("risk: unknown signal %q", string(b))
}

// Contribution is one additive term of the composite score. Evidence is the
// human-readable red flag; it is empty for the concentration base score when
// the concentration tier is below HIGH.
type Contribution struct {
	Signal   Signal  `json:"signal"`
	Weight   float64 `json:"weight"`
	Evidence string  `json:"-"`
}

// composer drives a profile through its lifecycle. Every transition adds
// contributions; the score is summed and clamped once, in finalize.
type composer struct {
	params Params
}

func (c composer) advance(p *LegislatorProfile, from, to State) error {
	if p.state != from {
		return fmt.Errorf("risk: profile %q: cannot move to %s from %s", p.Name, to, p.state)
	}
	p.state = to
	return nil
}

// scoreBase applies the concentration classifier.
func (c composer) scoreBase(p *LegislatorProfile) error {
	if err := c.advance(p, StateInitial, StateBaseScored); err != nil {
		return err
	}
	tier, base := p.Concentration.classify(c.params)
	contrib := Contribution{Signal: SignalConcentration, Weight: base}
	if tier >= TierHigh {
		contrib.Evidence = fmt.Sprintf("High supplier concentration (HHI=%.0f)", p.Concentration.Value)
	}
	p.contributions = append(p.contributions, contrib)
	return nil
}

// augment adds the per-legislator evidence: top payee share, round values
// and the leading-digit test.
func (c composer) augment(p *LegislatorProfile) error {
	if err := c.advance(p, StateBaseScored, StateAugmented); err != nil {
		return err
	}
	if top := p.TopPayeePct(); top > c.params.TopPayeeThresholdPct {
		p.contributions = append(p.contributions, Contribution{
			Signal:   SignalTopPayee,
			Weight:   c.params.TopPayeePenalty,
			Evidence: fmt.Sprintf("Top supplier accounts for %.1f%% of spending", top),
		})
	}
	if p.RoundValuePct > c.params.RoundValueThresholdPct {
		p.contributions = append(p.contributions, Contribution{
			Signal:   SignalRoundValues,
			Weight:   c.params.RoundValuePenalty,
			Evidence: fmt.Sprintf("%.1f%% round-number amounts (suspicious)", p.RoundValuePct),
		})
	}
	if p.DigitTest.Significant {
		p.contributions = append(p.contributions, Contribution{
			Signal:   SignalDigitAnomaly,
			Weight:   c.params.DigitAnomalyPenalty,
			Evidence: fmt.Sprintf("Significant deviation from Benford's law (chi2=%.1f)", p.DigitTest.Statistic),
		})
	}
	return nil
}

// adjustForPeers applies the party and region outlier penalties. Only
// above-average spend is penalized.
func (c composer) adjustForPeers(p *LegislatorProfile, zParty, zRegion float64) error {
	if err := c.advance(p, StateAugmented, StatePeerAdjusted); err != nil {
		return err
	}
	p.ZScoreParty = round2(zParty)
	p.ZScoreRegion = round2(zRegion)
	if zParty > c.params.ZScoreThreshold {
		p.contributions = append(p.contributions, Contribution{
			Signal:   SignalPartyOutlier,
			Weight:   c.params.PartyOutlierPenalty,
			Evidence: fmt.Sprintf("Spending %.1fσ above party average", zParty),
		})
	}
	if zRegion > c.params.ZScoreThreshold {
		p.contributions = append(p.contributions, Contribution{
			Signal:   SignalRegionOutlier,
			Weight:   c.params.RegionOutlierPenalty,
			Evidence: fmt.Sprintf("Spending %.1fσ above state average", zRegion),
		})
	}
	return nil
}

// finalize sums the contributions, clamps the score, assigns the tier and
// freezes the evidence list in signal order.
func (c composer) finalize(p *LegislatorProfile) error {
	if err := c.advance(p, StatePeerAdjusted, StateFinalized); err != nil {
		return err
	}
	sort.SliceStable(p.contributions, func(i, j int) bool {
		return p.contributions[i].Signal < p.contributions[j].Signal
	})

	weights := make([]float64, len(p.contributions))
	flags := make([]string, 0, len(p.contributions))
	for i, contrib := range p.contributions {
		weights[i] = contrib.Weight
		if contrib.Evidence != "" {
			flags = append(flags, contrib.Evidence)
		}
	}

	p.RiskScore = CompositeScore(weights, c.params.MaxScore)
	p.RiskTier = c.params.TierForScore(p.RiskScore)
	p.RedFlags = flags
	p.ScoreBreakdown = append([]Contribution(nil), p.contributions...)
	return nil
}

// CompositeScore adds the weights, rounds to two decimals and clamps the
// result to [0, max]. Clamping happens once, after the full sum.
func CompositeScore(weights []float64, max float64) float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	return math.Max(0, math.Min(round2(sum), max))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
