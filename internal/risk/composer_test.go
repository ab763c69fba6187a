package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runComposer takes p through every transition with the given peer z-scores.
func runComposer(t *testing.T, c composer, p *LegislatorProfile, zParty, zRegion float64) {
	t.Helper()
	require.NoError(t, c.scoreBase(p))
	require.NoError(t, c.augment(p))
	require.NoError(t, c.adjustForPeers(p, zParty, zRegion))
	require.NoError(t, c.finalize(p))
}

func TestComposer_AllSignalsFire(t *testing.T) {
	c := composer{params: DefaultParams()}
	p := &LegislatorProfile{
		Name:          "Fulano de Tal",
		Concentration: Concentration{Value: 3500},
		RoundValuePct: 25,
		DigitTest:     DigitTest{Statistic: 25.3, PValue: 0.01, Significant: true},
		TopPayees:     []PayeeShare{{Name: "ACME LTDA", Pct: 60}},
	}

	runComposer(t, c, p, 2.5, 0)

	assert.Equal(t, StateFinalized, p.State())
	// 0.90 + 0.10 + 0.10 + 0.15 + 0.08 clamps to the maximum.
	assert.Equal(t, 1.0, p.RiskScore)
	assert.Equal(t, TierCritical, p.RiskTier)
	assert.Equal(t, []string{
		"High supplier concentration (HHI=3500)",
		"Top supplier accounts for 60.0% of spending",
		"25.0% round-number amounts (suspicious)",
		"Significant deviation from Benford's law (chi2=25.3)",
		"Spending 2.5σ above party average",
	}, p.RedFlags)
	assert.Equal(t, 2.5, p.ZScoreParty)
	assert.Equal(t, 0.0, p.ZScoreRegion)
	require.Len(t, p.ScoreBreakdown, 5)
	assert.Equal(t, SignalConcentration, p.ScoreBreakdown[0].Signal)
	assert.Equal(t, 0.90, p.ScoreBreakdown[0].Weight)
}

func TestComposer_QuietProfile(t *testing.T) {
	c := composer{params: DefaultParams()}
	p := &LegislatorProfile{
		Concentration: Concentration{Value: 1200},
		RoundValuePct: 20,
		TopPayees:     []PayeeShare{{Pct: 50}},
	}

	runComposer(t, c, p, 2.0, -3.5)

	assert.Equal(t, 0.20, p.RiskScore)
	assert.Equal(t, TierLow, p.RiskTier)
	assert.Empty(t, p.RedFlags)
	require.Len(t, p.ScoreBreakdown, 1)
}

func TestComposer_HighConcentrationEvidenceOnlyFromHighTier(t *testing.T) {
	c := composer{params: DefaultParams()}

	medium := &LegislatorProfile{Concentration: Concentration{Value: 2400}}
	runComposer(t, c, medium, 0, 0)
	assert.Empty(t, medium.RedFlags)
	assert.Equal(t, 0.40, medium.RiskScore)

	high := &LegislatorProfile{Concentration: Concentration{Value: 2800}}
	runComposer(t, c, high, 0, 0)
	assert.Equal(t, []string{"High supplier concentration (HHI=2800)"}, high.RedFlags)
	assert.Equal(t, 0.70, high.RiskScore)
	assert.Equal(t, TierHigh, high.RiskTier)
}

func TestComposer_RegionOutlierUsesRawZ(t *testing.T) {
	c := composer{params: DefaultParams()}
	p := &LegislatorProfile{Concentration: Concentration{Value: 1000}}

	// Rounds to 2.00 for display but still exceeds the threshold.
	runComposer(t, c, p, 0, 2.004)

	assert.Equal(t, 2.0, p.ZScoreRegion)
	assert.Equal(t, 0.28, p.RiskScore)
	assert.Equal(t, []string{"Spending 2.0σ above state average"}, p.RedFlags)
}

func TestComposer_RejectsOutOfOrderTransitions(t *testing.T) {
	c := composer{params: DefaultParams()}

	t.Run("augment before base", func(t *testing.T) {
		p := &LegislatorProfile{Name: "A"}
		err := c.augment(p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AUGMENTED")
		assert.Equal(t, StateInitial, p.State())
	})

	t.Run("peer adjustment before augment", func(t *testing.T) {
		p := &LegislatorProfile{Name: "B"}
		require.NoError(t, c.scoreBase(p))
		assert.Error(t, c.adjustForPeers(p, 0, 0))
		assert.Equal(t, StateBaseScored, p.State())
	})

	t.Run("finalize twice", func(t *testing.T) {
		p := &LegislatorProfile{Name: "C"}
		runComposer(t, c, p, 0, 0)
		assert.Error(t, c.finalize(p))
	})

	t.Run("base scored twice", func(t *testing.T) {
		p := &LegislatorProfile{Name: "D"}
		require.NoError(t, c.scoreBase(p))
		assert.Error(t, c.scoreBase(p))
		assert.Len(t, p.contributions, 1)
	})
}

// TestComposer_MonotonicInSignals walks every combination of triggers over
// every concentration tier: adding a trigger never lowers the score, and the
// tier always matches the score.
func TestComposer_MonotonicInSignals(t *testing.T) {
	params := DefaultParams()
	c := composer{params: params}

	build := func(index float64, mask int) *LegislatorProfile {
		p := &LegislatorProfile{Concentration: Concentration{Value: index}}
		if mask&1 != 0 {
			p.TopPayees = []PayeeShare{{Pct: 75}}
		}
		if mask&2 != 0 {
			p.RoundValuePct = 40
		}
		if mask&4 != 0 {
			p.DigitTest = DigitTest{Statistic: 30, PValue: 0.01, Significant: true}
		}
		return p
	}
	zFor := func(mask int) (float64, float64) {
		zp, zr := 0.0, 0.0
		if mask&8 != 0 {
			zp = 3
		}
		if mask&16 != 0 {
			zr = 3
		}
		return zp, zr
	}

	for _, index := range []float64{1000, 2000, 2800, 3500} {
		scores := make(map[int]float64)
		for mask := 0; mask < 32; mask++ {
			p := build(index, mask)
			zp, zr := zFor(mask)
			runComposer(t, c, p, zp, zr)

			assert.GreaterOrEqual(t, p.RiskScore, 0.0)
			assert.LessOrEqual(t, p.RiskScore, params.MaxScore)
			assert.Equal(t, params.TierForScore(p.RiskScore), p.RiskTier)
			scores[mask] = p.RiskScore
		}
		for mask := 0; mask < 32; mask++ {
			for bit := 1; bit < 32; bit <<= 1 {
				if mask&bit == 0 {
					assert.GreaterOrEqual(t, scores[mask|bit], scores[mask],
						"index %v: adding trigger %d to %05b lowered the score", index, bit, mask)
				}
			}
		}
	}
}

func TestCompositeScore(t *testing.T) {
	assert.Equal(t, 0.0, CompositeScore(nil, 1))
	assert.Equal(t, 0.56, CompositeScore([]float64{0.40, 0.08, 0.08}, 1))
	assert.Equal(t, 1.0, CompositeScore([]float64{0.90, 0.10, 0.15}, 1))
	assert.Equal(t, 0.0, CompositeScore([]float64{-0.5}, 1))
}

func TestSignalMarshalText(t *testing.T) {
	b, err := SignalDigitAnomaly.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "digit_anomaly", string(b))

	_, err = Signal(42).MarshalText()
	assert.Error(t, err)
}
