package risk

import (
	"math"
	"strconv"
)

// DigitFrequency is one row of the observed/expected leading-digit table.
type DigitFrequency struct {
	Digit    int     `json:"digit"`
	Observed float64 `json:"observed"`
	Expected float64 `json:"expected"`
}

// DigitTest is the result of the leading-digit (Benford) goodness-of-fit test.
type DigitTest struct {
	Statistic    float64          `json:"chi2"`
	PValue       float64          `json:"pValue"`
	Significant  bool             `json:"significant"`
	Distribution []DigitFrequency `json:"digitDistribution"`
}

// Bucketed p-values reported for the chi-squared test. These are lookups
// against fixed critical values, not a continuous p-value.
const (
	pValueStrong = 0.01
	pValueWeak   = 0.05
	pValueNone   = 0.10
)

// FirstDigit returns the first significant decimal digit of v.
// Zero, negative, NaN and infinite values have no digit.
func FirstDigit(v float64) (int, bool) {
	if !(v > 0) || math.IsInf(v, 0) {
		return 0, false
	}
	// Scientific formatting always puts the first significant digit first.
	s := strconv.FormatFloat(v, 'e', -1, 64)
	d := int(s[0] - '0')
	if d < 1 || d > 9 {
		return 0, false
	}
	return d, true
}

// LeadingDigitTest runs the chi-squared leading-digit test over amounts.
func LeadingDigitTest(amounts []float64, p Params) DigitTest {
	var counts [9]int
	total := 0
	for _, v := range amounts {
		d, ok := FirstDigit(v)
		if !ok {
			continue
		}
		counts[d-1]++
		total++
	}

	if total < p.DigitMinSample {
		return neutralDigitTest(p)
	}

	chi2 := 0.0
	dist := make([]DigitFrequency, 9)
	for i := 0; i < 9; i++ {
		observed := float64(counts[i])
		expected := float64(total) * p.DigitReference[i] / 100
		if expected > 0 {
			chi2 += (observed - expected) * (observed - expected) / expected
		}
		dist[i] = DigitFrequency{
			Digit:    i + 1,
			Observed: round2(observed / float64(total) * 100),
			Expected: p.DigitReference[i],
		}
	}

	res := DigitTest{
		Statistic:    round2(chi2),
		Distribution: dist,
	}
	switch {
	case chi2 > p.ChiSquareCritical01:
		res.PValue, res.Significant = pValueStrong, true
	case chi2 > p.ChiSquareCritical05:
		res.PValue, res.Significant = pValueWeak, true
	default:
		res.PValue = pValueNone
	}
	return res
}

func neutralDigitTest(p Params) DigitTest {
	dist := make([]DigitFrequency, 9)
	for i := range dist {
		dist[i] = DigitFrequency{Digit: i + 1, Expected: p.DigitReference[i]}
	}
	return DigitTest{PValue: pValueNone, Distribution: dist}
}
