package risk

import "math"

// IsRound reports whether v is a whole number that is also a multiple of 100.
// 150.00 is whole but not round; 200.50 is neither.
func IsRound(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v == math.Trunc(v) && math.Mod(v, 100) == 0
}

// RoundValuePct returns the share of round amounts, as a percentage of all
// transactions (including ones with missing amounts).
func RoundValuePct(amounts []float64) float64 {
	if len(amounts) == 0 {
		return 0
	}
	n := 0
	for _, v := range amounts {
		if IsRound(v) {
			n++
		}
	}
	return float64(n) / float64(len(amounts)) * 100
}
