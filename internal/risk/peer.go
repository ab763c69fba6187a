package risk

import (
	"math"
	"sort"
)

// PeerStats holds the spend distribution of one party or region.
// Std is never zero.
type PeerStats struct {
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Members int     `json:"members"`
}

// ZScore returns how many standard deviations v lies from the group mean.
func (s PeerStats) ZScore(v float64) float64 {
	return (v - s.Mean) / s.Std
}

// PeerGroups collects total spend per group key in insertion order.
type PeerGroups map[string][]float64

// Add records one legislator's total spend under key.
func (g PeerGroups) Add(key string, totalSpend float64) {
	g[key] = append(g[key], totalSpend)
}

// Stats computes the population mean and standard deviation of every group.
// A single-member group gets that member's value as mean; groups with zero
// variance get std 1 so every z-score is finite.
func (g PeerGroups) Stats() map[string]PeerStats {
	out := make(map[string]PeerStats, len(g))
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out[k] = groupStats(g[k])
	}
	return out
}

func groupStats(values []float64) PeerStats {
	if len(values) == 0 {
		return PeerStats{Std: 1}
	}
	if len(values) == 1 || allEqual(values) {
		// Exact mean avoids float residue turning 0/ε into a non-zero z.
		return PeerStats{Mean: values[0], Std: 1, Members: len(values)}
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(values)))
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	return PeerStats{Mean: mean, Std: std, Members: len(values)}
}

func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// zScoreIn looks up key in stats; unknown groups score zero.
func zScoreIn(stats map[string]PeerStats, key string, v float64) float64 {
	s, ok := stats[key]
	if !ok {
		return 0
	}
	return s.ZScore(v)
}
