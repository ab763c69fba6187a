package report

import (
	"fmt"
	"math"

	"github.com/dvloznov/ceap-risk/internal/risk"
)

// profileSampleSize is how many leading profiles are checked before writing.
const profileSampleSize = 10

// ValidateProfiles checks the contract of the first profiles. Findings are
// returned as warnings; the files are written regardless.
func ValidateProfiles(profiles []*risk.LegislatorProfile, p risk.Params) []string {
	var issues []string
	n := profileSampleSize
	if len(profiles) < n {
		n = len(profiles)
	}
	for i, prof := range profiles[:n] {
		name := prof.Name
		if name == "" {
			name = "unknown"
			issues = append(issues, fmt.Sprintf("Deputy %d: empty name", i))
		}
		if prof.RiskScore < 0 || prof.RiskScore > p.MaxScore || math.IsNaN(prof.RiskScore) {
			issues = append(issues, fmt.Sprintf("Deputy %d (%s): risk score %v out of range", i, name, prof.RiskScore))
		}
		if want := p.TierForScore(prof.RiskScore); prof.RiskTier != want {
			issues = append(issues, fmt.Sprintf("Deputy %d (%s): risk level %s does not match score %.2f (%s)", i, name, prof.RiskTier, prof.RiskScore, want))
		}
		if len(prof.DigitTest.Distribution) != 9 {
			issues = append(issues, fmt.Sprintf("Deputy %d (%s): digit distribution has %d entries", i, name, len(prof.DigitTest.Distribution)))
		}
		if prof.State() != risk.StateFinalized && prof.State() != risk.StateInitial {
			issues = append(issues, fmt.Sprintf("Deputy %d (%s): profile not finalized (%s)", i, name, prof.State()))
		}
	}
	return issues
}

// ValidateAggregations checks internal consistency of the summary.
func ValidateAggregations(a *Aggregations) []string {
	var issues []string
	if a.Meta.TotalTransactions < 0 || a.Meta.TotalDeputies < 0 || a.Meta.TotalSuppliers < 0 {
		issues = append(issues, "aggregations: negative count in meta")
	}

	monthTxs := 0
	for i, m := range a.ByMonth {
		monthTxs += m.TransactionCount
		if i > 0 && a.ByMonth[i-1].Month >= m.Month {
			issues = append(issues, fmt.Sprintf("aggregations: byMonth not sorted at %s", m.Month))
		}
	}
	if monthTxs != a.Meta.TotalTransactions {
		issues = append(issues, fmt.Sprintf("aggregations: byMonth covers %d of %d transactions", monthTxs, a.Meta.TotalTransactions))
	}

	if len(a.ByCategory) > 0 {
		sum := 0.0
		for _, c := range a.ByCategory {
			sum += c.Pct
		}
		// Per-category rounding to 2 dp may drift the total slightly.
		if math.Abs(sum-100) > 0.01*float64(len(a.ByCategory))+0.01 && sum != 0 {
			issues = append(issues, fmt.Sprintf("aggregations: category shares sum to %.2f%%", sum))
		}
	}
	return issues
}
