package bigquery

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ceap-risk/internal/risk"
)

type RiskProfileRow struct {
	RunID        string     `bigquery:"run_id"`        // REQUIRED
	LegislatorID int64      `bigquery:"legislator_id"` // REQUIRED
	SnapshotDate civil.Date `bigquery:"snapshot_date"` // REQUIRED

	Name   string `bigquery:"name"`   // REQUIRED
	Party  string `bigquery:"party"`  // NULLABLE
	Region string `bigquery:"region"` // NULLABLE

	TotalSpending    float64 `bigquery:"total_spending"`    // REQUIRED
	TransactionCount int64   `bigquery:"transaction_count"` // REQUIRED

	HHIValue     float64 `bigquery:"hhi_value"`     // REQUIRED
	HHITier      string  `bigquery:"hhi_tier"`      // REQUIRED
	HHIDefaulted bool    `bigquery:"hhi_defaulted"` // REQUIRED

	BenfordChi2        float64 `bigquery:"benford_chi2"`        // REQUIRED
	BenfordPValue      float64 `bigquery:"benford_p_value"`     // REQUIRED
	BenfordSignificant bool    `bigquery:"benford_significant"` // REQUIRED
	RoundValuePct      float64 `bigquery:"round_value_pct"`     // REQUIRED

	RiskScore float64  `bigquery:"risk_score"` // REQUIRED
	RiskLevel string   `bigquery:"risk_level"` // REQUIRED
	RedFlags  []string `bigquery:"red_flags"`  // REPEATED STRING

	ZScoreParty  float64 `bigquery:"z_score_party"`  // REQUIRED
	ZScoreRegion float64 `bigquery:"z_score_region"` // REQUIRED

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// ProfileRows flattens finalized profiles into warehouse rows for one run.
func ProfileRows(runID string, snapshot civil.Date, createdTS time.Time, profiles []*risk.LegislatorProfile) []*RiskProfileRow {
	rows := make([]*RiskProfileRow, 0, len(profiles))
	for _, p := range profiles {
		flags := p.RedFlags
		if flags == nil {
			flags = []string{}
		}
		rows = append(rows, &RiskProfileRow{
			RunID:              runID,
			LegislatorID:       int64(p.ID),
			SnapshotDate:       snapshot,
			Name:               p.Name,
			Party:              p.Party,
			Region:             p.Region,
			TotalSpending:      p.TotalSpend,
			TransactionCount:   int64(p.TransactionCount),
			HHIValue:           p.Concentration.Value,
			HHITier:            p.Concentration.Tier.String(),
			HHIDefaulted:       p.Concentration.Defaulted,
			BenfordChi2:        p.DigitTest.Statistic,
			BenfordPValue:      p.DigitTest.PValue,
			BenfordSignificant: p.DigitTest.Significant,
			RoundValuePct:      p.RoundValuePct,
			RiskScore:          p.RiskScore,
			RiskLevel:          p.RiskTier.String(),
			RedFlags:           flags,
			ZScoreParty:        p.ZScoreParty,
			ZScoreRegion:       p.ZScoreRegion,
			CreatedTS:          createdTS,
		})
	}
	return rows
}
