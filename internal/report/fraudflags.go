package report

import (
	"fmt"

	"github.com/dvloznov/ceap-risk/internal/domain"
)

// Thresholds applied to the pre-computed fraud matrix.
const (
	fraudBenfordScoreMin  = 0.5
	fraudConcentrationMin = 2500
	fraudRoundValuePctMin = 30
	defaultFraudRiskLevel = "MEDIO"
)

// FraudDetails are the raw feature values behind a fraud flag record.
type FraudDetails struct {
	BenfordDeviation      bool    `json:"benfordDeviation"`
	BenfordChi2           float64 `json:"benfordChi2"`
	RoundValuePct         float64 `json:"roundValuePct"`
	SupplierConcentration bool    `json:"supplierConcentration"`
	HHIValue              float64 `json:"hhiValue"`
	CNPJMismatches        int     `json:"cnpjMismatches"`
	WeekendPct            float64 `json:"weekendPct"`
}

// FraudFlag is one legislator's entry in fraud-flags.json.
type FraudFlag struct {
	DeputyID   int          `json:"deputyId"`
	DeputyName string       `json:"deputyName"`
	Party      string       `json:"party"`
	UF         string       `json:"uf"`
	Flags      []string     `json:"flags"`
	Details    FraudDetails `json:"details"`
	RiskScore  float64      `json:"riskScore"`
	RiskLevel  string       `json:"riskLevel"`
}

// BuildFraudFlags maps every fraud-matrix row to a flag record, keeping the
// source order. The matrix's own score and level are passed through; they are
// not recomputed by the engine.
func BuildFraudFlags(rows []domain.FraudFeatureRow) []FraudFlag {
	out := make([]FraudFlag, 0, len(rows))
	for _, row := range rows {
		f := FraudFlag{
			DeputyID:   row.ID,
			DeputyName: row.LegislatorName,
			Party:      row.Party,
			UF:         row.Region,
			Flags:      []string{},
			Details: FraudDetails{
				BenfordDeviation:      row.BenfordScore > fraudBenfordScoreMin,
				BenfordChi2:           row.Chi2,
				RoundValuePct:         row.RoundPct,
				SupplierConcentration: row.HHI > fraudConcentrationMin,
				HHIValue:              row.HHI,
				CNPJMismatches:        row.TaxIDMismatch,
				WeekendPct:            row.WeekendPct,
			},
			RiskScore: row.RiskScore,
			RiskLevel: row.RiskCategory,
		}
		if f.RiskLevel == "" {
			f.RiskLevel = defaultFraudRiskLevel
		}

		if f.Details.BenfordDeviation {
			f.Flags = append(f.Flags, "Benford's law deviation")
		}
		if f.Details.SupplierConcentration {
			f.Flags = append(f.Flags, "High supplier concentration")
		}
		if f.Details.RoundValuePct > fraudRoundValuePctMin {
			f.Flags = append(f.Flags, fmt.Sprintf("%.0f%% round-number amounts", f.Details.RoundValuePct))
		}
		if f.Details.CNPJMismatches > 0 {
			f.Flags = append(f.Flags, fmt.Sprintf("%d supplier tax ids with incompatible activity", f.Details.CNPJMismatches))
		}
		out = append(out, f)
	}
	return out
}
