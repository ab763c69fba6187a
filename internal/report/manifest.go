package report

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/dvloznov/ceap-risk/internal/domain"
	"github.com/dvloznov/ceap-risk/internal/risk"
)

const (
	ManifestVersion = "1.0.0"
	Generator       = "ceap-risk"
	APISource       = "https://dadosabertos.camara.leg.br/api/v2"
)

// Output file names. Consumers depend on these.
const (
	FileAggregations = "aggregations.json"
	FileDeputies     = "deputies.json"
	FileFraudFlags   = "fraud-flags.json"
	FileMismatches   = "mismatches.json"
	FileManifest     = "manifest.json"
	FileBriefings    = "briefings.json"
)

// DigestReader hashes and counts the bytes read through it.
type DigestReader struct {
	r    io.Reader
	h    hash.Hash
	size int64
}

// NewDigestReader wraps r.
func NewDigestReader(r io.Reader) *DigestReader {
	return &DigestReader{r: r, h: sha256.New()}
}

func (d *DigestReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.h.Write(p[:n])
		d.size += int64(n)
	}
	return n, err
}

// Sum returns the hex SHA-256 of everything read so far.
func (d *DigestReader) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Size returns the number of bytes read so far.
func (d *DigestReader) Size() int64 {
	return d.size
}

// SourceFile describes the expense source a run was computed from.
type SourceFile struct {
	File         string     `json:"file"`
	SHA256       string     `json:"sha256"`
	SizeBytes    int64      `json:"sizeBytes"`
	LastModified *time.Time `json:"lastModified"`
	APISource    string     `json:"apiSource"`
	Period       Period     `json:"period"`
	RecordCount  int        `json:"recordCount"`
	TotalValue   float64    `json:"totalValueBrl"`
}

type OutputFile struct {
	RecordCount int    `json:"recordCount"`
	Description string `json:"description"`
}

type DigitTestMethod struct {
	ChiSquareCritical01 float64 `json:"chi2Critical001"`
	ChiSquareCritical05 float64 `json:"chi2Critical005"`
	DegreesOfFreedom    int     `json:"degreesOfFreedom"`
	MinSample           int     `json:"minSample"`
	Description         string  `json:"description"`
}

type ConcentrationMethod struct {
	Medium      float64 `json:"medium"`
	High        float64 `json:"high"`
	Critical    float64 `json:"critical"`
	Default     float64 `json:"default"`
	Description string  `json:"description"`
}

type ScoreMethod struct {
	BaseWeights       map[string]float64 `json:"baseWeights"`
	AdditivePenalties map[string]float64 `json:"additivePenalties"`
	Triggers          map[string]float64 `json:"triggers"`
	MaxScore          float64            `json:"maxScore"`
	TierThresholds    map[string]float64 `json:"riskLevelThresholds"`
	ActivityFilter    map[string]float64 `json:"activityFilter"`
}

type Methodology struct {
	DigitTest     DigitTestMethod     `json:"benfordThreshold"`
	Concentration ConcentrationMethod `json:"hhiThresholds"`
	RiskScore     ScoreMethod         `json:"riskScore"`
}

// Manifest records provenance and methodology for one run.
type Manifest struct {
	Version              string                `json:"version"`
	RunID                string                `json:"runId"`
	GeneratedAt          time.Time             `json:"generatedAt"`
	Generator            string                `json:"generator"`
	SourceData           SourceFile            `json:"sourceData"`
	OutputFiles          map[string]OutputFile `json:"outputFiles"`
	Methodology          Methodology           `json:"methodology"`
	ReproducibilityNotes []string              `json:"reproducibilityNotes"`
	ValidationNotes      []string              `json:"validationNotes"`
}

// SourceInfo is what the loader learned about the expense source.
type SourceInfo struct {
	Name     string
	SHA256   string
	Size     int64
	Modified time.Time
}

// ManifestInput gathers everything the manifest describes.
type ManifestInput struct {
	RunID       string
	GeneratedAt time.Time
	Source      SourceInfo
	Dataset     *domain.Dataset
	Deputies    int
	FraudFlags  int
	Mismatches  int
	Params      risk.Params
	Notes       []string
}

// BuildManifest assembles the provenance record.
func BuildManifest(in ManifestInput) *Manifest {
	var txs []domain.Transaction
	if in.Dataset != nil {
		txs = in.Dataset.Transactions
	}

	src := SourceFile{
		File:        in.Source.Name,
		SHA256:      in.Source.SHA256,
		SizeBytes:   in.Source.Size,
		APISource:   APISource,
		Period:      sourcePeriod(txs),
		RecordCount: len(txs),
	}
	if !in.Source.Modified.IsZero() {
		mod := in.Source.Modified.UTC()
		src.LastModified = &mod
	}
	for _, tx := range txs {
		if tx.HasAmount() {
			src.TotalValue += tx.Amount
		}
	}

	notes := in.Notes
	if notes == nil {
		notes = []string{}
	}

	return &Manifest{
		Version:     ManifestVersion,
		RunID:       in.RunID,
		GeneratedAt: in.GeneratedAt,
		Generator:   Generator,
		SourceData:  src,
		OutputFiles: map[string]OutputFile{
			FileAggregations: {RecordCount: 1, Description: "Summary metrics and breakdowns by month/category/party/state"},
			FileDeputies:     {RecordCount: in.Deputies, Description: "Per-legislator data with risk scores and breakdowns"},
			FileFraudFlags:   {RecordCount: in.FraudFlags, Description: "Red flag details for legislators with anomalies"},
			FileMismatches:   {RecordCount: in.Mismatches, Description: "Supplier tax id activity code mismatches"},
		},
		Methodology: methodology(in.Params),
		ReproducibilityNotes: []string{
			"Scoring is deterministic; identical inputs produce identical profiles",
			"Chi-squared p-values use critical value lookup (discrete: 0.01, 0.05, 0.10)",
			"Source data hash can be used to verify identical input data",
			fmt.Sprintf("Benford analysis requires minimum %d transactions per legislator for reliability", in.Params.DigitMinSample),
		},
		ValidationNotes: notes,
	}
}

// sourcePeriod spans from the first month of the earliest year to the last
// month of the latest year actually present.
func sourcePeriod(txs []domain.Transaction) Period {
	minYear, maxYear := 0, 0
	for _, tx := range txs {
		if tx.Year == 0 {
			continue
		}
		if minYear == 0 || tx.Year < minYear {
			minYear = tx.Year
		}
		if tx.Year > maxYear {
			maxYear = tx.Year
		}
	}
	if minYear == 0 {
		return Period{Start: "unknown", End: "unknown"}
	}

	minMonth, maxMonth := 0, 0
	for _, tx := range txs {
		if tx.Month < 1 || tx.Month > 12 {
			continue
		}
		if tx.Year == minYear && (minMonth == 0 || tx.Month < minMonth) {
			minMonth = tx.Month
		}
		if tx.Year == maxYear && tx.Month > maxMonth {
			maxMonth = tx.Month
		}
	}
	if minMonth == 0 {
		minMonth = 1
	}
	if maxMonth == 0 {
		maxMonth = 12
	}
	return Period{
		Start: fmt.Sprintf("%d-%02d", minYear, minMonth),
		End:   fmt.Sprintf("%d-%02d", maxYear, maxMonth),
	}
}

func methodology(p risk.Params) Methodology {
	return Methodology{
		DigitTest: DigitTestMethod{
			ChiSquareCritical01: p.ChiSquareCritical01,
			ChiSquareCritical05: p.ChiSquareCritical05,
			DegreesOfFreedom:    8,
			MinSample:           p.DigitMinSample,
			Description:         "Chi-squared test for first digit distribution",
		},
		Concentration: ConcentrationMethod{
			Medium:      p.ConcentrationMedium,
			High:        p.ConcentrationHigh,
			Critical:    p.ConcentrationCritical,
			Default:     p.ConcentrationDefault,
			Description: "Herfindahl-Hirschman Index for supplier concentration",
		},
		RiskScore: ScoreMethod{
			BaseWeights: map[string]float64{
				"hhiCritical": p.BaseScoreCritical,
				"hhiHigh":     p.BaseScoreHigh,
				"hhiMedium":   p.BaseScoreMedium,
				"hhiLow":      p.BaseScoreLow,
			},
			AdditivePenalties: map[string]float64{
				"benfordSignificant":  p.DigitAnomalyPenalty,
				"roundValuesAbovePct": p.RoundValuePenalty,
				"topSupplierAbovePct": p.TopPayeePenalty,
				"zScorePartyAboveStd": p.PartyOutlierPenalty,
				"zScoreStateAboveStd": p.RegionOutlierPenalty,
			},
			Triggers: map[string]float64{
				"roundValuePct":   p.RoundValueThresholdPct,
				"topSupplierPct":  p.TopPayeeThresholdPct,
				"zScoreThreshold": p.ZScoreThreshold,
			},
			MaxScore: p.MaxScore,
			TierThresholds: map[string]float64{
				"CRITICAL": p.TierCriticalScore,
				"HIGH":     p.TierHighScore,
				"MEDIUM":   p.TierMediumScore,
				"LOW":      0,
			},
			ActivityFilter: map[string]float64{
				"minTotalSpending": p.MinTotalSpend,
				"minTransactions":  float64(p.MinTransactions),
			},
		},
	}
}
