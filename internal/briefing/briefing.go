// Package briefing produces short plain-language summaries of the red flags
// behind the highest risk profiles. Briefings are descriptive only and never
// feed back into scoring.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/ceap-risk/internal/risk"
)

// Briefing is one generated summary.
type Briefing struct {
	LegislatorID int       `json:"id"`
	Name         string    `json:"name"`
	RiskScore    float64   `json:"riskScore"`
	RiskLevel    risk.Tier `json:"riskLevel"`
	Summary      string    `json:"summary"`
	Model        string    `json:"model"`
}

// Briefer selects profiles and asks the generator for their summaries.
type Briefer struct {
	gen     Generator
	model   string
	topN    int
	timeout time.Duration
}

// NewBriefer creates a Briefer. model is recorded on each briefing; timeout
// bounds every single request.
func NewBriefer(gen Generator, model string, topN int, timeout time.Duration) *Briefer {
	return &Briefer{gen: gen, model: model, topN: topN, timeout: timeout}
}

// Brief summarizes up to topN CRITICAL profiles, highest score first. A
// failed request skips that legislator; all failures are returned joined
// alongside the briefings that succeeded.
func (b *Briefer) Brief(ctx context.Context, profiles []*risk.LegislatorProfile) ([]Briefing, error) {
	selected := SelectCritical(profiles, b.topN)
	out := make([]Briefing, 0, len(selected))
	var errs []error

	for _, p := range selected {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		summary, err := b.one(ctx, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("briefing %q: %w", p.Name, err))
			continue
		}
		out = append(out, Briefing{
			LegislatorID: p.ID,
			Name:         p.Name,
			RiskScore:    p.RiskScore,
			RiskLevel:    p.RiskTier,
			Summary:      summary,
			Model:        b.model,
		})
	}
	return out, errors.Join(errs...)
}

func (b *Briefer) one(ctx context.Context, p *risk.LegislatorProfile) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	raw, err := b.gen.Generate(ctx, BuildPrompt(p))
	if err != nil {
		return "", err
	}
	text := cleanModelText(raw)
	if text == "" {
		return "", errors.New("empty summary")
	}
	return text, nil
}

// SelectCritical returns up to n CRITICAL profiles ordered by score, then id.
func SelectCritical(profiles []*risk.LegislatorProfile, n int) []*risk.LegislatorProfile {
	var out []*risk.LegislatorProfile
	for _, p := range profiles {
		if p.RiskTier == risk.TierCritical {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].ID < out[j].ID
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// BuildPrompt renders the request for one profile. Only the already computed
// evidence is sent.
func BuildPrompt(p *risk.LegislatorProfile) string {
	var b strings.Builder
	b.WriteString("You write neutral summaries of public expense data for journalists.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Summarize why the legislator below was flagged, in exactly two plain sentences.\n")
	b.WriteString("- Use only the facts listed. Do not speculate about intent or wrongdoing.\n")
	b.WriteString("- Return plain text only, no Markdown.\n\n")

	fmt.Fprintf(&b, "Legislator: %s (%s-%s)\n", p.Name, p.Party, p.Region)
	fmt.Fprintf(&b, "Risk score: %.2f (%s)\n", p.RiskScore, p.RiskTier)
	fmt.Fprintf(&b, "Total reimbursed: R$ %.2f over %d transactions\n", p.TotalSpend, p.TransactionCount)
	b.WriteString("Red flags:\n")
	if len(p.RedFlags) == 0 {
		b.WriteString("- none listed; the score comes from supplier concentration\n")
	}
	for _, flag := range p.RedFlags {
		b.WriteString("- " + flag + "\n")
	}
	return b.String()
}

func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return ""
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.Join(strings.Fields(s), " ")
}
