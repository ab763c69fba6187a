package briefing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/ceap-risk/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
	prompts      []string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.GenerateFunc(ctx, prompt)
}

func profiles() []*risk.LegislatorProfile {
	return []*risk.LegislatorProfile{
		{ID: 1, Name: "Alpha", RiskScore: 0.80, RiskTier: risk.TierCritical, RedFlags: []string{"flag a"}},
		{ID: 2, Name: "Beta", RiskScore: 0.60, RiskTier: risk.TierHigh},
		{ID: 3, Name: "Gamma", RiskScore: 1.00, RiskTier: risk.TierCritical},
		{ID: 4, Name: "Delta", RiskScore: 0.80, RiskTier: risk.TierCritical},
	}
}

func TestSelectCritical(t *testing.T) {
	got := SelectCritical(profiles(), 2)

	require.Len(t, got, 2)
	assert.Equal(t, "Gamma", got[0].Name)
	assert.Equal(t, "Alpha", got[1].Name)

	assert.Len(t, SelectCritical(profiles(), 10), 3)
	assert.Empty(t, SelectCritical(profiles(), 0))
}

func TestBrief(t *testing.T) {
	gen := &mockGenerator{GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Delta") {
			return "", errors.New("quota exceeded")
		}
		return "```\nFirst sentence.\n Second sentence.\n```", nil
	}}
	b := NewBriefer(gen, "gemini-2.5-flash", 5, time.Second)

	out, err := b.Brief(context.Background(), profiles())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Delta")
	assert.Contains(t, err.Error(), "quota exceeded")
	require.Len(t, out, 2)
	assert.Equal(t, "Gamma", out[0].Name)
	assert.Equal(t, "First sentence. Second sentence.", out[0].Summary)
	assert.Equal(t, "gemini-2.5-flash", out[0].Model)
	assert.Equal(t, risk.TierCritical, out[1].RiskLevel)
	assert.Len(t, gen.prompts, 3)
}

func TestBrief_CancelledContext(t *testing.T) {
	gen := &mockGenerator{GenerateFunc: func(ctx context.Context, prompt string) (string, error) {
		return "ok", nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewBriefer(gen, "m", 5, 0).Brief(ctx, profiles())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out)
}

func TestBuildPrompt(t *testing.T) {
	p := &risk.LegislatorProfile{
		Name: "Fulano", Party: "PX", Region: "RJ", RiskScore: 0.9, RiskTier: risk.TierCritical,
		TotalSpend: 123456.7, TransactionCount: 321,
		RedFlags: []string{"Top supplier accounts for 72.0% of spending"},
	}

	prompt := BuildPrompt(p)

	assert.Contains(t, prompt, "Legislator: Fulano (PX-RJ)")
	assert.Contains(t, prompt, "Risk score: 0.90 (CRITICAL)")
	assert.Contains(t, prompt, "- Top supplier accounts for 72.0% of spending\n")
	assert.NotContains(t, prompt, "none listed")
}

func TestCleanModelText(t *testing.T) {
	assert.Equal(t, "a b", cleanModelText("  a\n\nb  "))
	assert.Equal(t, "x", cleanModelText("```text\nx\n```"))
	assert.Equal(t, "", cleanModelText("```"))
}
