package handlers

import (
	"context"
	"testing"

	"github.com/dvloznov/ceap-risk/internal/pipeline"
	"github.com/dvloznov/ceap-risk/internal/report"
	"github.com/dvloznov/ceap-risk/internal/risk"
	"github.com/dvloznov/ceap-risk/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResults_PublishState(t *testing.T) {
	r := NewResults()
	assert.Nil(t, r.Latest())

	r.PublishState(&pipeline.PipelineState{
		RunID:  "run-1",
		Result: &risk.Result{Profiles: []*risk.LegislatorProfile{{ID: 1, Name: "Ana"}}},
	})

	snap := r.Latest()
	require.NotNil(t, snap)
	assert.Equal(t, "run-1", snap.RunID)
	assert.False(t, snap.CompletedAt.IsZero())
	require.Len(t, snap.Bundle.Deputies, 1)
	assert.Equal(t, "Ana", snap.Bundle.Deputies[0].Name)
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	w := report.NewWriter(dir, nil, "", "", zerolog.Nop())
	_, err := w.Write(ctx, &report.Bundle{
		Aggregations: &report.Aggregations{Meta: report.Meta{TotalDeputies: 2}},
		Deputies: []*risk.LegislatorProfile{
			{ID: 1, Name: "Ana", RiskTier: risk.TierHigh, RiskScore: 0.7},
			{ID: 2, Name: "Bruno", RiskTier: risk.TierLow, RiskScore: 0.2},
		},
		Manifest: &report.Manifest{RunID: "run-9"},
	})
	require.NoError(t, err)

	snap, err := LoadSnapshot(ctx, storage.NewStore(nil), dir)
	require.NoError(t, err)
	assert.Equal(t, "run-9", snap.RunID)
	require.Len(t, snap.Bundle.Deputies, 2)
	assert.Equal(t, risk.TierHigh, snap.Bundle.Deputies[0].RiskTier)
	require.NotNil(t, snap.Bundle.Aggregations)
	assert.Equal(t, 2, snap.Bundle.Aggregations.Meta.TotalDeputies)
}

func TestLoadSnapshot_MissingDeputies(t *testing.T) {
	_, err := LoadSnapshot(context.Background(), storage.NewStore(nil), t.TempDir())
	require.Error(t, err)
	assert.True(t, storage.IsNotExist(err))
}

func TestLocate(t *testing.T) {
	assert.Equal(t, "gs://bucket/out/deputies.json", locate("gs://bucket/out/", "deputies.json"))
	assert.Equal(t, "gs://bucket/deputies.json", locate("gs://bucket", "deputies.json"))
	assert.Equal(t, "public/data/deputies.json", locate("public/data", "deputies.json"))
}
