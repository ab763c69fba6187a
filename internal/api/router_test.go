package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/ceap-risk/internal/api/handlers"
	"github.com/dvloznov/ceap-risk/internal/config"
	"github.com/dvloznov/ceap-risk/internal/jobs"
	"github.com/dvloznov/ceap-risk/internal/jobs/inmemory"
	"github.com/dvloznov/ceap-risk/internal/report"
	"github.com/dvloznov/ceap-risk/internal/risk"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockPublisher records published jobs and saves them to an optional store.
type MockPublisher struct {
	Published []*jobs.ScoringJob
	Store     jobs.JobStore
	Err       error
}

func (m *MockPublisher) PublishScoring(ctx context.Context, job *jobs.ScoringJob) error {
	if m.Err != nil {
		return m.Err
	}
	if job.JobID == "" {
		job.JobID = "job-" + string(rune('0'+len(m.Published)))
	}
	job.Status = jobs.JobStatusPending
	m.Published = append(m.Published, job)
	if m.Store != nil {
		return m.Store.SaveJob(ctx, job)
	}
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func sampleSnapshot() *handlers.Snapshot {
	return &handlers.Snapshot{
		RunID: "run-42",
		Bundle: &report.Bundle{
			Deputies: []*risk.LegislatorProfile{
				{ID: 1, Name: "Ana Lima", Party: "PA", Region: "SP", RiskScore: 0.9, RiskTier: risk.TierCritical},
				{ID: 2, Name: "Bruno Costa", Party: "PA", Region: "RJ", RiskScore: 0.56, RiskTier: risk.TierHigh},
				{ID: 3, Name: "Carla Dias", Party: "PB", Region: "SP", RiskScore: 0.4, RiskTier: risk.TierMedium},
				{ID: 4, Name: "Davi Souza", Party: "PB", Region: "BA", RiskScore: 0.6, RiskTier: risk.TierHigh},
			},
			Aggregations: &report.Aggregations{Meta: report.Meta{TotalTransactions: 120, TotalDeputies: 4}},
			Manifest:     &report.Manifest{Version: report.ManifestVersion, RunID: "run-42"},
		},
	}
}

type fixture struct {
	handler   http.Handler
	results   *handlers.Results
	publisher *MockPublisher
	store     *inmemory.Store
}

func newFixture(apiKey string) *fixture {
	store := inmemory.NewStore()
	f := &fixture{
		results:   handlers.NewResults(),
		publisher: &MockPublisher{Store: store},
		store:     store,
	}
	f.handler = NewRouter(RouterDeps{
		Results:    f.results,
		Publisher:  f.publisher,
		JobStore:   store,
		Sources:    config.Sources{Expenses: "gs://ceap-data/despesas.csv"},
		MaxRetries: 3,
		APIKey:     apiKey,
		Log:        zerolog.Nop(),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type listResponse struct {
	RunID       string                    `json:"run_id"`
	Legislators []*risk.LegislatorProfile `json:"legislators"`
	Count       int                       `json:"count"`
	Total       int                       `json:"total"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_NoRunYet(t *testing.T) {
	f := newFixture("")

	for _, path := range []string{"/api/legislators", "/api/legislators/1", "/api/aggregations", "/api/manifest"} {
		rec := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "No completed scoring run")
	}
}

func TestRouter_ListLegislators(t *testing.T) {
	f := newFixture("")
	f.results.Publish(sampleSnapshot())

	tests := []struct {
		name      string
		query     string
		wantIDs   []int
		wantTotal int
	}{
		{"all in order", "", []int{1, 2, 3, 4}, 4},
		{"by tier", "?tier=high", []int{2, 4}, 2},
		{"by party and uf", "?party=pa&uf=SP", []int{1}, 1},
		{"paged", "?limit=2&offset=1", []int{2, 3}, 4},
		{"offset past end", "?offset=10", []int{}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/legislators"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			resp := decode[listResponse](t, rec)
			assert.Equal(t, "run-42", resp.RunID)
			assert.Equal(t, tt.wantTotal, resp.Total)
			assert.Equal(t, len(tt.wantIDs), resp.Count)
			ids := []int{}
			for _, p := range resp.Legislators {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestRouter_ListLegislatorsRejectsBadQuery(t *testing.T) {
	f := newFixture("")
	f.results.Publish(sampleSnapshot())

	for _, q := range []string{"?tier=ALTO", "?limit=0", "?limit=x", "?offset=-1"} {
		rec := f.do(t, http.MethodGet, "/api/legislators"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestRouter_GetLegislator(t *testing.T) {
	f := newFixture("")
	f.results.Publish(sampleSnapshot())

	rec := f.do(t, http.MethodGet, "/api/legislators/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"riskLevel":"MEDIUM"`)
	p := decode[risk.LegislatorProfile](t, rec)
	assert.Equal(t, "Carla Dias", p.Name)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/legislators/99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/legislators/abc", nil).Code)
}

func TestRouter_Documents(t *testing.T) {
	f := newFixture("")
	f.results.Publish(sampleSnapshot())

	rec := f.do(t, http.MethodGet, "/api/aggregations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agg := decode[report.Aggregations](t, rec)
	assert.Equal(t, 120, agg.Meta.TotalTransactions)

	rec = f.do(t, http.MethodGet, "/api/manifest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[report.Manifest](t, rec)
	assert.Equal(t, "run-42", m.RunID)
}

func TestRouter_CreateRunAndTrackJob(t *testing.T) {
	f := newFixture("")

	rec := f.do(t, http.MethodPost, "/api/runs", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	created := decode[map[string]string](t, rec)
	assert.Equal(t, "pending", created["status"])

	require.Len(t, f.publisher.Published, 1)
	job := f.publisher.Published[0]
	assert.Equal(t, "gs://ceap-data/despesas.csv", job.Sources.Expenses)
	assert.Equal(t, 3, job.MaxRetries)
	assert.Equal(t, job.JobID, created["job_id"])

	rec = f.do(t, http.MethodGet, "/api/jobs/"+job.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[jobs.ScoringJob](t, rec)
	assert.Equal(t, jobs.JobStatusPending, got.Status)

	rec = f.do(t, http.MethodGet, "/api/jobs?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/jobs/unknown", nil).Code)
}

func TestRouter_CreateRunQueueClosed(t *testing.T) {
	f := newFixture("")
	f.publisher.Err = jobs.ErrQueueClosed
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/runs", nil).Code)

	f.publisher.Err = errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, f.do(t, http.MethodPost, "/api/runs", nil).Code)
}

func TestRouter_RunsRequireAPIKey(t *testing.T) {
	f := newFixture("s3cret")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/runs", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/runs", map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/runs", map[string]string{"X-API-Key": "s3cret"}).Code)
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/runs", map[string]string{"Authorization": "Bearer s3cret"}).Code)

	// Reads stay open.
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/jobs", nil).Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	f := newFixture("")

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	f.results.Publish(sampleSnapshot())
	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-42"`)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ceap_risk_http_requests_total"))
}

func TestRouter_MethodNotAllowedAndCORS(t *testing.T) {
	f := newFixture("")

	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodDelete, "/api/legislators", nil).Code)

	rec := f.do(t, http.MethodOptions, "/api/runs", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
