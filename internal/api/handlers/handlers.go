package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/ceap-risk/internal/api/middleware"
	"github.com/dvloznov/ceap-risk/internal/config"
	"github.com/dvloznov/ceap-risk/internal/jobs"
	"github.com/dvloznov/ceap-risk/internal/risk"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

const msgNoRun = "No completed scoring run"

// LegislatorsHandler serves the profiles and documents of the latest run.
type LegislatorsHandler struct {
	results *Results
	log     zerolog.Logger
}

// NewLegislatorsHandler creates a new legislators handler.
func NewLegislatorsHandler(results *Results, log zerolog.Logger) *LegislatorsHandler {
	return &LegislatorsHandler{results: results, log: log}
}

// ListLegislators handles GET /api/legislators
func (h *LegislatorsHandler) ListLegislators(w http.ResponseWriter, r *http.Request) {
	snap := h.results.Latest()
	if snap == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, msgNoRun)
		return
	}

	query := r.URL.Query()
	var tier *risk.Tier
	if s := query.Get("tier"); s != "" {
		t, err := risk.ParseTier(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid tier")
			return
		}
		tier = &t
	}
	party := query.Get("party")
	uf := query.Get("uf")

	limit, offset, ok := pagination(w, query.Get("limit"), query.Get("offset"))
	if !ok {
		return
	}

	matched := []*risk.LegislatorProfile{}
	for _, p := range snap.Bundle.Deputies {
		if tier != nil && p.RiskTier != *tier {
			continue
		}
		if party != "" && !strings.EqualFold(p.Party, party) {
			continue
		}
		if uf != "" && !strings.EqualFold(p.Region, uf) {
			continue
		}
		matched = append(matched, p)
	}

	page := matched[min(offset, len(matched)):]
	page = page[:min(limit, len(page))]

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":      snap.RunID,
		"legislators": page,
		"count":       len(page),
		"total":       len(matched),
	})
}

// GetLegislator handles GET /api/legislators/{id}
func (h *LegislatorsHandler) GetLegislator(w http.ResponseWriter, r *http.Request) {
	snap := h.results.Latest()
	if snap == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, msgNoRun)
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid legislator id")
		return
	}

	for _, p := range snap.Bundle.Deputies {
		if p.ID == id {
			middleware.WriteJSON(w, http.StatusOK, p)
			return
		}
	}
	middleware.WriteError(w, http.StatusNotFound, "Legislator not found")
}

// GetAggregations handles GET /api/aggregations
func (h *LegislatorsHandler) GetAggregations(w http.ResponseWriter, r *http.Request) {
	snap := h.results.Latest()
	if snap == nil || snap.Bundle.Aggregations == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, msgNoRun)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snap.Bundle.Aggregations)
}

// GetManifest handles GET /api/manifest
func (h *LegislatorsHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	snap := h.results.Latest()
	if snap == nil || snap.Bundle.Manifest == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, msgNoRun)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snap.Bundle.Manifest)
}

// RunsHandler enqueues scoring runs.
type RunsHandler struct {
	publisher  jobs.Publisher
	sources    config.Sources
	maxRetries int
	log        zerolog.Logger
}

// NewRunsHandler creates a new runs handler. Every job is queued with the
// configured sources.
func NewRunsHandler(publisher jobs.Publisher, sources config.Sources, maxRetries int, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{publisher: publisher, sources: sources, maxRetries: maxRetries, log: log}
}

// CreateRun handles POST /api/runs
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	job := &jobs.ScoringJob{
		Sources:    h.sources,
		MaxRetries: h.maxRetries,
	}

	if err := h.publisher.PublishScoring(r.Context(), job); err != nil {
		if errors.Is(err, jobs.ErrQueueClosed) {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Job queue is closed")
			return
		}
		h.log.Error().Err(err).Msg("Failed to enqueue scoring job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue scoring job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Msg("Scoring job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, ok := pagination(w, query.Get("limit"), query.Get("offset"))
	if !ok {
		return
	}
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
		Limit:  limit,
		Offset: offset,
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// pagination parses limit and offset, writing a 400 and returning false on
// bad input.
func pagination(w http.ResponseWriter, limitStr, offsetStr string) (int, int, bool) {
	limit, offset := defaultPageSize, 0
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if offsetStr != "" {
		n, err := strconv.Atoi(offsetStr)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid offset")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
