// Package api assembles the HTTP surface of the scoring service.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/ceap-risk/internal/api/handlers"
	"github.com/dvloznov/ceap-risk/internal/api/middleware"
	"github.com/dvloznov/ceap-risk/internal/config"
	"github.com/dvloznov/ceap-risk/internal/jobs"
	"github.com/dvloznov/ceap-risk/internal/metrics"
	"github.com/rs/zerolog"
)

// RouterDeps are the collaborators of the HTTP handlers.
type RouterDeps struct {
	Results    *handlers.Results
	Publisher  jobs.Publisher
	JobStore   jobs.JobStore
	Sources    config.Sources
	MaxRetries int
	APIKey     string
	Log        zerolog.Logger
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(d RouterDeps) http.Handler {
	legislators := handlers.NewLegislatorsHandler(d.Results, d.Log)
	runs := handlers.NewRunsHandler(d.Publisher, d.Sources, d.MaxRetries, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.JobStore, d.Log)

	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware.Metrics(pattern)(h))
	}

	handle("GET /api/legislators", http.HandlerFunc(legislators.ListLegislators))
	handle("GET /api/legislators/{id}", http.HandlerFunc(legislators.GetLegislator))
	handle("GET /api/aggregations", http.HandlerFunc(legislators.GetAggregations))
	handle("GET /api/manifest", http.HandlerFunc(legislators.GetManifest))

	handle("POST /api/runs", middleware.Auth(d.APIKey)(http.HandlerFunc(runs.CreateRun)))

	handle("GET /api/jobs", http.HandlerFunc(jobsHandler.ListJobs))
	handle("GET /api/jobs/{id}", http.HandlerFunc(jobsHandler.GetJob))

	handle("GET /health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		}
		if snap := d.Results.Latest(); snap != nil {
			body["run_id"] = snap.RunID
		}
		middleware.WriteJSON(w, http.StatusOK, body)
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	return middleware.Recovery(d.Log)(
		middleware.Logger(d.Log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)
}
