// Package metrics provides Prometheus instrumentation for scoring runs and
// the API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ceap_risk"

var (
	// ScoringRunsTotal counts scoring runs by final status.
	ScoringRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_runs_total",
			Help:      "Total scoring runs by final status.",
		},
		[]string{"status"},
	)

	// ScoringRunDuration observes end-to-end run latency.
	ScoringRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scoring_run_duration_seconds",
		Help:      "Scoring run duration in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// StepDuration observes pipeline step latency.
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_step_duration_seconds",
			Help:      "Pipeline step duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	// ProfilesByTier holds the tier distribution of the latest run.
	ProfilesByTier = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profiles",
			Help:      "Legislator profiles in the latest run by risk tier.",
		},
		[]string{"tier"},
	)

	// ValidationWarningsTotal counts non-blocking validation findings.
	ValidationWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_warnings_total",
			Help:      "Total non-blocking validation warnings by stage.",
		},
		[]string{"stage"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status class.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// JobsInFlight tracks scoring jobs currently executing.
	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "jobs_in_flight",
		Help:      "Scoring jobs currently executing.",
	})
)

func init() {
	prometheus.MustRegister(
		ScoringRunsTotal,
		ScoringRunDuration,
		StepDuration,
		ProfilesByTier,
		ValidationWarningsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		JobsInFlight,
	)
}

// ObserveRun records a finished scoring run.
func ObserveRun(status string, d time.Duration) {
	ScoringRunsTotal.WithLabelValues(status).Inc()
	ScoringRunDuration.Observe(d.Seconds())
}

// SetTierCounts replaces the tier distribution with the latest run's.
func SetTierCounts(counts map[string]int) {
	ProfilesByTier.Reset()
	for tier, n := range counts {
		ProfilesByTier.WithLabelValues(tier).Set(float64(n))
	}
}

// ObserveHTTP records one served request. route is the registered pattern,
// never the raw path.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, route, statusBucket(status)).Inc()
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
