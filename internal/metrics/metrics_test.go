package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{202, "2xx"},
		{304, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusBucket(tt.code), "code %d", tt.code)
	}
}

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(ScoringRunsTotal.WithLabelValues("SUCCEEDED"))

	ObserveRun("SUCCEEDED", 3*time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(ScoringRunsTotal.WithLabelValues("SUCCEEDED")))
}

func TestSetTierCounts(t *testing.T) {
	SetTierCounts(map[string]int{"CRITICAL": 4, "LOW": 10})
	SetTierCounts(map[string]int{"HIGH": 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(ProfilesByTier.WithLabelValues("HIGH")))
	assert.Equal(t, 1, testutil.CollectAndCount(ProfilesByTier))
}

func TestMetricsEndpoint(t *testing.T) {
	JobsInFlight.Set(0)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ceap_risk_jobs_in_flight")
}
