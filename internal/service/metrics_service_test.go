package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceExposesCounters(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/classes/:id/performance", http.StatusOK, 20*time.Millisecond)
	metrics.RecordResultsSubmitted("atomic", 3)
	metrics.RecordTransition("approved", 3)
	metrics.RecordExport("csv", "rendered")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `results_submitted_total{mode="atomic"} 3`)
	assert.Contains(t, body, `results_transitions_total{status="approved"} 3`)
	assert.Contains(t, body, `broadsheet_exports_total{format="csv",outcome="rendered"} 1`)

	snapshot := metrics.Snapshot()
	assert.EqualValues(t, 1, snapshot.RequestsTotal)
	assert.InDelta(t, 20.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.EqualValues(t, 3, snapshot.ResultsSubmitted)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordResultsSubmitted("single", 1)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, metrics.Snapshot().RequestsTotal)
}
