package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a JSON-friendly digest of the collected metrics.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	ResultsSubmitted         uint64    `json:"results_submitted"`
	ResultsTransitioned      uint64    `json:"results_transitioned"`
	PerformanceBuilds        uint64    `json:"performance_builds"`
	AverageBuildDurationMs   float64   `json:"average_build_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService owns the Prometheus registry for HTTP, cache and results instrumentation.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheWrite       prometheus.Observer
	cacheHitRatio    prometheus.Gauge
	cacheLookups     *prometheus.CounterVec
	resultsWritten   *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	exportJobs       *prometheus.CounterVec
	performanceBuild prometheus.Observer

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	submittedCount       uint64
	transitionedCount    uint64
	buildCount           uint64
	buildDurationTotal   uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups partitioned by outcome",
	}, []string{"outcome"})

	resultsWritten := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "results_submitted_total",
		Help: "Result records written, by submission mode",
	}, []string{"mode"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "results_transitions_total",
		Help: "Result records moved to a new lifecycle status",
	}, []string{"status"})

	exportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadsheet_exports_total",
		Help: "Broadsheet exports by format and outcome",
	}, []string{"format", "outcome"})

	performanceBuild := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "class_performance_build_seconds",
		Help:    "Time spent loading and aggregating a class performance view",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheLookups,
		resultsWritten, transitions, exportJobs, performanceBuild, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheWrite:       cacheWrite,
		cacheHitRatio:    cacheHitRatio,
		cacheLookups:     cacheLookups,
		resultsWritten:   resultsWritten,
		transitions:      transitions,
		exportJobs:       exportJobs,
		performanceBuild: performanceBuild,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordResultsSubmitted counts stored result records.
func (m *MetricsService) RecordResultsSubmitted(mode string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.resultsWritten.WithLabelValues(mode).Add(float64(count))
	atomic.AddUint64(&m.submittedCount, uint64(count))
}

// RecordTransition counts records moved into status.
func (m *MetricsService) RecordTransition(status string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.transitions.WithLabelValues(status).Add(float64(count))
	atomic.AddUint64(&m.transitionedCount, uint64(count))
}

// RecordExport counts a rendered or failed broadsheet export.
func (m *MetricsService) RecordExport(format, outcome string) {
	if m == nil {
		return
	}
	m.exportJobs.WithLabelValues(format, outcome).Inc()
}

// ObservePerformanceBuild records the time spent computing a class view.
func (m *MetricsService) ObservePerformanceBuild(duration time.Duration) {
	if m == nil {
		return
	}
	m.performanceBuild.Observe(duration.Seconds())
	atomic.AddUint64(&m.buildCount, 1)
	atomic.AddUint64(&m.buildDurationTotal, uint64(duration.Nanoseconds()))
}

// Snapshot returns aggregated counters for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	builds := atomic.LoadUint64(&m.buildCount)

	snapshot := MetricsSnapshot{
		RequestsTotal:       requests,
		CacheHits:           hits,
		CacheMisses:         misses,
		ResultsSubmitted:    atomic.LoadUint64(&m.submittedCount),
		ResultsTransitioned: atomic.LoadUint64(&m.transitionedCount),
		PerformanceBuilds:   builds,
		Goroutines:          runtime.NumGoroutine(),
		GeneratedAt:         time.Now().UTC(),
	}
	if lookups := hits + misses; lookups > 0 {
		snapshot.CacheHitRatio = float64(hits) / float64(lookups)
	}
	if requests > 0 {
		snapshot.AverageRequestDurationMs = float64(atomic.LoadUint64(&m.requestDurationTotal)) / float64(requests) / float64(time.Millisecond)
	}
	if builds > 0 {
		snapshot.AverageBuildDurationMs = float64(atomic.LoadUint64(&m.buildDurationTotal)) / float64(builds) / float64(time.Millisecond)
	}
	return snapshot
}
