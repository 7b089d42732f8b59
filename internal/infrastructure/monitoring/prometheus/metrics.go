package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric family the service exports.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec
	HTTPRateLimited     CounterVec

	// Analysis engine
	AnalysesTotal    CounterVec
	AnalysisDuration HistogramVec
	ComplexityScore  HistogramVec
	EnrollmentMonths HistogramVec
	BenchmarkOmitted CounterVec
	OutliersFlagged  CounterVec

	// Registry client
	RegistryRequestsTotal CounterVec
	RegistryDuration      HistogramVec
	RegistryRetries       CounterVec
	CacheHitsTotal        CounterVec
	CacheMissesTotal      CounterVec

	// Corpus collector
	CollectorRunsTotal     CounterVec
	CollectorRunDuration   HistogramVec
	CollectorStageAdded    CounterVec
	CollectorFailedSlices  CounterVec
	CollectorDuplicates    CounterVec
	CollectorPersistFailed CounterVec
	CorpusSize             GaugeVec
	EventsPublished        CounterVec

	// System
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultAnalysisDurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25}
	DefaultRegistryBuckets         = []float64{.1, .25, .5, 1, 2, 5, 10, 30}
	DefaultRunBuckets              = []float64{10, 30, 60, 300, 600, 1800, 3600, 7200}
	ScoreBuckets                   = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	MonthsBuckets                  = []float64{3, 6, 9, 12, 18, 24, 36, 48, 72}
)

// NewAppMetrics registers every family on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")
	m.HTTPRateLimited = collector.RegisterCounter("http_rate_limited_total", "Requests rejected by the per-client limiter", "path")

	m.AnalysesTotal = collector.RegisterCounter("analyses_total", "Protocol analyses run", "operation")
	m.AnalysisDuration = collector.RegisterHistogram("analysis_duration_seconds", "Protocol analysis duration", DefaultAnalysisDurationBuckets, "operation")
	m.ComplexityScore = collector.RegisterHistogram("complexity_score", "Distribution of computed complexity scores", ScoreBuckets, "category")
	m.EnrollmentMonths = collector.RegisterHistogram("enrollment_months", "Distribution of estimated enrollment months", MonthsBuckets, "difficulty")
	m.BenchmarkOmitted = collector.RegisterCounter("benchmark_omitted_total", "Benchmarks omitted for undersized cohorts", "phase")
	m.OutliersFlagged = collector.RegisterCounter("benchmark_outliers_total", "Benchmark outliers flagged", "metric", "severity")

	m.RegistryRequestsTotal = collector.RegisterCounter("registry_requests_total", "Registry HTTP requests", "status")
	m.RegistryDuration = collector.RegisterHistogram("registry_request_duration_seconds", "Registry request duration", DefaultRegistryBuckets)
	m.RegistryRetries = collector.RegisterCounter("registry_retries_total", "Registry request retries", "reason")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	m.CollectorRunsTotal = collector.RegisterCounter("collector_runs_total", "Corpus collection runs", "status")
	m.CollectorRunDuration = collector.RegisterHistogram("collector_run_duration_seconds", "Corpus collection run duration", DefaultRunBuckets)
	m.CollectorStageAdded = collector.RegisterCounter("collector_stage_added_total", "Unique protocols added per stage", "stage")
	m.CollectorFailedSlices = collector.RegisterCounter("collector_failed_slices_total", "Registry slices that failed and counted as empty", "stage")
	m.CollectorDuplicates = collector.RegisterCounter("collector_duplicates_total", "Duplicate protocols dropped")
	m.CollectorPersistFailed = collector.RegisterCounter("collector_persist_failures_total", "Per-protocol artifact writes that failed")
	m.CorpusSize = collector.RegisterGauge("corpus_protocols", "Protocols in the loaded reference corpus", "phase")
	m.EventsPublished = collector.RegisterCounter("events_published_total", "Domain events published", "topic", "status")

	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// NewNoopAppMetrics returns AppMetrics whose families discard samples.
func NewNoopAppMetrics() *AppMetrics {
	return NewAppMetrics(NewNoopCollector())
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRegistryCall records one registry round trip.
func RecordRegistryCall(m *AppMetrics, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.RegistryRequestsTotal.WithLabelValues(status).Inc()
	m.RegistryDuration.WithLabelValues().Observe(duration.Seconds())
}

// RecordCacheAccess records a cache lookup outcome.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordEvent records a publish attempt.
func RecordEvent(m *AppMetrics, topic string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.EventsPublished.WithLabelValues(topic, status).Inc()
}

// RecordError counts an error by component and code.
func RecordError(m *AppMetrics, component, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
