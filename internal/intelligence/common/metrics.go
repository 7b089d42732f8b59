package common

import (
	"context"
	"sort"
	"sync"
	"time"

	appmetrics "github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// AnalysisMetrics is the telemetry API of the scoring engine.  The
// implementation (Prometheus, in-memory, noop) can be swapped without
// touching the scorers.
type AnalysisMetrics interface {
	// RecordAnalysis records one scoring operation.
	RecordAnalysis(ctx context.Context, params *AnalysisMetricParams)

	// RecordComplexity records a computed complexity score.
	RecordComplexity(ctx context.Context, score float64, category string)

	// RecordEnrollment records an enrollment forecast.
	RecordEnrollment(ctx context.Context, months float64, difficulty string)

	// RecordBenchmarkOmitted records a benchmark skipped for an undersized cohort.
	RecordBenchmarkOmitted(ctx context.Context, phase string)

	// RecordOutlier records a flagged benchmark outlier.
	RecordOutlier(ctx context.Context, metric, severity string)

	// RecordBatchProcessing records a batch run.
	RecordBatchProcessing(ctx context.Context, params *BatchMetricParams)

	// GetLatencyHistogram returns the analysis latency histogram.
	GetLatencyHistogram() LatencyHistogram

	// GetCurrentStats returns a point-in-time snapshot.
	GetCurrentStats() *AnalysisStats
}

// LatencyHistogram provides percentile-based latency observation.
type LatencyHistogram interface {
	Observe(durationMs float64)
	Percentile(p float64) float64
	Count() int64
	Sum() float64
}

// ---------------------------------------------------------------------------
// Parameter structs
// ---------------------------------------------------------------------------

// AnalysisMetricParams carries one scoring operation.
type AnalysisMetricParams struct {
	Operation  string  `json:"operation"`
	DurationMs float64 `json:"duration_ms"`
	Success    bool    `json:"success"`
	TextLength int     `json:"text_length,omitempty"`
}

// BatchMetricParams carries one batch run.
type BatchMetricParams struct {
	BatchName         string  `json:"batch_name"`
	TotalItems        int     `json:"total_items"`
	SuccessItems      int     `json:"success_items"`
	FailedItems       int     `json:"failed_items"`
	TotalDurationMs   float64 `json:"total_duration_ms"`
	AvgItemDurationMs float64 `json:"avg_item_duration_ms"`
	MaxConcurrency    int     `json:"max_concurrency"`
}

// AnalysisStats is a snapshot of scoring-engine telemetry.
type AnalysisStats struct {
	TotalAnalyses      int64            `json:"total_analyses"`
	FailedAnalyses     int64            `json:"failed_analyses"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	P50LatencyMs       float64          `json:"p50_latency_ms"`
	P95LatencyMs       float64          `json:"p95_latency_ms"`
	P99LatencyMs       float64          `json:"p99_latency_ms"`
	ByOperation        map[string]int64 `json:"by_operation"`
	ComplexityCategory map[string]int64 `json:"complexity_category"`
	BenchmarksOmitted  int64            `json:"benchmarks_omitted"`
	Outliers           int64            `json:"outliers"`
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// InMemoryAnalysisMetrics keeps every sample; used in tests and as the
// statistics source behind the Prometheus variant.
type InMemoryAnalysisMetrics struct {
	mu sync.Mutex

	analyses    []AnalysisMetricParams
	batches     []BatchMetricParams
	categories  map[string]int64
	difficulty  map[string]int64
	omitted     int64
	outliers    map[string]int64
	latencyHist *latencyHistogram
}

// NewInMemoryAnalysisMetrics returns an empty in-memory recorder.
func NewInMemoryAnalysisMetrics() *InMemoryAnalysisMetrics {
	return &InMemoryAnalysisMetrics{
		categories:  make(map[string]int64),
		difficulty:  make(map[string]int64),
		outliers:    make(map[string]int64),
		latencyHist: newLatencyHistogram(),
	}
}

func (m *InMemoryAnalysisMetrics) RecordAnalysis(_ context.Context, p *AnalysisMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.analyses = append(m.analyses, *p)
	m.mu.Unlock()
	m.latencyHist.Observe(p.DurationMs)
}

func (m *InMemoryAnalysisMetrics) RecordComplexity(_ context.Context, _ float64, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[category]++
}

func (m *InMemoryAnalysisMetrics) RecordEnrollment(_ context.Context, _ float64, difficulty string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.difficulty[difficulty]++
}

func (m *InMemoryAnalysisMetrics) RecordBenchmarkOmitted(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omitted++
}

func (m *InMemoryAnalysisMetrics) RecordOutlier(_ context.Context, metric, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outliers[metric]++
}

func (m *InMemoryAnalysisMetrics) RecordBatchProcessing(_ context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, *p)
}

func (m *InMemoryAnalysisMetrics) GetLatencyHistogram() LatencyHistogram { return m.latencyHist }

func (m *InMemoryAnalysisMetrics) GetCurrentStats() *AnalysisStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &AnalysisStats{
		ByOperation:        make(map[string]int64),
		ComplexityCategory: make(map[string]int64, len(m.categories)),
		BenchmarksOmitted:  m.omitted,
	}
	var sum float64
	for _, a := range m.analyses {
		s.TotalAnalyses++
		if !a.Success {
			s.FailedAnalyses++
		}
		s.ByOperation[a.Operation]++
		sum += a.DurationMs
	}
	if s.TotalAnalyses > 0 {
		s.AvgLatencyMs = sum / float64(s.TotalAnalyses)
	}
	for k, v := range m.categories {
		s.ComplexityCategory[k] = v
	}
	for _, v := range m.outliers {
		s.Outliers += v
	}
	s.P50LatencyMs = m.latencyHist.Percentile(50)
	s.P95LatencyMs = m.latencyHist.Percentile(95)
	s.P99LatencyMs = m.latencyHist.Percentile(99)
	return s
}

// Analyses returns a copy of the recorded operations.
func (m *InMemoryAnalysisMetrics) Analyses() []AnalysisMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AnalysisMetricParams(nil), m.analyses...)
}

// Batches returns a copy of the recorded batch runs.
func (m *InMemoryAnalysisMetrics) Batches() []BatchMetricParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BatchMetricParams(nil), m.batches...)
}

// DifficultyCounts returns enrollment forecasts per difficulty tier.
func (m *InMemoryAnalysisMetrics) DifficultyCounts() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.difficulty))
	for k, v := range m.difficulty {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// Prometheus implementation
// ---------------------------------------------------------------------------

type prometheusAnalysisMetrics struct {
	app   *appmetrics.AppMetrics
	stats *InMemoryAnalysisMetrics
}

// NewPrometheusAnalysisMetrics exports through the service AppMetrics while
// keeping an in-process copy for GetCurrentStats.
func NewPrometheusAnalysisMetrics(app *appmetrics.AppMetrics) AnalysisMetrics {
	if app == nil {
		app = appmetrics.NewNoopAppMetrics()
	}
	return &prometheusAnalysisMetrics{app: app, stats: NewInMemoryAnalysisMetrics()}
}

func (m *prometheusAnalysisMetrics) RecordAnalysis(ctx context.Context, p *AnalysisMetricParams) {
	if p == nil {
		return
	}
	m.app.AnalysesTotal.WithLabelValues(p.Operation).Inc()
	m.app.AnalysisDuration.WithLabelValues(p.Operation).Observe(p.DurationMs / 1000)
	if !p.Success {
		m.app.ErrorsTotal.WithLabelValues("analysis", p.Operation).Inc()
	}
	m.stats.RecordAnalysis(ctx, p)
}

func (m *prometheusAnalysisMetrics) RecordComplexity(ctx context.Context, score float64, category string) {
	m.app.ComplexityScore.WithLabelValues(category).Observe(score)
	m.stats.RecordComplexity(ctx, score, category)
}

func (m *prometheusAnalysisMetrics) RecordEnrollment(ctx context.Context, months float64, difficulty string) {
	m.app.EnrollmentMonths.WithLabelValues(difficulty).Observe(months)
	m.stats.RecordEnrollment(ctx, months, difficulty)
}

func (m *prometheusAnalysisMetrics) RecordBenchmarkOmitted(ctx context.Context, phase string) {
	m.app.BenchmarkOmitted.WithLabelValues(phase).Inc()
	m.stats.RecordBenchmarkOmitted(ctx, phase)
}

func (m *prometheusAnalysisMetrics) RecordOutlier(ctx context.Context, metric, severity string) {
	m.app.OutliersFlagged.WithLabelValues(metric, severity).Inc()
	m.stats.RecordOutlier(ctx, metric, severity)
}

func (m *prometheusAnalysisMetrics) RecordBatchProcessing(ctx context.Context, p *BatchMetricParams) {
	if p == nil {
		return
	}
	m.app.AnalysesTotal.WithLabelValues(p.BatchName).Add(float64(p.TotalItems))
	m.stats.RecordBatchProcessing(ctx, p)
}

func (m *prometheusAnalysisMetrics) GetLatencyHistogram() LatencyHistogram {
	return m.stats.GetLatencyHistogram()
}

func (m *prometheusAnalysisMetrics) GetCurrentStats() *AnalysisStats { return m.stats.GetCurrentStats() }

// ---------------------------------------------------------------------------
// Noop implementation
// ---------------------------------------------------------------------------

type noopAnalysisMetrics struct{}

// NewNoopAnalysisMetrics returns a recorder that discards everything.
func NewNoopAnalysisMetrics() AnalysisMetrics { return noopAnalysisMetrics{} }

func (noopAnalysisMetrics) RecordAnalysis(context.Context, *AnalysisMetricParams)     {}
func (noopAnalysisMetrics) RecordComplexity(context.Context, float64, string)         {}
func (noopAnalysisMetrics) RecordEnrollment(context.Context, float64, string)         {}
func (noopAnalysisMetrics) RecordBenchmarkOmitted(context.Context, string)            {}
func (noopAnalysisMetrics) RecordOutlier(context.Context, string, string)             {}
func (noopAnalysisMetrics) RecordBatchProcessing(context.Context, *BatchMetricParams) {}
func (noopAnalysisMetrics) GetLatencyHistogram() LatencyHistogram                     { return newLatencyHistogram() }
func (noopAnalysisMetrics) GetCurrentStats() *AnalysisStats                           { return &AnalysisStats{} }

// Timed runs fn and records it as operation.
func Timed(ctx context.Context, m AnalysisMetrics, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.RecordAnalysis(ctx, &AnalysisMetricParams{
		Operation:  operation,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000,
		Success:    err == nil,
	})
	return err
}

// ---------------------------------------------------------------------------
// latencyHistogram
// ---------------------------------------------------------------------------

type latencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	sum     float64
	sorted  bool
}

func newLatencyHistogram() *latencyHistogram {
	return &latencyHistogram{samples: make([]float64, 0, 256)}
}

func (h *latencyHistogram) Observe(durationMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, durationMs)
	h.sum += durationMs
	h.sorted = false
}

func (h *latencyHistogram) Percentile(p float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.sorted {
		sort.Float64s(h.samples)
		h.sorted = true
	}
	return Percentile(h.samples, p)
}

func (h *latencyHistogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.samples))
}

func (h *latencyHistogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

var (
	_ AnalysisMetrics  = (*InMemoryAnalysisMetrics)(nil)
	_ AnalysisMetrics  = (*prometheusAnalysisMetrics)(nil)
	_ AnalysisMetrics  = noopAnalysisMetrics{}
	_ LatencyHistogram = (*latencyHistogram)(nil)
)
