package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	appmetrics "github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/prometheus"
)

func TestInMemory_RecordAnalysis(t *testing.T) {
	m := NewInMemoryAnalysisMetrics()
	ctx := context.Background()
	m.RecordAnalysis(ctx, &AnalysisMetricParams{Operation: "complexity", DurationMs: 10, Success: true})
	m.RecordAnalysis(ctx, &AnalysisMetricParams{Operation: "complexity", DurationMs: 30, Success: true})
	m.RecordAnalysis(ctx, &AnalysisMetricParams{Operation: "enrollment", DurationMs: 20, Success: false})
	m.RecordAnalysis(ctx, nil)

	s := m.GetCurrentStats()
	assert.Equal(t, int64(3), s.TotalAnalyses)
	assert.Equal(t, int64(1), s.FailedAnalyses)
	assert.InDelta(t, 20.0, s.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(2), s.ByOperation["complexity"])
	assert.InDelta(t, 20.0, s.P50LatencyMs, 1e-9)
	assert.Equal(t, int64(3), m.GetLatencyHistogram().Count())
	assert.InDelta(t, 60.0, m.GetLatencyHistogram().Sum(), 1e-9)
	assert.Len(t, m.Analyses(), 3)
}

func TestInMemory_DomainCounters(t *testing.T) {
	m := NewInMemoryAnalysisMetrics()
	ctx := context.Background()
	m.RecordComplexity(ctx, 75, "Complex")
	m.RecordComplexity(ctx, 20, "Simple")
	m.RecordComplexity(ctx, 70, "Complex")
	m.RecordEnrollment(ctx, 14.5, "Moderate")
	m.RecordBenchmarkOmitted(ctx, "PHASE4")
	m.RecordOutlier(ctx, "sample_size", "Warning")
	m.RecordOutlier(ctx, "criteria_count", "Critical")

	s := m.GetCurrentStats()
	assert.Equal(t, int64(2), s.ComplexityCategory["Complex"])
	assert.Equal(t, int64(1), s.ComplexityCategory["Simple"])
	assert.Equal(t, int64(1), s.BenchmarksOmitted)
	assert.Equal(t, int64(2), s.Outliers)
	assert.Equal(t, int64(1), m.DifficultyCounts()["Moderate"])
}

func TestPrometheusAnalysisMetrics_Exports(t *testing.T) {
	c, err := appmetrics.NewMetricsCollector(appmetrics.CollectorConfig{Namespace: "pi", Subsystem: "test"}, logging.NewNopLogger())
	require.NoError(t, err)
	m := NewPrometheusAnalysisMetrics(appmetrics.NewAppMetrics(c))
	ctx := context.Background()

	m.RecordAnalysis(ctx, &AnalysisMetricParams{Operation: "analyze", DurationMs: 12, Success: true})
	m.RecordComplexity(ctx, 42, "Moderate")
	m.RecordOutlier(ctx, "sample_size", "Info")
	m.RecordBenchmarkOmitted(ctx, "PHASE1")

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := w.Body.String()
	assert.Contains(t, out, `pi_test_analyses_total{operation="analyze"} 1`)
	assert.Contains(t, out, `pi_test_complexity_score_count{category="Moderate"} 1`)
	assert.Contains(t, out, `pi_test_benchmark_outliers_total{metric="sample_size",severity="Info"} 1`)
	assert.Contains(t, out, `pi_test_benchmark_omitted_total{phase="PHASE1"} 1`)

	assert.Equal(t, int64(1), m.GetCurrentStats().TotalAnalyses)
}

func TestPrometheusAnalysisMetrics_NilApp(t *testing.T) {
	m := NewPrometheusAnalysisMetrics(nil)
	assert.NotPanics(t, func() {
		m.RecordAnalysis(context.Background(), &AnalysisMetricParams{Operation: "x", Success: true})
		m.RecordEnrollment(context.Background(), 10, "Easy")
	})
}

func TestNoopAnalysisMetrics(t *testing.T) {
	m := NewNoopAnalysisMetrics()
	m.RecordAnalysis(context.Background(), &AnalysisMetricParams{Operation: "x"})
	assert.Equal(t, int64(0), m.GetCurrentStats().TotalAnalyses)
	assert.Equal(t, int64(0), m.GetLatencyHistogram().Count())
}

func TestTimed(t *testing.T) {
	m := NewInMemoryAnalysisMetrics()
	boom := errors.New("boom")

	assert.NoError(t, Timed(context.Background(), m, "ok", func() error { return nil }))
	assert.ErrorIs(t, Timed(context.Background(), m, "fail", func() error { return boom }), boom)

	got := m.Analyses()
	require.Len(t, got, 2)
	assert.True(t, got[0].Success)
	assert.False(t, got[1].Success)
	assert.Equal(t, "fail", got[1].Operation)
}
