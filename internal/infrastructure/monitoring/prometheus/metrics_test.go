package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	t.Helper()
	c := newTestCollector(t)
	return NewAppMetrics(c), c
}

func TestNewAppMetrics_AllFamiliesSet(t *testing.T) {
	m, _ := newTestAppMetrics(t)
	require.NotNil(t, m)

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.AnalysisDuration)
	assert.NotNil(t, m.RegistryRequestsTotal)
	assert.NotNil(t, m.CollectorStageAdded)
	assert.NotNil(t, m.CorpusSize)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHTTPRequest(m, "POST", "/api/v1/protocols/analyze", 200, 20*time.Millisecond)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_http_requests_total{method="POST",path="/api/v1/protocols/analyze",status_code="200"} 1`)
	assert.Contains(t, out, `test_unit_http_request_duration_seconds_count{method="POST",path="/api/v1/protocols/analyze"} 1`)
}

func TestRecordRegistryCall(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordRegistryCall(m, 200, time.Second)
	RecordRegistryCall(m, 0, time.Second)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_registry_requests_total{status="200"} 1`)
	assert.Contains(t, out, `test_unit_registry_requests_total{status="error"} 1`)
	assert.Contains(t, out, `test_unit_registry_request_duration_seconds_count 2`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCacheAccess(m, "registry", true)
	RecordCacheAccess(m, "registry", false)
	RecordCacheAccess(m, "registry", false)

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_cache_hits_total{cache="registry"} 1`)
	assert.Contains(t, out, `test_unit_cache_misses_total{cache="registry"} 2`)
}

func TestRecordEventAndError(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordEvent(m, "protocol.analyzed", nil)
	RecordEvent(m, "protocol.analyzed", errors.New("broker down"))
	RecordError(m, "collector", "REG_001")

	out := scrapeMetrics(t, c)
	assert.Contains(t, out, `test_unit_events_published_total{status="success",topic="protocol.analyzed"} 1`)
	assert.Contains(t, out, `test_unit_events_published_total{status="failure",topic="protocol.analyzed"} 1`)
	assert.Contains(t, out, `test_unit_errors_total{code="REG_001",component="collector"} 1`)
}

func TestRecorders_NilMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordHTTPRequest(nil, "GET", "/", 200, time.Millisecond)
		RecordRegistryCall(nil, 200, time.Millisecond)
		RecordCacheAccess(nil, "x", true)
		RecordEvent(nil, "t", nil)
		RecordError(nil, "c", "e")
	})
}

func TestNewNoopAppMetrics(t *testing.T) {
	m := NewNoopAppMetrics()
	assert.NotPanics(t, func() {
		m.CollectorStageAdded.WithLabelValues("systematic").Add(3)
		m.CorpusSize.WithLabelValues("PHASE1").Set(10)
	})
}
