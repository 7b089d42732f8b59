// Package prometheus wraps prometheus/client_golang behind small interfaces so
// components record metrics without importing the client library, and tests
// can swap in the no-op collector.
package prometheus

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
)

// MetricsCollector registers metric families and serves them.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	RegisterSummary(name, help string, objectives map[float64]float64, labels ...string) SummaryVec
	Handler() http.Handler
	MustRegister(cs ...prometheus.Collector)
	Unregister(c prometheus.Collector) bool
}

// CounterVec is a labelled counter family.
type CounterVec interface {
	WithLabelValues(lvs ...string) Counter
}

// Counter only goes up.
type Counter interface {
	Inc()
	Add(delta float64)
}

// GaugeVec is a labelled gauge family.
type GaugeVec interface {
	WithLabelValues(lvs ...string) Gauge
}

// Gauge can go up and down.
type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(delta float64)
}

// HistogramVec is a labelled histogram family.
type HistogramVec interface {
	WithLabelValues(lvs ...string) Observer
}

// SummaryVec is a labelled summary family.
type SummaryVec interface {
	WithLabelValues(lvs ...string) Observer
}

// Observer receives samples for histograms and summaries.
type Observer interface {
	Observe(value float64)
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Namespace               string
	Subsystem               string
	EnableProcessMetrics    bool
	EnableGoMetrics         bool
	DefaultHistogramBuckets []float64
	ConstLabels             map[string]string
}

type registryCollector struct {
	registry *prometheus.Registry
	cfg      CollectorConfig
	logger   logging.Logger

	mu    sync.Mutex
	known map[string]prometheus.Collector
}

// NewMetricsCollector creates a collector backed by a private registry.
func NewMetricsCollector(cfg CollectorConfig, logger logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("prometheus: namespace is required")
	}
	if cfg.DefaultHistogramBuckets == nil {
		cfg.DefaultHistogramBuckets = prometheus.DefBuckets
	}

	reg := prometheus.NewRegistry()
	if cfg.EnableProcessMetrics {
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if cfg.EnableGoMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}

	return &registryCollector{
		registry: reg,
		cfg:      cfg,
		logger:   logging.OrNop(logger),
		known:    make(map[string]prometheus.Collector),
	}, nil
}

func (c *registryCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *registryCollector) MustRegister(cs ...prometheus.Collector) {
	c.registry.MustRegister(cs...)
}

func (c *registryCollector) Unregister(col prometheus.Collector) bool {
	return c.registry.Unregister(col)
}

// register returns the collector already registered under name, or registers
// fresh.  A second registration of the same name yields the first instance.
func (c *registryCollector) register(name string, fresh prometheus.Collector) (prometheus.Collector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fq := prometheus.BuildFQName(c.cfg.Namespace, c.cfg.Subsystem, name)
	if existing, ok := c.known[fq]; ok {
		return existing, nil
	}
	if err := c.registry.Register(fresh); err != nil {
		return nil, err
	}
	c.known[fq] = fresh
	return fresh, nil
}

func (c *registryCollector) fail(kind, name string, err error) {
	if err != nil {
		c.logger.Error("metric registration failed", logging.String("kind", kind), logging.String("name", name), logging.Err(err))
		return
	}
	c.logger.Warn("metric registered with a different type", logging.String("kind", kind), logging.String("name", name))
}

func (c *registryCollector) RegisterCounter(name, help string, labels ...string) CounterVec {
	got, err := c.register(name, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help, ConstLabels: c.cfg.ConstLabels,
	}, labels))
	if vec, ok := got.(*prometheus.CounterVec); ok && err == nil {
		return counterVec{vec}
	}
	c.fail("counter", name, err)
	return noopCounters{}
}

func (c *registryCollector) RegisterGauge(name, help string, labels ...string) GaugeVec {
	got, err := c.register(name, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help, ConstLabels: c.cfg.ConstLabels,
	}, labels))
	if vec, ok := got.(*prometheus.GaugeVec); ok && err == nil {
		return gaugeVec{vec}
	}
	c.fail("gauge", name, err)
	return noopGauges{}
}

func (c *registryCollector) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	if buckets == nil {
		buckets = c.cfg.DefaultHistogramBuckets
	}
	got, err := c.register(name, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help, ConstLabels: c.cfg.ConstLabels,
		Buckets: buckets,
	}, labels))
	if vec, ok := got.(*prometheus.HistogramVec); ok && err == nil {
		return histogramVec{vec}
	}
	c.fail("histogram", name, err)
	return noopObservers{}
}

func (c *registryCollector) RegisterSummary(name, help string, objectives map[float64]float64, labels ...string) SummaryVec {
	if objectives == nil {
		objectives = map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}
	}
	got, err := c.register(name, prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: c.cfg.Namespace, Subsystem: c.cfg.Subsystem, Name: name, Help: help, ConstLabels: c.cfg.ConstLabels,
		Objectives: objectives,
	}, labels))
	if vec, ok := got.(*prometheus.SummaryVec); ok && err == nil {
		return summaryVec{vec}
	}
	c.fail("summary", name, err)
	return noopObservers{}
}

type counterVec struct{ v *prometheus.CounterVec }

func (c counterVec) WithLabelValues(lvs ...string) Counter { return c.v.WithLabelValues(lvs...) }

type gaugeVec struct{ v *prometheus.GaugeVec }

func (g gaugeVec) WithLabelValues(lvs ...string) Gauge { return g.v.WithLabelValues(lvs...) }

type histogramVec struct{ v *prometheus.HistogramVec }

func (h histogramVec) WithLabelValues(lvs ...string) Observer { return h.v.WithLabelValues(lvs...) }

type summaryVec struct{ v *prometheus.SummaryVec }

func (s summaryVec) WithLabelValues(lvs ...string) Observer { return s.v.WithLabelValues(lvs...) }

// noop satisfies every sample interface.
type noop struct{}

func (noop) Inc()            {}
func (noop) Dec()            {}
func (noop) Add(float64)     {}
func (noop) Set(float64)     {}
func (noop) Observe(float64) {}

type noopCounters struct{}
type noopGauges struct{}
type noopObservers struct{}

func (noopCounters) WithLabelValues(...string) Counter   { return noop{} }
func (noopGauges) WithLabelValues(...string) Gauge       { return noop{} }
func (noopObservers) WithLabelValues(...string) Observer { return noop{} }

// noopCollector registers nothing and serves an empty exposition.
type noopCollector struct{}

// NewNoopCollector returns a MetricsCollector that discards everything.
func NewNoopCollector() MetricsCollector { return noopCollector{} }

func (noopCollector) RegisterCounter(string, string, ...string) CounterVec { return noopCounters{} }
func (noopCollector) RegisterGauge(string, string, ...string) GaugeVec     { return noopGauges{} }
func (noopCollector) RegisterHistogram(string, string, []float64, ...string) HistogramVec {
	return noopObservers{}
}
func (noopCollector) RegisterSummary(string, string, map[float64]float64, ...string) SummaryVec {
	return noopObservers{}
}
func (noopCollector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}
func (noopCollector) MustRegister(...prometheus.Collector) {}
func (noopCollector) Unregister(prometheus.Collector) bool { return false }

// Timer observes the elapsed seconds since creation.
type Timer struct {
	obs   Observer
	start time.Time
}

// NewTimer starts a Timer for obs.
func NewTimer(obs Observer) *Timer {
	return &Timer{obs: obs, start: time.Now()}
}

// ObserveDuration records the elapsed time and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	if t.obs != nil {
		t.obs.Observe(d.Seconds())
	}
	return d
}
