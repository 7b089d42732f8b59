// Package benchmarking positions a protocol's metrics against phase and
// therapeutic-area cohorts of the reference corpus and flags outliers.
package benchmarking

import (
	"fmt"
	"math"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/common"
)

// Polarity says which direction of a metric adds burden.
type Polarity int

const (
	// HigherIsWorse marks burden metrics such as criteria count.
	HigherIsWorse Polarity = iota
	// Neutral metrics are unusual at either extreme but not worse.
	Neutral
)

// metricPolarity defaults to HigherIsWorse.
var metricPolarity = map[string]Polarity{
	protocol.MetricSampleSize: Neutral,
}

var metricLabels = map[string]string{
	protocol.MetricSampleSize:      "sample size",
	protocol.MetricComplexityScore: "complexity score",
	protocol.MetricCriteriaCount:   "eligibility criteria count",
	protocol.MetricEndpointCount:   "endpoint count",
}

const (
	DefaultUpperThreshold = 95.0
	DefaultLowerThreshold = 5.0

	criticalUpper = 99.0
)

// Service benchmarks protocol metrics.  It reads an immutable Corpus and is
// safe for concurrent use.
type Service struct {
	corpus    *Corpus
	minCohort int
	upper     float64
	lower     float64
}

// Option customises a Service.
type Option func(*Service)

// WithMinCohortSize sets the statistical-validity floor.
func WithMinCohortSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minCohort = n
		}
	}
}

// WithOutlierThresholds sets the percentile bands that flag outliers.
func WithOutlierThresholds(upper, lower float64) Option {
	return func(s *Service) {
		if upper > lower && upper <= 100 && lower >= 0 {
			s.upper, s.lower = upper, lower
		}
	}
}

// NewService returns a Service over corpus; a nil corpus benchmarks nothing.
func NewService(corpus *Corpus, opts ...Option) *Service {
	if corpus == nil {
		corpus = NewCorpus(nil)
	}
	s := &Service{
		corpus:    corpus,
		minCohort: DefaultMinCohortSize,
		upper:     DefaultUpperThreshold,
		lower:     DefaultLowerThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Corpus returns the indexed corpus.
func (s *Service) Corpus() *Corpus { return s.corpus }

// MinCohortSize is the smallest cohort this service benchmarks against.
func (s *Service) MinCohortSize() int { return s.minCohort }

// Summary summarises the corpus at this service's cohort floor.
func (s *Service) Summary() map[protocol.Phase]CohortSummary {
	return s.corpus.Summary(s.minCohort)
}

// selectCohort prefers the (phase, area) cohort and falls back to the phase
// cohort; ok is false when neither reaches the floor.
func (s *Service) selectCohort(phase protocol.Phase, area protocol.TherapeuticArea) (*cohort, bool) {
	if area != "" {
		if co, ok := s.corpus.areas[protocol.CohortKey(phase, area)]; ok && co.count >= s.minCohort {
			return co, true
		}
	}
	if co, ok := s.corpus.phases[phase]; ok && co.count >= s.minCohort {
		return co, true
	}
	return nil, false
}

// Benchmark compares metrics with the matching cohort.  ok is false, and the
// benchmark must be omitted, when no cohort reaches the floor.
func (s *Service) Benchmark(m protocol.ProtocolMetrics, phase protocol.Phase, area protocol.TherapeuticArea) (protocol.Benchmark, bool) {
	co, ok := s.selectCohort(phase, area)
	if !ok {
		return protocol.Benchmark{}, false
	}

	b := protocol.Benchmark{
		Phase:           phase,
		TherapeuticArea: area,
		Cohort:          co.key,
		CohortSize:      co.count,
		Metrics:         make([]protocol.BenchmarkMetric, 0, len(protocol.MetricNames)),
		Outliers:        []protocol.Outlier{},
	}
	for _, name := range protocol.MetricNames {
		v, _ := m.Value(name)
		pct := common.Round1(co.rank(name, v))
		median := common.Round1(co.median(name))
		pol := metricPolarity[name]
		b.Metrics = append(b.Metrics, protocol.BenchmarkMetric{
			Name:           name,
			ProtocolValue:  v,
			IndustryMedian: median,
			Percentile:     pct,
			Category:       s.category(pct, pol),
			Insight:        insight(name, v, median, pct),
		})
		if o, flagged := s.outlier(name, v, pct, pol); flagged {
			b.Outliers = append(b.Outliers, o)
		}
	}
	b.IndustryContext = s.context(co)
	return b, true
}

// category grades a percentile.  Burden metrics score better the lower they
// sit; neutral metrics are Average inside the outlier band.
func (s *Service) category(pct float64, pol Polarity) protocol.MetricCategory {
	if pol == Neutral {
		if pct > s.lower && pct < s.upper {
			return protocol.CategoryAverage
		}
		return protocol.CategoryBelowAverage
	}
	switch fav := 100 - pct; {
	case fav >= 80:
		return protocol.CategoryExcellent
	case fav >= 60:
		return protocol.CategoryGood
	case fav >= 40:
		return protocol.CategoryAverage
	case fav >= 20:
		return protocol.CategoryBelowAverage
	default:
		return protocol.CategoryPoor
	}
}

// outlier flags a metric strictly beyond a threshold.  A percentile equal
// to a threshold is not an outlier.
func (s *Service) outlier(name string, v, pct float64, pol Polarity) (protocol.Outlier, bool) {
	high := pct > s.upper
	low := pct < s.lower
	if !high && !low {
		return protocol.Outlier{}, false
	}
	label := metricLabels[name]
	o := protocol.Outlier{Metric: name, Value: v, Percentile: pct, Severity: protocol.SeverityInfo}
	switch {
	case pol == HigherIsWorse && high:
		o.Severity = protocol.SeverityWarning
		if pct > criticalUpper {
			o.Severity = protocol.SeverityCritical
		}
		o.Recommendation = fmt.Sprintf("The %s is higher than %.0f%% of comparable protocols; reduce it to the cohort norm.", label, pct)
	case pol == HigherIsWorse && low:
		o.Recommendation = fmt.Sprintf("The %s is leaner than %.0f%% of comparable protocols; confirm nothing essential is missing.", label, 100-pct)
	case high:
		o.Recommendation = fmt.Sprintf("The %s is unusually large for this cohort; check the power calculation and the enrollment plan.", label)
	default:
		o.Recommendation = fmt.Sprintf("The %s is unusually small for this cohort; check that the study is adequately powered.", label)
	}
	return o, true
}

func insight(name string, v, median, pct float64) string {
	label := metricLabels[name]
	switch {
	case median == 0 && v == 0:
		return fmt.Sprintf("The %s matches the cohort median.", label)
	case math.Abs(v-median) < 1e-9:
		return fmt.Sprintf("The %s matches the cohort median of %.1f.", label, median)
	case v > median:
		return fmt.Sprintf("The %s of %.1f is above the cohort median of %.1f (percentile %.0f).", label, v, median, pct)
	default:
		return fmt.Sprintf("The %s of %.1f is below the cohort median of %.1f (percentile %.0f).", label, v, median, pct)
	}
}

func (s *Service) context(co *cohort) []string {
	out := []string{
		fmt.Sprintf("Compared with %d %s protocols from the reference corpus.", co.count, co.label),
	}
	if med := co.median(protocol.MetricSampleSize); med > 0 {
		out = append(out, fmt.Sprintf("Typical enrollment in this cohort is %.0f participants.", med))
	}
	if med := co.median(protocol.MetricCriteriaCount); med > 0 {
		out = append(out, fmt.Sprintf("Comparable protocols list a median of %.0f eligibility criteria.", med))
	}
	if total := s.corpus.Size(); total > co.count {
		out = append(out, fmt.Sprintf("The full corpus holds %d protocols.", total))
	}
	return out
}
