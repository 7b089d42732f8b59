package benchmarking

import (
	"sort"
	"time"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/common"
)

// DefaultMinCohortSize is the smallest cohort that yields a benchmark.
const DefaultMinCohortSize = 10

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

// Summarize computes the distribution of one metric.  Quantiles use linear
// interpolation between closest ranks.
func Summarize(values []float64) protocol.Distribution {
	if len(values) == 0 {
		return protocol.Distribution{}
	}
	s := common.Sorted(values)
	return protocol.Distribution{
		Count:  len(s),
		Min:    s[0],
		P25:    common.Percentile(s, 25),
		Median: common.Percentile(s, 50),
		P75:    common.Percentile(s, 75),
		P90:    common.Percentile(s, 90),
		Max:    s[len(s)-1],
		Mean:   common.Mean(s),
	}
}

func cohortStats(phase protocol.Phase, area protocol.TherapeuticArea, records []protocol.CorpusRecord) protocol.CohortStats {
	values := make(map[string][]float64, len(protocol.MetricNames))
	for _, r := range records {
		m := r.Metrics()
		for _, name := range protocol.MetricNames {
			v, _ := m.Value(name)
			values[name] = append(values[name], v)
		}
	}
	stats := protocol.CohortStats{
		Phase:           phase,
		TherapeuticArea: area,
		Count:           len(records),
		Metrics:         make(map[string]protocol.Distribution, len(values)),
	}
	for name, vs := range values {
		stats.Metrics[name] = Summarize(vs)
	}
	return stats
}

// BuildDataset groups records by phase and by (phase, area) and summarises
// every cohort that reaches minCohort.  Records are kept for percentile
// recomputation.
func BuildDataset(records []protocol.CorpusRecord, minCohort int, generatedAt time.Time, runID string) *protocol.Dataset {
	if minCohort <= 0 {
		minCohort = DefaultMinCohortSize
	}
	byPhase := make(map[protocol.Phase][]protocol.CorpusRecord)
	byArea := make(map[string][]protocol.CorpusRecord)
	for _, r := range records {
		byPhase[r.Phase] = append(byPhase[r.Phase], r)
		key := protocol.CohortKey(r.Phase, r.TherapeuticArea)
		byArea[key] = append(byArea[key], r)
	}

	ds := &protocol.Dataset{
		Version:        protocol.DatasetVersion,
		RunID:          runID,
		GeneratedAt:    generatedAt.UTC(),
		TotalProtocols: len(records),
		MinCohortSize:  minCohort,
		Phases:         make(map[protocol.Phase]protocol.CohortStats),
		Areas:          make(map[string]protocol.CohortStats),
		Records:        records,
	}
	for phase, rs := range byPhase {
		if len(rs) >= minCohort {
			ds.Phases[phase] = cohortStats(phase, "", rs)
		}
	}
	for key, rs := range byArea {
		if len(rs) >= minCohort {
			ds.Areas[key] = cohortStats(rs[0].Phase, rs[0].TherapeuticArea, rs)
		}
	}
	return ds
}

// ---------------------------------------------------------------------------
// Corpus index
// ---------------------------------------------------------------------------

// cohort holds sorted samples per metric, or only the stored distribution
// when the dataset carries no raw records.
type cohort struct {
	key     string
	label   string
	count   int
	samples map[string][]float64
	dists   map[string]protocol.Distribution
}

// Corpus is an immutable, query-ready view of a Dataset.
type Corpus struct {
	dataset   *protocol.Dataset
	phases    map[protocol.Phase]*cohort
	areas     map[string]*cohort
	allScores []float64
	byPhase   map[protocol.Phase][]float64
}

// NewCorpus indexes a dataset.  A nil dataset yields an empty corpus.
func NewCorpus(ds *protocol.Dataset) *Corpus {
	c := &Corpus{
		dataset: ds,
		phases:  make(map[protocol.Phase]*cohort),
		areas:   make(map[string]*cohort),
		byPhase: make(map[protocol.Phase][]float64),
	}
	if ds == nil {
		return c
	}

	if len(ds.Records) > 0 {
		groupP := make(map[protocol.Phase][]protocol.CorpusRecord)
		groupA := make(map[string][]protocol.CorpusRecord)
		for _, r := range ds.Records {
			groupP[r.Phase] = append(groupP[r.Phase], r)
			k := protocol.CohortKey(r.Phase, r.TherapeuticArea)
			groupA[k] = append(groupA[k], r)
			c.allScores = append(c.allScores, r.ComplexityScore)
			c.byPhase[r.Phase] = append(c.byPhase[r.Phase], r.ComplexityScore)
		}
		for p, rs := range groupP {
			c.phases[p] = sampleCohort(string(p), p.Label(), rs)
		}
		for k, rs := range groupA {
			c.areas[k] = sampleCohort(k, rs[0].Phase.Label()+" "+string(rs[0].TherapeuticArea), rs)
		}
		sort.Float64s(c.allScores)
		for p := range c.byPhase {
			sort.Float64s(c.byPhase[p])
		}
		return c
	}

	for p, st := range ds.Phases {
		c.phases[p] = &cohort{key: string(p), label: p.Label(), count: st.Count, dists: st.Metrics}
	}
	for k, st := range ds.Areas {
		c.areas[k] = &cohort{key: k, label: st.Phase.Label() + " " + string(st.TherapeuticArea), count: st.Count, dists: st.Metrics}
	}
	return c
}

func sampleCohort(key, label string, rs []protocol.CorpusRecord) *cohort {
	c := &cohort{key: key, label: label, count: len(rs), samples: make(map[string][]float64, len(protocol.MetricNames))}
	for _, r := range rs {
		m := r.Metrics()
		for _, name := range protocol.MetricNames {
			v, _ := m.Value(name)
			c.samples[name] = append(c.samples[name], v)
		}
	}
	for name := range c.samples {
		sort.Float64s(c.samples[name])
	}
	return c
}

// Dataset returns the indexed dataset, nil for an empty corpus.
func (c *Corpus) Dataset() *protocol.Dataset { return c.dataset }

// Size is the number of records, or the sum of phase cohorts for a
// statistics-only dataset.
func (c *Corpus) Size() int {
	if c.dataset == nil {
		return 0
	}
	if n := len(c.dataset.Records); n > 0 {
		return n
	}
	n := 0
	for _, p := range c.phases {
		n += p.count
	}
	return n
}

// ComplexityScores returns ascending corpus complexity scores for a phase,
// or for the whole corpus when phase is empty.
func (c *Corpus) ComplexityScores(phase protocol.Phase) []float64 {
	if phase == "" {
		return c.allScores
	}
	return c.byPhase[phase]
}

// CohortSize returns the size of the phase cohort, or the (phase, area)
// cohort when area is set.
func (c *Corpus) CohortSize(phase protocol.Phase, area protocol.TherapeuticArea) int {
	if area != "" {
		if co, ok := c.areas[protocol.CohortKey(phase, area)]; ok {
			return co.count
		}
		return 0
	}
	if co, ok := c.phases[phase]; ok {
		return co.count
	}
	return 0
}

// CohortSummary describes one phase cohort.  Metrics is empty for a cohort
// below the floor: it is too small to report quantiles from.
type CohortSummary struct {
	Phase         protocol.Phase                   `json:"phase"`
	Count         int                              `json:"count"`
	Benchmarkable bool                             `json:"benchmarkable"`
	Metrics       map[string]protocol.Distribution `json:"metrics,omitempty"`
}

// Summary returns per-phase statistics.  Every phase is listed with its
// count; quantiles are reported only for cohorts of at least minCohort.
func (c *Corpus) Summary(minCohort int) map[protocol.Phase]CohortSummary {
	if minCohort <= 0 {
		minCohort = DefaultMinCohortSize
	}
	out := make(map[protocol.Phase]CohortSummary, len(c.phases))
	for p, co := range c.phases {
		st := CohortSummary{Phase: p, Count: co.count}
		if co.count >= minCohort {
			st.Benchmarkable = true
			st.Metrics = make(map[string]protocol.Distribution)
			if co.samples != nil {
				for name, s := range co.samples {
					st.Metrics[name] = Summarize(s)
				}
			} else {
				for name, d := range co.dists {
					st.Metrics[name] = d
				}
			}
		}
		out[p] = st
	}
	return out
}

// median and rank answer from raw samples when present, otherwise from the
// stored quantiles.
func (co *cohort) median(metric string) float64 {
	if s, ok := co.samples[metric]; ok {
		return common.Percentile(s, 50)
	}
	return co.dists[metric].Median
}

func (co *cohort) rank(metric string, v float64) float64 {
	if s, ok := co.samples[metric]; ok {
		return common.PercentileRank(s, v)
	}
	return rankFromDistribution(co.dists[metric], v)
}

// rankFromDistribution interpolates a percentile between the stored
// quantile anchors.
func rankFromDistribution(d protocol.Distribution, v float64) float64 {
	if d.Count == 0 {
		return 50
	}
	anchors := []struct{ value, pct float64 }{
		{d.Min, 0}, {d.P25, 25}, {d.Median, 50}, {d.P75, 75}, {d.P90, 90}, {d.Max, 100},
	}
	if v < anchors[0].value {
		return 0
	}
	for i := 1; i < len(anchors); i++ {
		lo, hi := anchors[i-1], anchors[i]
		if v <= hi.value {
			if hi.value == lo.value {
				return (lo.pct + hi.pct) / 2
			}
			return lo.pct + (v-lo.value)/(hi.value-lo.value)*(hi.pct-lo.pct)
		}
	}
	return 100
}
