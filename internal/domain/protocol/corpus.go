package protocol

import "time"

// CorpusRecord is one harvested registry study reduced to benchmarkable
// features.
type CorpusRecord struct {
	NCTID               string          `json:"nct_id"`
	Title               string          `json:"title"`
	Phase               Phase           `json:"phase"`
	StudyType           string          `json:"study_type,omitempty"`
	Status              string          `json:"status,omitempty"`
	Conditions          []string        `json:"conditions,omitempty"`
	TherapeuticArea     TherapeuticArea `json:"therapeutic_area"`
	SampleSize          int             `json:"sample_size"`
	InclusionCount      int             `json:"inclusion_count"`
	ExclusionCount      int             `json:"exclusion_count"`
	CriteriaCount       int             `json:"criteria_count"`
	PrimaryEndpoints    int             `json:"primary_endpoints"`
	SecondaryEndpoints  int             `json:"secondary_endpoints"`
	OtherEndpoints      int             `json:"other_endpoints"`
	Randomized          bool            `json:"randomized"`
	Masked              bool            `json:"masked"`
	ComplexityScore     float64         `json:"complexity_score"`
	HasProtocolDocument bool            `json:"has_protocol_document"`
	CollectedAt         time.Time       `json:"collected_at"`
}

// Metrics projects the record onto the benchmark metric set.
func (r CorpusRecord) Metrics() ProtocolMetrics {
	return ProtocolMetrics{
		SampleSize:      float64(r.SampleSize),
		ComplexityScore: r.ComplexityScore,
		CriteriaCount:   float64(r.CriteriaCount),
		EndpointCount:   float64(r.PrimaryEndpoints + r.SecondaryEndpoints + r.OtherEndpoints),
	}
}

// Distribution summarises one metric over a cohort.
type Distribution struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// CohortStats are the per-metric distributions of one cohort.
type CohortStats struct {
	Phase           Phase                   `json:"phase"`
	TherapeuticArea TherapeuticArea         `json:"therapeutic_area,omitempty"`
	Count           int                     `json:"count"`
	Metrics         map[string]Distribution `json:"metrics"`
}

// CohortKey names a (phase, area) cohort in Dataset.Areas.
func CohortKey(phase Phase, area TherapeuticArea) string {
	return string(phase) + "|" + string(area)
}

// Dataset is the persisted reference corpus: aggregate statistics keyed by
// phase and by (phase, area), plus the raw records for percentile
// recomputation.
type Dataset struct {
	Version        string                 `json:"version"`
	RunID          string                 `json:"run_id,omitempty"`
	GeneratedAt    time.Time              `json:"generated_at"`
	TotalProtocols int                    `json:"total_protocols"`
	MinCohortSize  int                    `json:"min_cohort_size"`
	Phases         map[Phase]CohortStats  `json:"phases"`
	Areas          map[string]CohortStats `json:"areas"`
	Records        []CorpusRecord         `json:"records"`
}

// DatasetVersion is written into every dataset this build produces.
const DatasetVersion = "1"
