// Package protocol holds the data model shared by the scoring engine, the
// corpus collector and the API: extracted protocol features, scorer outputs
// and the reference corpus format.
package protocol

import "strings"

// Gender is the sex restriction in the eligibility criteria.
type Gender string

const (
	GenderBoth   Gender = "both"
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is a known member.
func (g Gender) Valid() bool {
	switch g {
	case GenderBoth, GenderMale, GenderFemale:
		return true
	}
	return false
}

// Restricted reports whether enrolment is limited to one sex.
func (g Gender) Restricted() bool { return g == GenderMale || g == GenderFemale }

// Prevalence classifies how common the target condition is.
type Prevalence string

const (
	PrevalenceCommon   Prevalence = "common"
	PrevalenceUncommon Prevalence = "uncommon"
	PrevalenceRare     Prevalence = "rare"
	PrevalenceVeryRare Prevalence = "very_rare"
)

// Valid reports whether p is a known member.
func (p Prevalence) Valid() bool {
	switch p {
	case PrevalenceCommon, PrevalenceUncommon, PrevalenceRare, PrevalenceVeryRare:
		return true
	}
	return false
}

// TherapeuticArea is the closed set of medical specialties a protocol can be
// classified into.
type TherapeuticArea string

const (
	AreaOncology          TherapeuticArea = "oncology"
	AreaHematology        TherapeuticArea = "hematology"
	AreaCardiology        TherapeuticArea = "cardiology"
	AreaNeurology         TherapeuticArea = "neurology"
	AreaPsychiatry        TherapeuticArea = "psychiatry"
	AreaEndocrinology     TherapeuticArea = "endocrinology"
	AreaInfectiousDisease TherapeuticArea = "infectious_disease"
	AreaRespiratory       TherapeuticArea = "respiratory"
	AreaImmunology        TherapeuticArea = "immunology"
	AreaGastroenterology  TherapeuticArea = "gastroenterology"
	AreaNephrology        TherapeuticArea = "nephrology"
	AreaDermatology       TherapeuticArea = "dermatology"
	AreaOphthalmology     TherapeuticArea = "ophthalmology"
	AreaOther             TherapeuticArea = "other"
)

// AllAreas lists every area in classification priority order.
var AllAreas = []TherapeuticArea{
	AreaOncology, AreaHematology, AreaCardiology, AreaNeurology, AreaPsychiatry,
	AreaEndocrinology, AreaInfectiousDisease, AreaRespiratory, AreaImmunology,
	AreaGastroenterology, AreaNephrology, AreaDermatology, AreaOphthalmology, AreaOther,
}

// Valid reports whether a is a known member.
func (a TherapeuticArea) Valid() bool {
	for _, known := range AllAreas {
		if a == known {
			return true
		}
	}
	return false
}

// ParseArea normalises free-form input ("Infectious Disease", "ONCOLOGY") to a
// TherapeuticArea, returning AreaOther for anything unknown.
func ParseArea(s string) TherapeuticArea {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if a := TherapeuticArea(key); a.Valid() {
		return a
	}
	return AreaOther
}

// VisitFrequency is the dominant scheduled-visit cadence.
type VisitFrequency string

const (
	VisitDaily     VisitFrequency = "daily"
	VisitWeekly    VisitFrequency = "weekly"
	VisitBiweekly  VisitFrequency = "biweekly"
	VisitMonthly   VisitFrequency = "monthly"
	VisitQuarterly VisitFrequency = "quarterly"
)

// Valid reports whether f is a known member.
func (f VisitFrequency) Valid() bool {
	switch f {
	case VisitDaily, VisitWeekly, VisitBiweekly, VisitMonthly, VisitQuarterly:
		return true
	}
	return false
}

// Frequent reports whether visits happen at least every two weeks.
func (f VisitFrequency) Frequent() bool {
	return f == VisitDaily || f == VisitWeekly || f == VisitBiweekly
}

// VisitsPerMonth is the nominal number of scheduled visits in one month.
func (f VisitFrequency) VisitsPerMonth() float64 {
	switch f {
	case VisitDaily:
		return 30
	case VisitWeekly:
		return 4.33
	case VisitBiweekly:
		return 2.17
	case VisitQuarterly:
		return 1.0 / 3
	default:
		return 1
	}
}

// CompetitionLevel describes how many competing trials recruit the same
// population.
type CompetitionLevel string

const (
	CompetitionLow    CompetitionLevel = "low"
	CompetitionMedium CompetitionLevel = "medium"
	CompetitionHigh   CompetitionLevel = "high"
)

// Valid reports whether c is a known member.
func (c CompetitionLevel) Valid() bool {
	switch c {
	case CompetitionLow, CompetitionMedium, CompetitionHigh:
		return true
	}
	return false
}

// AgeRange is an inclusive age window in years.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Span returns Max-Min.
func (r AgeRange) Span() int { return r.Max - r.Min }

// EndpointCounts tallies declared endpoints by tier.
type EndpointCounts struct {
	Primary   int `json:"primary"`
	Secondary int `json:"secondary"`
	Other     int `json:"other"`
}

// Total returns the number of endpoints across tiers.
func (e EndpointCounts) Total() int { return e.Primary + e.Secondary + e.Other }

// Extraction bounds and defaults.
const (
	DefaultSampleSize          = 100
	DefaultInclusionCount      = 5
	DefaultExclusionCount      = 3
	DefaultStudyDurationMonths = 12

	MaxSampleSize     = 10000
	MaxAge            = 120
	MaxWashoutDays    = 365
	MinInclusionCount = 1
	MaxInclusionCount = 30
	MaxExclusionCount = 20
	MaxComorbidities  = 20
	MaxDurationMonths = 240
)

// ProtocolFeatures is the structured snapshot extracted from one protocol
// text.  Every field has a deterministic default; a zero ProtocolFeatures is
// not a valid value, use DefaultFeatures.
type ProtocolFeatures struct {
	SampleSize              int              `json:"sample_size"`
	InclusionCount          int              `json:"inclusion_count"`
	ExclusionCount          int              `json:"exclusion_count"`
	AgeRange                *AgeRange        `json:"age_range,omitempty"`
	Gender                  Gender           `json:"gender"`
	Prevalence              Prevalence       `json:"prevalence"`
	TherapeuticArea         TherapeuticArea  `json:"therapeutic_area"`
	WashoutDays             int              `json:"washout_days"`
	GeographicRestriction   bool             `json:"geographic_restriction"`
	BiomarkerRequired       bool             `json:"biomarker_required"`
	PriorTreatmentRequired  bool             `json:"prior_treatment_required"`
	InvasiveProcedures      bool             `json:"invasive_procedures"`
	InpatientStays          bool             `json:"inpatient_stays"`
	ComorbidityRestrictions int              `json:"comorbidity_restrictions"`
	VisitFrequency          VisitFrequency   `json:"visit_frequency"`
	StudyDurationMonths     int              `json:"study_duration_months"`
	CompetingTrials         CompetitionLevel `json:"competing_trials"`
	Endpoints               EndpointCounts   `json:"endpoints"`
	Randomized              bool             `json:"randomized"`
	Masked                  bool             `json:"masked"`
	Phase                   Phase            `json:"phase"`

	// MatchedFields names the fields found in the text rather than
	// defaulted.  nil means the features were supplied directly.
	MatchedFields []string `json:"matched_fields,omitempty"`
}

// Field names recorded in MatchedFields.
const (
	FieldSampleSize      = "sample_size"
	FieldInclusion       = "inclusion_count"
	FieldExclusion       = "exclusion_count"
	FieldAgeRange        = "age_range"
	FieldTherapeuticArea = "therapeutic_area"
	FieldWashout         = "washout_days"
	FieldVisitFrequency  = "visit_frequency"
	FieldDuration        = "study_duration_months"
	FieldEndpoints       = "endpoints"
	FieldPhase           = "phase"
)

// Coverage returns the fraction of fields that were matched, 1 when the
// features were supplied directly.
func (f ProtocolFeatures) Coverage(fields ...string) float64 {
	if f.MatchedFields == nil || len(fields) == 0 {
		return 1
	}
	hits := 0
	for _, want := range fields {
		for _, got := range f.MatchedFields {
			if got == want {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(fields))
}

// DefaultFeatures returns the value extraction degrades to when no pattern
// matches.
func DefaultFeatures() ProtocolFeatures {
	return ProtocolFeatures{
		SampleSize:          DefaultSampleSize,
		InclusionCount:      DefaultInclusionCount,
		ExclusionCount:      DefaultExclusionCount,
		Gender:              GenderBoth,
		Prevalence:          PrevalenceCommon,
		TherapeuticArea:     AreaOther,
		VisitFrequency:      VisitMonthly,
		StudyDurationMonths: DefaultStudyDurationMonths,
		CompetingTrials:     CompetitionLow,
		Endpoints:           EndpointCounts{Primary: 1},
		Phase:               PhaseNA,
	}
}

// CriteriaCount is inclusion plus exclusion criteria.
func (f ProtocolFeatures) CriteriaCount() int { return f.InclusionCount + f.ExclusionCount }

// Metrics projects the features and a complexity score onto the benchmark
// metric set.
func (f ProtocolFeatures) Metrics(complexity float64) ProtocolMetrics {
	return ProtocolMetrics{
		SampleSize:      float64(f.SampleSize),
		ComplexityScore: complexity,
		CriteriaCount:   float64(f.CriteriaCount()),
		EndpointCount:   float64(f.Endpoints.Total()),
	}
}
