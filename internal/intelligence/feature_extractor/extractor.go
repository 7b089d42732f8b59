// Package feature_extractor turns unstructured protocol text into
// protocol.ProtocolFeatures.  Each feature is produced by a small capability
// interface backed by an ordered chain of regular expressions; the Extractor
// aggregates them and fills documented defaults for anything not found.
// Extraction never fails.
package feature_extractor

import (
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
)

// ---------------------------------------------------------------------------
// Capability interfaces
// ---------------------------------------------------------------------------

// SampleSizeExtractor finds the target enrollment.
type SampleSizeExtractor interface {
	SampleSize(text string) (int, bool)
}

// CriteriaCounter counts eligibility criteria per section.
type CriteriaCounter interface {
	Inclusion(text string) (int, bool)
	Exclusion(text string) (int, bool)
}

// AgeRangeExtractor finds the eligible age window; nil when absent.
type AgeRangeExtractor interface {
	AgeRange(text string) *protocol.AgeRange
}

// WashoutExtractor finds the required washout period in days.
type WashoutExtractor interface {
	WashoutDays(text string) (int, bool)
}

// AreaClassifier assigns a therapeutic area.
type AreaClassifier interface {
	Classify(text string) protocol.TherapeuticArea
}

// PopulationClassifier detects sex restriction and disease prevalence.
type PopulationClassifier interface {
	Gender(text string) protocol.Gender
	Prevalence(text string) protocol.Prevalence
}

// RequirementDetector detects operational flags and comorbidity limits.
type RequirementDetector interface {
	Requirements(text string) Requirements
}

// ScheduleExtractor detects visit cadence and study duration.
type ScheduleExtractor interface {
	VisitFrequency(text string) (protocol.VisitFrequency, bool)
	DurationMonths(text string) (int, bool)
}

// EndpointCounter counts endpoints per tier.
type EndpointCounter interface {
	Endpoints(text string) protocol.EndpointCounts
}

// DesignDetector detects phase, randomization and masking.
type DesignDetector interface {
	Design(text string) Design
}

// CompetitionAssessor grades the competing-trials landscape.
type CompetitionAssessor interface {
	Competition(text string) protocol.CompetitionLevel
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extractor aggregates the capability implementations.  It holds no mutable
// state and is safe for concurrent use.
type Extractor struct {
	sampleSize  SampleSizeExtractor
	criteria    CriteriaCounter
	ageRange    AgeRangeExtractor
	washout     WashoutExtractor
	area        AreaClassifier
	population  PopulationClassifier
	requirement RequirementDetector
	schedule    ScheduleExtractor
	endpoints   EndpointCounter
	design      DesignDetector
	competition CompetitionAssessor
	logger      logging.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

func WithSampleSizeExtractor(x SampleSizeExtractor) Option {
	return func(e *Extractor) { e.sampleSize = x }
}

func WithCriteriaCounter(x CriteriaCounter) Option {
	return func(e *Extractor) { e.criteria = x }
}

func WithAgeRangeExtractor(x AgeRangeExtractor) Option {
	return func(e *Extractor) { e.ageRange = x }
}

func WithWashoutExtractor(x WashoutExtractor) Option {
	return func(e *Extractor) { e.washout = x }
}

func WithAreaClassifier(x AreaClassifier) Option {
	return func(e *Extractor) { e.area = x }
}

func WithPopulationClassifier(x PopulationClassifier) Option {
	return func(e *Extractor) { e.population = x }
}

func WithRequirementDetector(x RequirementDetector) Option {
	return func(e *Extractor) { e.requirement = x }
}

func WithScheduleExtractor(x ScheduleExtractor) Option {
	return func(e *Extractor) { e.schedule = x }
}

func WithEndpointCounter(x EndpointCounter) Option {
	return func(e *Extractor) { e.endpoints = x }
}

func WithDesignDetector(x DesignDetector) Option {
	return func(e *Extractor) { e.design = x }
}

func WithCompetitionAssessor(x CompetitionAssessor) Option {
	return func(e *Extractor) { e.competition = x }
}

// WithLogger sets the debug logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New returns an Extractor wired with the regex implementations.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		sampleSize:  regexSampleSize{},
		criteria:    segmentCriteriaCounter{},
		ageRange:    regexAgeRange{},
		washout:     regexWashout{},
		area:        keywordAreaClassifier{},
		population:  keywordPopulation{},
		requirement: keywordRequirements{},
		schedule:    regexSchedule{},
		endpoints:   sectionEndpoints{},
		design:      regexDesign{},
		competition: keywordCompetition{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrNop(e.logger)
	return e
}

var defaultExtractor = New()

// ExtractFeatures runs the default extractor.
func ExtractFeatures(text string) protocol.ProtocolFeatures {
	return defaultExtractor.Extract(text)
}

// Extract returns a fully populated feature set.  Fields whose patterns find
// nothing keep their defaults; MatchedFields lists the ones that were found.
func (e *Extractor) Extract(text string) protocol.ProtocolFeatures {
	text = Normalize(text)
	f := protocol.DefaultFeatures()
	f.MatchedFields = []string{}
	hit := func(field string) { f.MatchedFields = append(f.MatchedFields, field) }

	if n, ok := e.sampleSize.SampleSize(text); ok {
		f.SampleSize = n
		hit(protocol.FieldSampleSize)
	}
	if n, ok := e.criteria.Inclusion(text); ok {
		f.InclusionCount = n
		hit(protocol.FieldInclusion)
	}
	if n, ok := e.criteria.Exclusion(text); ok {
		f.ExclusionCount = n
		hit(protocol.FieldExclusion)
	}
	if r := e.ageRange.AgeRange(text); r != nil {
		f.AgeRange = r
		hit(protocol.FieldAgeRange)
	}
	if d, ok := e.washout.WashoutDays(text); ok {
		f.WashoutDays = d
		hit(protocol.FieldWashout)
	}
	if a := e.area.Classify(text); a.Valid() && a != protocol.AreaOther {
		f.TherapeuticArea = a
		hit(protocol.FieldTherapeuticArea)
	}
	if g := e.population.Gender(text); g.Valid() {
		f.Gender = g
	}
	if p := e.population.Prevalence(text); p.Valid() {
		f.Prevalence = p
	}

	req := e.requirement.Requirements(text)
	f.GeographicRestriction = req.Geographic
	f.BiomarkerRequired = req.Biomarker
	f.PriorTreatmentRequired = req.PriorTreatment
	f.InvasiveProcedures = req.Invasive
	f.InpatientStays = req.Inpatient
	f.ComorbidityRestrictions = clamp(req.Comorbidities, 0, protocol.MaxComorbidities)

	if v, ok := e.schedule.VisitFrequency(text); ok && v.Valid() {
		f.VisitFrequency = v
		hit(protocol.FieldVisitFrequency)
	}
	if m, ok := e.schedule.DurationMonths(text); ok {
		f.StudyDurationMonths = m
		hit(protocol.FieldDuration)
	}
	if c := e.competition.Competition(text); c.Valid() {
		f.CompetingTrials = c
	}

	ep := e.endpoints.Endpoints(text)
	if ep.Primary >= 1 {
		f.Endpoints = ep
		if primaryMention.MatchString(text) {
			hit(protocol.FieldEndpoints)
		}
	}

	d := e.design.Design(text)
	f.Randomized = d.Randomized
	f.Masked = d.Masked
	if d.Phase.Valid() && d.Phase != protocol.PhaseNA {
		f.Phase = d.Phase
		hit(protocol.FieldPhase)
	}

	e.logger.Debug("features extracted",
		logging.Int("text_length", len(text)),
		logging.Int("sample_size", f.SampleSize),
		logging.Int("criteria", f.CriteriaCount()),
		logging.String("area", string(f.TherapeuticArea)),
		logging.String("phase", string(f.Phase)),
		logging.Int("matched_fields", len(f.MatchedFields)))
	return f
}
