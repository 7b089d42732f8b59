package collection

import (
	"strings"
	"time"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/registry/clinicaltrials"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/complexity_scorer"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/feature_extractor"
)

// Mapper reduces registry studies to corpus records using the same
// extractor and scorer that analyse submitted protocols, so corpus scores
// and analysis scores are comparable.
type Mapper struct {
	extractor *feature_extractor.Extractor
}

// NewMapper wraps extractor; nil uses the default extractor.
func NewMapper(extractor *feature_extractor.Extractor) *Mapper {
	if extractor == nil {
		extractor = feature_extractor.New()
	}
	return &Mapper{extractor: extractor}
}

// Features extracts from the rendered study text, then prefers the
// registry's structured design fields over what the text patterns found.
func (m *Mapper) Features(s clinicaltrials.Study) protocol.ProtocolFeatures {
	f := m.extractor.Extract(s.Text())
	ps := s.ProtocolSection

	if n := ps.Design.Enrollment.Count; n > 0 {
		f.SampleSize = n
	}
	if phase := s.Phase(); phase != protocol.PhaseNA {
		f.Phase = phase
	}
	f.Randomized = f.Randomized || s.Randomized()
	f.Masked = f.Masked || s.Masked()
	if len(ps.Outcomes.Primary)+len(ps.Outcomes.Secondary)+len(ps.Outcomes.Other) > 0 {
		f.Endpoints = protocol.EndpointCounts{
			Primary:   len(ps.Outcomes.Primary),
			Secondary: len(ps.Outcomes.Secondary),
			Other:     len(ps.Outcomes.Other),
		}
	}
	return f
}

// Record maps one study.
func (m *Mapper) Record(s clinicaltrials.Study, collectedAt time.Time) protocol.CorpusRecord {
	f := m.Features(s)
	ps := s.ProtocolSection
	return protocol.CorpusRecord{
		NCTID:               s.NCTID(),
		Title:               strings.TrimSpace(s.Title()),
		Phase:               f.Phase,
		StudyType:           ps.Design.StudyType,
		Status:              ps.Status.OverallStatus,
		Conditions:          ps.Conditions.Conditions,
		TherapeuticArea:     f.TherapeuticArea,
		SampleSize:          f.SampleSize,
		InclusionCount:      f.InclusionCount,
		ExclusionCount:      f.ExclusionCount,
		CriteriaCount:       f.CriteriaCount(),
		PrimaryEndpoints:    f.Endpoints.Primary,
		SecondaryEndpoints:  f.Endpoints.Secondary,
		OtherEndpoints:      f.Endpoints.Other,
		Randomized:          f.Randomized,
		Masked:              f.Masked,
		ComplexityScore:     complexity_scorer.ScoreComplexity(f).Score,
		HasProtocolDocument: s.HasProtocolDocument(),
		CollectedAt:         collectedAt.UTC(),
	}
}
