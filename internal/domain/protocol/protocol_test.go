package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhase(t *testing.T) {
	t.Parallel()

	cases := map[string]Phase{
		"II":            Phase2,
		"phase 2":       Phase2,
		"Phase II":      Phase2,
		"PHASE2":        Phase2,
		"Phase 2b":      Phase2,
		"3":             Phase3,
		"IV":            Phase4,
		"Phase I/II":    Phase1_2,
		"2/3":           Phase2_3,
		"phase 2 and 3": Phase2_3,
		"PHASE1/PHASE2": Phase1_2,
		"Early Phase 1": PhaseEarly1,
		"EARLY_PHASE1":  PhaseEarly1,
		"NA":            PhaseNA,
		"N/A":           PhaseNA,
		"":              PhaseNA,
		"Phase 5":       PhaseNA,
		"1/3":           Phase3,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhase(in), in)
	}
}

func TestPhaseFromList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PhaseNA, PhaseFromList(nil))
	assert.Equal(t, Phase3, PhaseFromList([]string{"PHASE3"}))
	assert.Equal(t, Phase1_2, PhaseFromList([]string{"PHASE1", "PHASE2"}))
	assert.Equal(t, Phase2_3, PhaseFromList([]string{"PHASE2", "PHASE3"}))
	assert.Equal(t, PhaseEarly1, PhaseFromList([]string{"EARLY_PHASE1", "PHASE1"}))
	assert.Equal(t, PhaseNA, PhaseFromList([]string{"NA"}))
}

func TestPhaseCountAndLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, PhaseNA.Count())
	assert.Equal(t, 1, Phase2.Count())
	assert.Equal(t, 2, Phase1_2.Count())
	assert.Equal(t, "Phase 2/3", Phase2_3.Label())
	assert.Equal(t, "Phase 4", Phase4.Label())
	assert.Equal(t, "N/A", PhaseNA.Label())
}

func TestDefaultFeatures_AllEnumsValid(t *testing.T) {
	t.Parallel()

	f := DefaultFeatures()
	assert.Equal(t, 100, f.SampleSize)
	assert.Equal(t, 5, f.InclusionCount)
	assert.Equal(t, 3, f.ExclusionCount)
	assert.Nil(t, f.AgeRange)
	assert.True(t, f.Gender.Valid())
	assert.True(t, f.Prevalence.Valid())
	assert.True(t, f.TherapeuticArea.Valid())
	assert.True(t, f.VisitFrequency.Valid())
	assert.True(t, f.CompetingTrials.Valid())
	assert.True(t, f.Phase.Valid())
	assert.Equal(t, 1, f.Endpoints.Primary)
	assert.Equal(t, 8, f.CriteriaCount())
}

func TestParseArea(t *testing.T) {
	t.Parallel()

	assert.Equal(t, AreaInfectiousDisease, ParseArea("Infectious Disease"))
	assert.Equal(t, AreaOncology, ParseArea(" ONCOLOGY "))
	assert.Equal(t, AreaOther, ParseArea("veterinary"))
	assert.Equal(t, AreaOther, ParseArea(""))
}

func TestMetricsProjection(t *testing.T) {
	t.Parallel()

	f := DefaultFeatures()
	f.Endpoints = EndpointCounts{Primary: 1, Secondary: 4}
	m := f.Metrics(62)

	v, ok := m.Value(MetricEndpointCount)
	assert.True(t, ok)
	assert.Equal(t, 5.0, v)
	v, _ = m.Value(MetricComplexityScore)
	assert.Equal(t, 62.0, v)
	_, ok = m.Value("unknown")
	assert.False(t, ok)

	r := CorpusRecord{SampleSize: 40, CriteriaCount: 12, PrimaryEndpoints: 1, OtherEndpoints: 2, ComplexityScore: 33}
	assert.Equal(t, ProtocolMetrics{SampleSize: 40, ComplexityScore: 33, CriteriaCount: 12, EndpointCount: 3}, r.Metrics())
}

func TestImpactRank(t *testing.T) {
	t.Parallel()
	assert.Less(t, ImpactHigh.Rank(), ImpactMedium.Rank())
	assert.Less(t, ImpactMedium.Rank(), ImpactLow.Rank())
}

func TestCoverage(t *testing.T) {
	t.Parallel()

	f := DefaultFeatures()
	assert.Equal(t, 1.0, f.Coverage(FieldSampleSize, FieldPhase))

	f.MatchedFields = []string{}
	assert.Equal(t, 0.0, f.Coverage(FieldSampleSize, FieldPhase))

	f.MatchedFields = []string{FieldPhase, FieldEndpoints}
	assert.Equal(t, 0.5, f.Coverage(FieldSampleSize, FieldPhase))
	assert.Equal(t, 1.0, f.Coverage())
}
