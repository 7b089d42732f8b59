package enrollment_predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
)

func mockFeatures() protocol.ProtocolFeatures {
	f := protocol.DefaultFeatures()
	f.SampleSize = 150
	f.InclusionCount = 8
	f.ExclusionCount = 2
	f.TherapeuticArea = protocol.AreaEndocrinology
	f.AgeRange = &protocol.AgeRange{Min: 18, Max: 75}
	f.Phase = protocol.Phase2
	f.Randomized = true
	f.Masked = true
	return f
}

func TestPredict_MockProtocol(t *testing.T) {
	t.Parallel()
	got := PredictEnrollment(mockFeatures())
	assert.Equal(t, 15.0, got.BaselineMonths)
	assert.Equal(t, 15.0, got.EstimatedMonths)
	assert.Equal(t, 1.0, got.DifficultyMultiplier)
	assert.Empty(t, got.AppliedFactors)
	assert.Equal(t, protocol.DifficultyEasy, got.Difficulty)
	assert.Equal(t, 30.0, got.ScreenFailureRate)
	assert.Equal(t, 5, got.RecommendedSites)
	assert.Empty(t, got.RiskFactors)
	assert.NotEmpty(t, got.Recommendations)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestPredict_MultipliersCompose(t *testing.T) {
	t.Parallel()
	base := protocol.DefaultFeatures()

	gender := base
	gender.Gender = protocol.GenderFemale
	rare := base
	rare.Prevalence = protocol.PrevalenceRare
	both := base
	both.Gender = protocol.GenderFemale
	both.Prevalence = protocol.PrevalenceRare

	assert.InDelta(t, 1.5, PredictEnrollment(gender).DifficultyMultiplier, 1e-9)
	assert.InDelta(t, 2.0, PredictEnrollment(rare).DifficultyMultiplier, 1e-9)

	got := PredictEnrollment(both)
	assert.InDelta(t, 3.0, got.DifficultyMultiplier, 1e-9)
	assert.InDelta(t, 36.0, got.EstimatedMonths, 1e-9)
	assert.Equal(t, protocol.DifficultyDifficult, got.Difficulty)
	require.Len(t, got.AppliedFactors, 2)
	assert.Equal(t, "single-sex enrolment", got.AppliedFactors[0].Factor)
	assert.Equal(t, "rare condition", got.AppliedFactors[1].Factor)
}

func TestFold_OnlyFirstTierPerGroup(t *testing.T) {
	t.Parallel()
	f := protocol.DefaultFeatures()
	f.InclusionCount = 20
	f.ExclusionCount = 10
	f.WashoutDays = 120
	f.AgeRange = &protocol.AgeRange{Min: 18, Max: 25}

	m, applied := Fold(DifficultyRules, f)
	assert.InDelta(t, 1.6*1.4*1.3, m, 1e-9)
	require.Len(t, applied, 3)
	assert.Equal(t, 1.6, applied[0].Multiplier)
	assert.Equal(t, 1.4, applied[1].Multiplier)
	assert.Equal(t, 1.3, applied[2].Multiplier)
}

func TestFold_Tiers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*protocol.ProtocolFeatures)
		want   float64
	}{
		{"criteria 11", func(f *protocol.ProtocolFeatures) { f.InclusionCount, f.ExclusionCount = 8, 3 }, 1.15},
		{"criteria 16", func(f *protocol.ProtocolFeatures) { f.InclusionCount, f.ExclusionCount = 10, 6 }, 1.3},
		{"age span 15", func(f *protocol.ProtocolFeatures) { f.AgeRange = &protocol.AgeRange{Min: 50, Max: 65} }, 1.2},
		{"age span 20", func(f *protocol.ProtocolFeatures) { f.AgeRange = &protocol.AgeRange{Min: 50, Max: 70} }, 1.0},
		{"uncommon", func(f *protocol.ProtocolFeatures) { f.Prevalence = protocol.PrevalenceUncommon }, 1.5},
		{"very rare", func(f *protocol.ProtocolFeatures) { f.Prevalence = protocol.PrevalenceVeryRare }, 3.0},
		{"washout 60", func(f *protocol.ProtocolFeatures) { f.WashoutDays = 60 }, 1.15},
		{"washout 14", func(f *protocol.ProtocolFeatures) { f.WashoutDays = 14 }, 1.05},
		{"geographic", func(f *protocol.ProtocolFeatures) { f.GeographicRestriction = true }, 1.2},
		{"biomarker", func(f *protocol.ProtocolFeatures) { f.BiomarkerRequired = true }, 1.4},
		{"prior", func(f *protocol.ProtocolFeatures) { f.PriorTreatmentRequired = true }, 1.2},
		{"comorbid 3", func(f *protocol.ProtocolFeatures) { f.ComorbidityRestrictions = 3 }, 1.15},
		{"comorbid 6", func(f *protocol.ProtocolFeatures) { f.ComorbidityRestrictions = 6 }, 1.3},
		{"invasive", func(f *protocol.ProtocolFeatures) { f.InvasiveProcedures = true }, 1.25},
		{"inpatient", func(f *protocol.ProtocolFeatures) { f.InpatientStays = true }, 1.3},
		{"daily", func(f *protocol.ProtocolFeatures) { f.VisitFrequency = protocol.VisitDaily }, 1.4},
		{"weekly", func(f *protocol.ProtocolFeatures) { f.VisitFrequency = protocol.VisitWeekly }, 1.2},
		{"biweekly", func(f *protocol.ProtocolFeatures) { f.VisitFrequency = protocol.VisitBiweekly }, 1.1},
		{"quarterly", func(f *protocol.ProtocolFeatures) { f.VisitFrequency = protocol.VisitQuarterly }, 1.0},
		{"competition high", func(f *protocol.ProtocolFeatures) { f.CompetingTrials = protocol.CompetitionHigh }, 1.3},
		{"competition medium", func(f *protocol.ProtocolFeatures) { f.CompetingTrials = protocol.CompetitionMedium }, 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := protocol.DefaultFeatures()
			tt.mutate(&f)
			m, _ := Fold(DifficultyRules, f)
			assert.InDelta(t, tt.want, m, 1e-9)
		})
	}
}

func TestTier(t *testing.T) {
	t.Parallel()
	assert.Equal(t, protocol.DifficultyEasy, Tier(1.0))
	assert.Equal(t, protocol.DifficultyEasy, Tier(1.2))
	assert.Equal(t, protocol.DifficultyModerate, Tier(1.21))
	assert.Equal(t, protocol.DifficultyModerate, Tier(1.8))
	assert.Equal(t, protocol.DifficultyChallenging, Tier(2.5))
	assert.Equal(t, protocol.DifficultyDifficult, Tier(2.51))
}

func TestScreenFailureRate(t *testing.T) {
	t.Parallel()
	f := protocol.DefaultFeatures()
	assert.Equal(t, 30.0, ScreenFailureRate(f))

	f.InclusionCount, f.ExclusionCount = 10, 4
	assert.Equal(t, 36.0, ScreenFailureRate(f))

	f.BiomarkerRequired = true
	assert.Equal(t, 56.0, ScreenFailureRate(f))

	f.PriorTreatmentRequired = true
	f.ComorbidityRestrictions = 2
	assert.Equal(t, 81.0, ScreenFailureRate(f))

	f.ComorbidityRestrictions = 20
	f.InclusionCount, f.ExclusionCount = 30, 20
	assert.Equal(t, 85.0, ScreenFailureRate(f))
}

func TestScreenFailureRate_Monotonic(t *testing.T) {
	t.Parallel()
	prev := 0.0
	for criteria := 0; criteria <= 50; criteria++ {
		f := protocol.DefaultFeatures()
		f.InclusionCount, f.ExclusionCount = criteria, 0
		got := ScreenFailureRate(f)
		assert.GreaterOrEqual(t, got, prev)
		assert.LessOrEqual(t, got, 85.0)
		prev = got
	}
	prev = 0
	for c := 0; c <= 20; c++ {
		f := protocol.DefaultFeatures()
		f.ComorbidityRestrictions = c
		got := ScreenFailureRate(f)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestRecommendedSites(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 5, RecommendedSites(150, protocol.PrevalenceCommon, 15))
	assert.Equal(t, 9, RecommendedSites(100, protocol.PrevalenceRare, 24))
	assert.Equal(t, 100, RecommendedSites(9999, protocol.PrevalenceVeryRare, 1))
	assert.Equal(t, 1, RecommendedSites(10, protocol.PrevalenceCommon, 60))
	assert.Equal(t, 1, RecommendedSites(0, protocol.PrevalenceCommon, 0))
}

func TestRiskFactors_RuleOrder(t *testing.T) {
	t.Parallel()
	f := protocol.DefaultFeatures()
	f.VisitFrequency = protocol.VisitWeekly
	f.WashoutDays = 120
	f.Prevalence = protocol.PrevalenceVeryRare
	f.BiomarkerRequired = true
	f.InclusionCount, f.ExclusionCount = 12, 8

	risks := RiskFactors(f)
	require.Len(t, risks, 5)
	names := make([]string, len(risks))
	for i, r := range risks {
		names[i] = r.Factor
	}
	assert.Equal(t, []string{
		"Complex eligibility criteria",
		"Biomarker requirement",
		"Rare disease population",
		"Extended washout period",
		"Frequent study visits",
	}, names)
	assert.Equal(t, protocol.ImpactHigh, risks[2].Impact)
	assert.Equal(t, protocol.ImpactMedium, risks[4].Impact)
	assert.Contains(t, risks[4].Description, "weekly")
}

func TestRiskFactors_Boundaries(t *testing.T) {
	t.Parallel()
	f := protocol.DefaultFeatures()
	f.InclusionCount, f.ExclusionCount = 10, 5
	f.WashoutDays = 90
	f.Prevalence = protocol.PrevalenceUncommon
	f.VisitFrequency = protocol.VisitMonthly
	assert.Empty(t, RiskFactors(f))
}

func TestPredict_Confidence(t *testing.T) {
	t.Parallel()
	f := mockFeatures()
	f.MatchedFields = []string{protocol.FieldSampleSize, protocol.FieldTherapeuticArea, protocol.FieldInclusion}
	assert.Equal(t, 0.75, PredictEnrollment(f).Confidence)
}

func TestPredict_WithRules(t *testing.T) {
	t.Parallel()
	p := New(WithRules([]MultiplierRule{{
		Group: "always", Factor: "flat", Multiplier: 2,
		When: func(protocol.ProtocolFeatures) bool { return true },
	}}))
	got := p.Predict(protocol.DefaultFeatures())
	assert.Equal(t, 2.0, got.DifficultyMultiplier)
	assert.Equal(t, 24.0, got.EstimatedMonths)
	assert.Equal(t, protocol.DifficultyChallenging, got.Difficulty)
}

func TestBaselineMonths(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 8.0, BaselineMonths(protocol.AreaOncology))
	assert.Equal(t, 15.0, BaselineMonths(protocol.AreaNeurology))
	assert.Equal(t, 12.0, BaselineMonths("veterinary"))
	for _, a := range protocol.AllAreas {
		_, ok := baselineMonths[a]
		assert.True(t, ok, a)
	}
}
