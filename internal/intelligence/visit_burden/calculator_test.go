package visit_burden

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
)

const scheduleText = `Schedule of Assessments

Screening: physical exam, blood draw, ECG
Visit 2 (Day 1): infusion and vital signs
Visit 3 (Week 4): blood draw, questionnaire
End of Treatment: physical exam, imaging
`

func TestExtractVisitFactors_ScheduleLines(t *testing.T) {
	t.Parallel()
	vf := ExtractVisitFactors(scheduleText)
	require.Equal(t, 4, vf.TotalVisits)
	require.Len(t, vf.Visits, 4)

	assert.Equal(t, "Screening", vf.Visits[0].Label)
	assert.Equal(t, []string{"blood draw", "physical exam", "ECG"}, vf.Visits[0].Procedures)
	assert.Equal(t, "Visit 2", vf.Visits[1].Label)
	assert.Equal(t, []string{"vital signs", "infusion"}, vf.Visits[1].Procedures)
	assert.Equal(t, []string{"blood draw", "questionnaire"}, vf.Visits[2].Procedures)
	assert.Equal(t, "End of Treatment", vf.Visits[3].Label)
	assert.Equal(t, 4, vf.Visits[3].Number)

	assert.Equal(t, protocol.VisitMonthly, vf.Frequency)
	assert.Equal(t, 0, vf.InvasiveCount)
}

func TestCalculate_ScheduleLines(t *testing.T) {
	t.Parallel()
	got := Calculate(scheduleText)
	assert.Equal(t, 4, got.TotalVisits)
	assert.Equal(t, 125, got.Visits[0].EstimatedMinutes)
	assert.Equal(t, 190, got.Visits[1].EstimatedMinutes)
	assert.Equal(t, 95, got.Visits[2].EstimatedMinutes)
	assert.Equal(t, 135, got.Visits[3].EstimatedMinutes)
	assert.Equal(t, 136, got.AverageVisitMinutes)
	assert.InDelta(t, 9.1, got.TotalStudyHours, 1e-9)

	assert.Equal(t, 6.0, got.ScoreBreakdown[ComponentVisits])
	assert.Equal(t, 8.0, got.ScoreBreakdown[ComponentFrequency])
	assert.Equal(t, 0.0, got.ScoreBreakdown[ComponentInvasiveness])
	assert.InDelta(t, 6.8, got.ScoreBreakdown[ComponentDuration], 1e-9)
	assert.InDelta(t, 20.8, got.BurdenScore, 1e-9)
	assert.Equal(t, protocol.BurdenLow, got.BurdenLevel)
	assert.InDelta(t, 15.2, got.DropoutRisk, 1e-9)
}

func TestCalculate_StatedVisitCount(t *testing.T) {
	t.Parallel()
	text := "Participants will attend 12 scheduled visits. Each visit includes an ECG. A skin biopsy is collected for pharmacodynamics."
	vf := ExtractVisitFactors(text)
	require.Equal(t, 12, vf.TotalVisits)
	assert.Equal(t, []string{"ECG", "biopsy"}, vf.Procedures)
	assert.Equal(t, 1, vf.InvasiveCount)
	assert.Equal(t, []string{"ECG", "biopsy"}, vf.Visits[11].Procedures)

	got := CalculateBurden(vf)
	assert.Equal(t, 140, got.AverageVisitMinutes)
	assert.InDelta(t, 28.0, got.TotalStudyHours, 1e-9)
	assert.Equal(t, 18.0, got.ScoreBreakdown[ComponentVisits])
	assert.Equal(t, 8.0, got.ScoreBreakdown[ComponentInvasiveness])
	assert.InDelta(t, 7.0, got.ScoreBreakdown[ComponentDuration], 1e-9)
	assert.InDelta(t, 41.0, got.BurdenScore, 1e-9)
	assert.Equal(t, protocol.BurdenModerate, got.BurdenLevel)
	assert.InDelta(t, 20.3, got.DropoutRisk, 0.06)
	assert.Contains(t, got.Recommendations, "Limit invasive procedures to the visits where the data are essential.")
}

func TestCalculate_EstimatedFromCadence(t *testing.T) {
	t.Parallel()
	text := "Visits occur every 2 weeks. Treatment period of 6 months."
	vf := ExtractVisitFactors(text)
	assert.Equal(t, protocol.VisitBiweekly, vf.Frequency)
	assert.Equal(t, 6, vf.DurationMonths)
	assert.Equal(t, 15, vf.TotalVisits)

	got := CalculateBurden(vf)
	assert.Equal(t, 60, got.AverageVisitMinutes)
	assert.Equal(t, 22.5, got.ScoreBreakdown[ComponentVisits])
	assert.Equal(t, 14.0, got.ScoreBreakdown[ComponentFrequency])
	assert.InDelta(t, 39.5, got.BurdenScore, 1e-9)
	assert.InDelta(t, 19.9, got.DropoutRisk, 1e-9)
	assert.NotEmpty(t, got.Recommendations)
}

func TestCalculate_EmptyText(t *testing.T) {
	t.Parallel()
	got := Calculate("")
	assert.Equal(t, 14, got.TotalVisits)
	assert.Equal(t, BaseVisitMinutes, got.AverageVisitMinutes)
	assert.GreaterOrEqual(t, got.BurdenScore, 0.0)
	assert.LessOrEqual(t, got.BurdenScore, 100.0)
	assert.GreaterOrEqual(t, got.DropoutRisk, 5.0)
}

func TestCalculateBurden_Caps(t *testing.T) {
	t.Parallel()
	got := CalculateBurden(protocol.VisitFactors{
		TotalVisits:    365,
		Frequency:      protocol.VisitDaily,
		DurationMonths: 12,
		Procedures:     []string{"imaging", "infusion"},
		InvasiveCount:  4,
		Inpatient:      true,
	})
	assert.Equal(t, 365, got.TotalVisits)
	assert.Equal(t, 40.0, got.ScoreBreakdown[ComponentVisits])
	assert.Equal(t, 25.0, got.ScoreBreakdown[ComponentFrequency])
	assert.Equal(t, 25.0, got.ScoreBreakdown[ComponentInvasiveness])
	assert.Equal(t, 10.0, got.ScoreBreakdown[ComponentDuration])
	assert.Equal(t, 100.0, got.BurdenScore)
	assert.Equal(t, protocol.BurdenVeryHigh, got.BurdenLevel)
	assert.InDelta(t, 35.0, got.DropoutRisk, 1e-9)
}

func TestCalculateBurden_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	vf := protocol.VisitFactors{Visits: []protocol.VisitDetail{{Number: 1, Label: "Visit 1", Procedures: []string{"ECG"}}}}
	got := CalculateBurden(vf)
	assert.Equal(t, 80, got.Visits[0].EstimatedMinutes)
	assert.Equal(t, 0, vf.Visits[0].EstimatedMinutes)
}

func TestLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, protocol.BurdenLow, Level(24.9))
	assert.Equal(t, protocol.BurdenModerate, Level(25))
	assert.Equal(t, protocol.BurdenHigh, Level(50))
	assert.Equal(t, protocol.BurdenVeryHigh, Level(75))
}

func TestDropoutRisk(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 10.0, DropoutRisk(0, 6))
	assert.Equal(t, 50.0, DropoutRisk(100, 60))
	assert.Equal(t, 60.0, DropoutRisk(250, 100))
	assert.Equal(t, 5.0, DropoutRisk(-40, 0))
	assert.Equal(t, 13.0, DropoutRisk(0, 18))
}

func TestEstimateVisitCount(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 14, EstimateVisitCount(protocol.VisitMonthly, 12))
	assert.Equal(t, 6, EstimateVisitCount(protocol.VisitQuarterly, 12))
	assert.Equal(t, 365, EstimateVisitCount(protocol.VisitDaily, 24))
	assert.Equal(t, 3, EstimateVisitCount(protocol.VisitMonthly, 0))
}

func TestDetectProcedures(t *testing.T) {
	t.Parallel()
	got := DetectProcedures("MRI at baseline, lumbar puncture for CSF, bone marrow aspirate, colonoscopy and spirometry; MMSE and urinalysis.")
	assert.Equal(t, []string{"imaging", "urine sample", "cognitive assessment", "spirometry", "lumbar puncture", "bone marrow", "endoscopy"}, got)
	assert.Equal(t, 3, invasiveCount([]string{"biopsy", "ECG", "endoscopy", "bone marrow"}))
	assert.Empty(t, DetectProcedures("nothing relevant here"))
}
