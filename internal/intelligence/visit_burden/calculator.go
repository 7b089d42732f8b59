// Package visit_burden estimates the time a protocol asks of each patient,
// scores that burden on 0-100 and predicts the resulting dropout risk.
package visit_burden

import (
	"fmt"
	"math"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/common"
)

const (
	// BaseVisitMinutes is check-in, consent review and waiting time.
	BaseVisitMinutes = 60

	visitPointsEach = 1.5
	visitPointsCap  = 40.0
	invasivePoints  = 8.0
	inpatientPoints = 10.0
	invasiveCap     = 25.0
	hourPoints      = 3.0
	durationCap     = 10.0

	dropoutBase        = 10.0
	dropoutPerBurden   = 0.25
	dropoutFreeMonths  = 12
	dropoutPerMonth    = 0.5
	dropoutDurationCap = 15.0
	dropoutMin         = 5.0
	dropoutMax         = 60.0
)

// Score breakdown keys.
const (
	ComponentVisits       = "visits"
	ComponentFrequency    = "frequency"
	ComponentInvasiveness = "invasiveness"
	ComponentDuration     = "visit_duration"
)

func frequencyPoints(f protocol.VisitFrequency) float64 {
	switch f {
	case protocol.VisitDaily:
		return 25
	case protocol.VisitWeekly:
		return 20
	case protocol.VisitBiweekly:
		return 14
	case protocol.VisitQuarterly:
		return 4
	default:
		return 8
	}
}

// Level bands a burden score.
func Level(score float64) protocol.BurdenLevel {
	switch {
	case score < 25:
		return protocol.BurdenLow
	case score < 50:
		return protocol.BurdenModerate
	case score < 75:
		return protocol.BurdenHigh
	default:
		return protocol.BurdenVeryHigh
	}
}

// DropoutRisk is the predicted dropout percentage for a burden score and
// study length, bounded [5,60].
func DropoutRisk(burden float64, months int) float64 {
	extra := math.Min(dropoutDurationCap, float64(max(0, months-dropoutFreeMonths))*dropoutPerMonth)
	return common.Clamp(dropoutBase+burden*dropoutPerBurden+extra, dropoutMin, dropoutMax)
}

// Calculate extracts the schedule from text and scores it.
func Calculate(text string) protocol.VisitBurdenAnalysis {
	return CalculateBurden(ExtractVisitFactors(text))
}

// CalculateBurden scores extracted visit factors.
func CalculateBurden(vf protocol.VisitFactors) protocol.VisitBurdenAnalysis {
	visits := vf.Visits
	if len(visits) == 0 && vf.TotalVisits > 0 {
		visits = synthesize(min(vf.TotalVisits, maxVisits), vf.Procedures)
	}
	visits = append([]protocol.VisitDetail(nil), visits...)

	totalMinutes := 0
	for i := range visits {
		visits[i].EstimatedMinutes = BaseVisitMinutes + ProcedureMinutes(visits[i].Procedures)
		totalMinutes += visits[i].EstimatedMinutes
	}
	n := len(visits)
	avg := 0
	if n > 0 {
		avg = int(math.Round(float64(totalMinutes) / float64(n)))
	}

	breakdown := map[string]float64{
		ComponentVisits:       math.Min(visitPointsCap, float64(n)*visitPointsEach),
		ComponentFrequency:    frequencyPoints(vf.Frequency),
		ComponentInvasiveness: invasiveness(vf),
		ComponentDuration:     common.Round1(math.Min(durationCap, float64(avg)/60*hourPoints)),
	}
	var score float64
	for _, v := range breakdown {
		score += v
	}
	score = common.Round1(common.Clamp(score, 0, 100))
	dropout := common.Round1(DropoutRisk(score, vf.DurationMonths))

	return protocol.VisitBurdenAnalysis{
		TotalVisits:         n,
		AverageVisitMinutes: avg,
		TotalStudyHours:     common.Round1(float64(totalMinutes) / 60),
		BurdenScore:         score,
		BurdenLevel:         Level(score),
		DropoutRisk:         dropout,
		ScoreBreakdown:      breakdown,
		Visits:              visits,
		Recommendations:     recommendations(vf, n, avg, dropout),
	}
}

func invasiveness(vf protocol.VisitFactors) float64 {
	pts := float64(max(0, vf.InvasiveCount)) * invasivePoints
	if vf.Inpatient {
		pts += inpatientPoints
	}
	return math.Min(invasiveCap, pts)
}

func recommendations(vf protocol.VisitFactors, visits, avgMinutes int, dropout float64) []string {
	out := make([]string, 0, 4)
	if vf.Frequency.Frequent() {
		out = append(out, fmt.Sprintf("Visits are scheduled %s; consider remote or home-health visits for routine assessments.", vf.Frequency))
	}
	if visits > 20 {
		out = append(out, fmt.Sprintf("%d on-site visits is high; consolidate assessments that can share a visit.", visits))
	}
	if avgMinutes > 180 {
		out = append(out, fmt.Sprintf("Average visit lasts about %d minutes; split long visits or offer meals and travel support.", avgMinutes))
	}
	if vf.InvasiveCount > 0 {
		out = append(out, "Limit invasive procedures to the visits where the data are essential.")
	}
	if vf.Inpatient {
		out = append(out, "Inpatient stays deter enrolment; evaluate outpatient monitoring alternatives.")
	}
	if dropout >= 30 {
		out = append(out, fmt.Sprintf("Predicted dropout is %.0f%%; plan retention measures and inflate the sample size accordingly.", dropout))
	}
	return out
}
