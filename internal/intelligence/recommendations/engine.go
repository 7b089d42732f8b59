// Package recommendations turns scorer and benchmark outputs into a
// prioritised action list for the protocol author.
package recommendations

import (
	"fmt"
	"math"
	"sort"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
)

// Sources name the analysis a recommendation came from.
const (
	SourceComplexity  = "complexity"
	SourceEnrollment  = "enrollment"
	SourceVisitBurden = "visit_burden"
	SourceBenchmark   = "benchmark"
)

// Input gathers everything the engine reads.  Benchmark is nil when the
// cohort was too small.
type Input struct {
	Features    protocol.ProtocolFeatures
	Complexity  protocol.ComplexityScore
	Enrollment  protocol.EnrollmentFeasibility
	VisitBurden protocol.VisitBurdenAnalysis
	Benchmark   *protocol.Benchmark
}

type rule func(in Input) []protocol.Recommendation

var rules = []rule{
	complexityRule,
	endpointRule,
	enrollmentRule,
	screenFailureRule,
	riskFactorRule,
	burdenRule,
	dropoutRule,
	benchmarkRule,
}

// Generate evaluates every rule and orders the result by priority, then by
// impact score.  A protocol with no findings gets a single Low entry.
func Generate(in Input) []protocol.Recommendation {
	var out []protocol.Recommendation
	for _, r := range rules {
		out = append(out, r(in)...)
	}
	if len(out) == 0 {
		out = append(out, protocol.Recommendation{
			Priority:       protocol.ImpactLow,
			Category:       "General",
			Title:          "No major design issues detected",
			Action:         "Proceed with standard feasibility review and site selection.",
			ExpectedImpact: "Maintains the current timeline.",
			Source:         SourceComplexity,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].ImpactScore > out[j].ImpactScore
	})
	return out
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func complexityRule(in Input) []protocol.Recommendation {
	c := in.Complexity
	var prio protocol.Impact
	switch c.Category {
	case protocol.ComplexityHighlyComplex:
		prio = protocol.ImpactHigh
	case protocol.ComplexityComplex:
		prio = protocol.ImpactMedium
	default:
		return nil
	}
	return []protocol.Recommendation{{
		Priority:       prio,
		Category:       "Design",
		Title:          "Reduce protocol complexity",
		Action:         "Trim exploratory endpoints, merge overlapping eligibility criteria and drop procedures that do not feed an endpoint.",
		ExpectedImpact: fmt.Sprintf("Bringing the complexity score from %.0f to 50 lowers amendment risk and site burden.", c.Score),
		ImpactScore:    round1(math.Max(0, c.Score-50)),
		Source:         SourceComplexity,
	}}
}

func endpointRule(in Input) []protocol.Recommendation {
	ep := in.Features.Endpoints
	if ep.Secondary+ep.Other <= 8 {
		return nil
	}
	return []protocol.Recommendation{{
		Priority:       protocol.ImpactMedium,
		Category:       "Endpoints",
		Title:          "Rationalise secondary endpoints",
		Action:         fmt.Sprintf("%d secondary and other endpoints are planned; keep those that support labelling or key publications.", ep.Secondary+ep.Other),
		ExpectedImpact: "Fewer endpoints shorten visits and reduce data-cleaning effort.",
		ImpactScore:    float64(ep.Secondary+ep.Other) * 2,
		Source:         SourceComplexity,
	}}
}

func enrollmentRule(in Input) []protocol.Recommendation {
	e := in.Enrollment
	var prio protocol.Impact
	switch e.Difficulty {
	case protocol.DifficultyDifficult:
		prio = protocol.ImpactHigh
	case protocol.DifficultyChallenging:
		prio = protocol.ImpactMedium
	default:
		return nil
	}
	saved := e.EstimatedMonths - e.BaselineMonths
	return []protocol.Recommendation{{
		Priority:       prio,
		Category:       "Enrollment",
		Title:          "Lower enrollment difficulty",
		Action:         fmt.Sprintf("Address the %d difficulty factors and plan for at least %d sites.", len(e.AppliedFactors), e.RecommendedSites),
		ExpectedImpact: fmt.Sprintf("Up to %.1f months of enrollment are attributable to design factors.", saved),
		ImpactScore:    round1(math.Min(100, (e.DifficultyMultiplier-1)*40)),
		Source:         SourceEnrollment,
	}}
}

func screenFailureRule(in Input) []protocol.Recommendation {
	sfr := in.Enrollment.ScreenFailureRate
	if sfr < 50 {
		return nil
	}
	prio := protocol.ImpactMedium
	if sfr >= 70 {
		prio = protocol.ImpactHigh
	}
	return []protocol.Recommendation{{
		Priority:       prio,
		Category:       "Enrollment",
		Title:          "Reduce screen failures",
		Action:         "Add a pre-screening step and relax criteria that exclude patients without a safety rationale.",
		ExpectedImpact: fmt.Sprintf("Each 10-point drop from the predicted %.0f%% screen failure saves screening visits and cost.", sfr),
		ImpactScore:    round1(sfr - 30),
		Source:         SourceEnrollment,
	}}
}

func riskFactorRule(in Input) []protocol.Recommendation {
	out := make([]protocol.Recommendation, 0, len(in.Enrollment.RiskFactors))
	for _, rf := range in.Enrollment.RiskFactors {
		score := 35.0
		if rf.Impact == protocol.ImpactHigh {
			score = 60
		}
		out = append(out, protocol.Recommendation{
			Priority:       rf.Impact,
			Category:       "Enrollment Risk",
			Title:          rf.Factor,
			Action:         rf.Mitigation,
			ExpectedImpact: rf.Description,
			ImpactScore:    score,
			Source:         SourceEnrollment,
		})
	}
	return out
}

func burdenRule(in Input) []protocol.Recommendation {
	vb := in.VisitBurden
	var prio protocol.Impact
	switch vb.BurdenLevel {
	case protocol.BurdenVeryHigh:
		prio = protocol.ImpactHigh
	case protocol.BurdenHigh:
		prio = protocol.ImpactMedium
	default:
		return nil
	}
	return []protocol.Recommendation{{
		Priority:       prio,
		Category:       "Patient Burden",
		Title:          "Reduce patient visit burden",
		Action:         "Move routine assessments to remote or home visits and combine procedures into fewer visits.",
		ExpectedImpact: fmt.Sprintf("Patients currently spend about %.0f hours on study visits.", vb.TotalStudyHours),
		ImpactScore:    round1(math.Max(0, vb.BurdenScore-40)),
		Source:         SourceVisitBurden,
	}}
}

func dropoutRule(in Input) []protocol.Recommendation {
	d := in.VisitBurden.DropoutRisk
	if d < 30 {
		return nil
	}
	prio := protocol.ImpactMedium
	if d >= 40 {
		prio = protocol.ImpactHigh
	}
	return []protocol.Recommendation{{
		Priority:       prio,
		Category:       "Retention",
		Title:          "Plan patient retention",
		Action:         "Budget travel reimbursement, flexible visit windows and retention contacts.",
		ExpectedImpact: fmt.Sprintf("Predicted dropout of %.0f%% erodes statistical power.", d),
		ImpactScore:    round1(d),
		Source:         SourceVisitBurden,
	}}
}

func benchmarkRule(in Input) []protocol.Recommendation {
	if in.Benchmark == nil {
		return nil
	}
	out := make([]protocol.Recommendation, 0, len(in.Benchmark.Outliers))
	for _, o := range in.Benchmark.Outliers {
		prio, score := protocol.ImpactLow, 15.0
		switch o.Severity {
		case protocol.SeverityCritical:
			prio, score = protocol.ImpactHigh, 70
		case protocol.SeverityWarning:
			prio, score = protocol.ImpactMedium, 45
		}
		out = append(out, protocol.Recommendation{
			Priority:       prio,
			Category:       "Benchmark",
			Title:          fmt.Sprintf("Outlier: %s at percentile %.0f", o.Metric, o.Percentile),
			Action:         o.Recommendation,
			ExpectedImpact: fmt.Sprintf("Aligning with the %s cohort improves comparability with peer protocols.", in.Benchmark.Cohort),
			ImpactScore:    score,
			Source:         SourceBenchmark,
		})
	}
	return out
}
