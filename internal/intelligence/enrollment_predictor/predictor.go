// Package enrollment_predictor forecasts how long a protocol takes to enrol,
// how many screened patients fail eligibility and how many sites it needs.
package enrollment_predictor

import (
	"fmt"
	"math"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/common"
)

const (
	screenFailureBase         = 30.0
	screenFailureCriteriaFrom = 10
	screenFailurePerCriterion = 1.5
	screenFailureCriteriaCap  = 25.0
	screenFailureBiomarker    = 20.0
	screenFailurePrior        = 15.0
	screenFailurePerComorbid  = 5.0
	screenFailureMax          = 85.0

	minSites = 1
	maxSites = 100
)

var confidenceFields = []string{
	protocol.FieldSampleSize, protocol.FieldTherapeuticArea, protocol.FieldInclusion,
	protocol.FieldExclusion, protocol.FieldAgeRange, protocol.FieldVisitFrequency,
}

// Predictor is stateless; safe for concurrent use.
type Predictor struct {
	rules []MultiplierRule
}

// Option customises a Predictor.
type Option func(*Predictor)

// WithRules replaces the difficulty chain.
func WithRules(rules []MultiplierRule) Option {
	return func(p *Predictor) { p.rules = rules }
}

// New returns a Predictor using DifficultyRules.
func New(opts ...Option) *Predictor {
	p := &Predictor{rules: DifficultyRules}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PredictEnrollment runs the default predictor.
func PredictEnrollment(f protocol.ProtocolFeatures) protocol.EnrollmentFeasibility {
	return New().Predict(f)
}

// Predict computes the enrollment feasibility of one protocol.
func (p *Predictor) Predict(f protocol.ProtocolFeatures) protocol.EnrollmentFeasibility {
	baseline := BaselineMonths(f.TherapeuticArea) * float64(max(0, f.SampleSize)) / 100
	multiplier, applied := Fold(p.rules, f)
	months := baseline * multiplier
	sites := RecommendedSites(f.SampleSize, f.Prevalence, months)
	risks := RiskFactors(f)
	tier := Tier(multiplier)
	sfr := ScreenFailureRate(f)

	return protocol.EnrollmentFeasibility{
		EstimatedMonths:      common.Round1(months),
		BaselineMonths:       common.Round1(baseline),
		DifficultyMultiplier: math.Round(multiplier*1000) / 1000,
		AppliedFactors:       applied,
		ScreenFailureRate:    common.Round1(sfr),
		RecommendedSites:     sites,
		Difficulty:           tier,
		RiskFactors:          risks,
		Recommendations:      recommendations(f, tier, sfr, sites, months),
		Confidence:           math.Round((0.5+0.5*f.Coverage(confidenceFields...))*100) / 100,
	}
}

// ScreenFailureRate is the expected percentage of screened patients who fail
// eligibility, capped at 85.
func ScreenFailureRate(f protocol.ProtocolFeatures) float64 {
	rate := screenFailureBase
	rate += common.Clamp(float64(f.CriteriaCount()-screenFailureCriteriaFrom)*screenFailurePerCriterion, 0, screenFailureCriteriaCap)
	if f.BiomarkerRequired {
		rate += screenFailureBiomarker
	}
	if f.PriorTreatmentRequired {
		rate += screenFailurePrior
	}
	rate += float64(max(0, f.ComorbidityRestrictions)) * screenFailurePerComorbid
	return math.Min(rate, screenFailureMax)
}

// RecommendedSites is ceil(sample / (patients per site-month × months)),
// bounded [1,100].
func RecommendedSites(sampleSize int, prevalence protocol.Prevalence, months float64) int {
	capacity := patientsPerSiteMonth(prevalence) * months
	if capacity <= 0 || sampleSize <= 0 {
		return minSites
	}
	sites := int(math.Ceil(float64(sampleSize) / capacity))
	return min(max(sites, minSites), maxSites)
}

func recommendations(f protocol.ProtocolFeatures, tier protocol.DifficultyTier, sfr float64, sites int, months float64) []string {
	out := make([]string, 0, 4)
	switch tier {
	case protocol.DifficultyDifficult, protocol.DifficultyChallenging:
		out = append(out, fmt.Sprintf("Enrollment is %s (about %.0f months); activate at least %d sites and budget for rescue sites.", tier, months, sites))
	}
	if sfr >= 50 {
		out = append(out, fmt.Sprintf("Expect roughly %.0f%% screen failures; pre-screen with medical record review to reduce wasted screening visits.", sfr))
	}
	if f.CriteriaCount() > 15 {
		out = append(out, "Simplify eligibility: every criterion removed widens the eligible pool.")
	}
	if f.CompetingTrials == protocol.CompetitionHigh {
		out = append(out, "Competing trials recruit the same population; differentiate the patient offer and choose less saturated sites.")
	}
	if f.Gender.Restricted() || (f.AgeRange != nil && f.AgeRange.Span() < 20) {
		out = append(out, "Confirm the demographic restrictions are scientifically required.")
	}
	if len(out) == 0 {
		out = append(out, "Enrollment outlook is favourable; standard site activation should suffice.")
	}
	return out
}
