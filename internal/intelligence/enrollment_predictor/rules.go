package enrollment_predictor

import (
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
)

// ---------------------------------------------------------------------------
// Baselines
// ---------------------------------------------------------------------------

// baselineMonths is the months needed to enrol 100 patients with no
// difficulty factors, per therapeutic area.
var baselineMonths = map[protocol.TherapeuticArea]float64{
	protocol.AreaOncology:          8,
	protocol.AreaInfectiousDisease: 9,
	protocol.AreaDermatology:       9,
	protocol.AreaCardiology:        10,
	protocol.AreaEndocrinology:     10,
	protocol.AreaRespiratory:       11,
	protocol.AreaGastroenterology:  11,
	protocol.AreaHematology:        12,
	protocol.AreaImmunology:        12,
	protocol.AreaOphthalmology:     12,
	protocol.AreaOther:             12,
	protocol.AreaNephrology:        13,
	protocol.AreaPsychiatry:        14,
	protocol.AreaNeurology:         15,
}

// BaselineMonths returns the per-100-patient baseline for an area; unknown
// areas use the "other" baseline.
func BaselineMonths(area protocol.TherapeuticArea) float64 {
	if m, ok := baselineMonths[area]; ok {
		return m
	}
	return baselineMonths[protocol.AreaOther]
}

// patientsPerSiteMonth is the enrolment rate one site sustains.
func patientsPerSiteMonth(p protocol.Prevalence) float64 {
	switch p {
	case protocol.PrevalenceUncommon:
		return 1.0
	case protocol.PrevalenceRare:
		return 0.5
	case protocol.PrevalenceVeryRare:
		return 0.2
	default:
		return 2.0
	}
}

// ---------------------------------------------------------------------------
// Difficulty multipliers
// ---------------------------------------------------------------------------

// MultiplierRule is one (predicate, multiplier) pair.  Rules sharing a Group
// are tiers of one factor: only the first matching tier applies.
type MultiplierRule struct {
	Group      string
	Factor     string
	Multiplier float64
	When       func(f protocol.ProtocolFeatures) bool
}

func ageSpanBelow(n int) func(protocol.ProtocolFeatures) bool {
	return func(f protocol.ProtocolFeatures) bool {
		return f.AgeRange != nil && f.AgeRange.Span() < n
	}
}

// DifficultyRules is the calibrated multiplier chain, in application order.
var DifficultyRules = []MultiplierRule{
	{"criteria", "more than 25 eligibility criteria", 1.6, func(f protocol.ProtocolFeatures) bool { return f.CriteriaCount() > 25 }},
	{"criteria", "more than 15 eligibility criteria", 1.3, func(f protocol.ProtocolFeatures) bool { return f.CriteriaCount() > 15 }},
	{"criteria", "more than 10 eligibility criteria", 1.15, func(f protocol.ProtocolFeatures) bool { return f.CriteriaCount() > 10 }},
	{"age", "age window under 10 years", 1.4, ageSpanBelow(10)},
	{"age", "age window under 20 years", 1.2, ageSpanBelow(20)},
	{"gender", "single-sex enrolment", 1.5, func(f protocol.ProtocolFeatures) bool { return f.Gender.Restricted() }},
	{"prevalence", "uncommon condition", 1.5, func(f protocol.ProtocolFeatures) bool { return f.Prevalence == protocol.PrevalenceUncommon }},
	{"prevalence", "rare condition", 2.0, func(f protocol.ProtocolFeatures) bool { return f.Prevalence == protocol.PrevalenceRare }},
	{"prevalence", "very rare condition", 3.0, func(f protocol.ProtocolFeatures) bool { return f.Prevalence == protocol.PrevalenceVeryRare }},
	{"washout", "washout over 90 days", 1.3, func(f protocol.ProtocolFeatures) bool { return f.WashoutDays > 90 }},
	{"washout", "washout over 28 days", 1.15, func(f protocol.ProtocolFeatures) bool { return f.WashoutDays > 28 }},
	{"washout", "washout required", 1.05, func(f protocol.ProtocolFeatures) bool { return f.WashoutDays > 0 }},
	{"geographic", "geographic restriction", 1.2, func(f protocol.ProtocolFeatures) bool { return f.GeographicRestriction }},
	{"biomarker", "biomarker required", 1.4, func(f protocol.ProtocolFeatures) bool { return f.BiomarkerRequired }},
	{"prior_treatment", "prior treatment required", 1.2, func(f protocol.ProtocolFeatures) bool { return f.PriorTreatmentRequired }},
	{"comorbidities", "more than 5 comorbidity exclusions", 1.3, func(f protocol.ProtocolFeatures) bool { return f.ComorbidityRestrictions > 5 }},
	{"comorbidities", "more than 2 comorbidity exclusions", 1.15, func(f protocol.ProtocolFeatures) bool { return f.ComorbidityRestrictions > 2 }},
	{"invasive", "invasive procedures", 1.25, func(f protocol.ProtocolFeatures) bool { return f.InvasiveProcedures }},
	{"inpatient", "inpatient stays", 1.3, func(f protocol.ProtocolFeatures) bool { return f.InpatientStays }},
	{"visits", "daily visits", 1.4, func(f protocol.ProtocolFeatures) bool { return f.VisitFrequency == protocol.VisitDaily }},
	{"visits", "weekly visits", 1.2, func(f protocol.ProtocolFeatures) bool { return f.VisitFrequency == protocol.VisitWeekly }},
	{"visits", "biweekly visits", 1.1, func(f protocol.ProtocolFeatures) bool { return f.VisitFrequency == protocol.VisitBiweekly }},
	{"competition", "high competition", 1.3, func(f protocol.ProtocolFeatures) bool { return f.CompetingTrials == protocol.CompetitionHigh }},
	{"competition", "medium competition", 1.1, func(f protocol.ProtocolFeatures) bool { return f.CompetingTrials == protocol.CompetitionMedium }},
}

// Fold multiplies the first matching tier of every group, in order.
func Fold(rules []MultiplierRule, f protocol.ProtocolFeatures) (float64, []protocol.AppliedMultiplier) {
	multiplier := 1.0
	applied := make([]protocol.AppliedMultiplier, 0, 4)
	fired := make(map[string]bool, len(rules))
	for _, r := range rules {
		if fired[r.Group] || !r.When(f) {
			continue
		}
		fired[r.Group] = true
		multiplier *= r.Multiplier
		applied = append(applied, protocol.AppliedMultiplier{Factor: r.Factor, Multiplier: r.Multiplier})
	}
	return multiplier, applied
}

// Tier bands a difficulty multiplier.
func Tier(multiplier float64) protocol.DifficultyTier {
	switch {
	case multiplier <= 1.2:
		return protocol.DifficultyEasy
	case multiplier <= 1.8:
		return protocol.DifficultyModerate
	case multiplier <= 2.5:
		return protocol.DifficultyChallenging
	default:
		return protocol.DifficultyDifficult
	}
}

// ---------------------------------------------------------------------------
// Risk factors
// ---------------------------------------------------------------------------

type riskRule struct {
	when func(f protocol.ProtocolFeatures) bool
	risk func(f protocol.ProtocolFeatures) protocol.RiskFactor
}

// riskRules are emitted in declaration order, not by severity.
var riskRules = []riskRule{
	{
		when: func(f protocol.ProtocolFeatures) bool { return f.CriteriaCount() > 15 },
		risk: func(f protocol.ProtocolFeatures) protocol.RiskFactor {
			return protocol.RiskFactor{
				Factor:      "Complex eligibility criteria",
				Impact:      protocol.ImpactHigh,
				Description: "Eligibility lists more than 15 criteria, which narrows the screenable population.",
				Mitigation:  "Review each criterion for scientific necessity and move safety-only checks to the baseline visit.",
			}
		},
	},
	{
		when: func(f protocol.ProtocolFeatures) bool { return f.BiomarkerRequired },
		risk: func(protocol.ProtocolFeatures) protocol.RiskFactor {
			return protocol.RiskFactor{
				Factor:      "Biomarker requirement",
				Impact:      protocol.ImpactHigh,
				Description: "A biomarker-positive population must be confirmed before randomization.",
				Mitigation:  "Use central testing with fast turnaround and allow prior local results where validated.",
			}
		},
	},
	{
		when: func(f protocol.ProtocolFeatures) bool {
			return f.Prevalence == protocol.PrevalenceRare || f.Prevalence == protocol.PrevalenceVeryRare
		},
		risk: func(protocol.ProtocolFeatures) protocol.RiskFactor {
			return protocol.RiskFactor{
				Factor:      "Rare disease population",
				Impact:      protocol.ImpactHigh,
				Description: "The target condition is rare, so few eligible patients exist per site.",
				Mitigation:  "Partner with patient advocacy groups and disease registries, and consider centres of excellence.",
			}
		},
	},
	{
		when: func(f protocol.ProtocolFeatures) bool { return f.WashoutDays > 90 },
		risk: func(protocol.ProtocolFeatures) protocol.RiskFactor {
			return protocol.RiskFactor{
				Factor:      "Extended washout period",
				Impact:      protocol.ImpactMedium,
				Description: "Patients must stop current therapy for more than 90 days before enrolment.",
				Mitigation:  "Shorten the washout where pharmacokinetics allow or provide rescue medication.",
			}
		},
	},
	{
		when: func(f protocol.ProtocolFeatures) bool { return f.VisitFrequency.Frequent() },
		risk: func(f protocol.ProtocolFeatures) protocol.RiskFactor {
			return protocol.RiskFactor{
				Factor:      "Frequent study visits",
				Impact:      protocol.ImpactMedium,
				Description: "A " + string(f.VisitFrequency) + " visit schedule adds travel and time burden.",
				Mitigation:  "Replace some on-site visits with telemedicine or home nursing.",
			}
		},
	},
}

// RiskFactors evaluates the rule set in order.
func RiskFactors(f protocol.ProtocolFeatures) []protocol.RiskFactor {
	out := make([]protocol.RiskFactor, 0, len(riskRules))
	for _, r := range riskRules {
		if r.when(f) {
			out = append(out, r.risk(f))
		}
	}
	return out
}
