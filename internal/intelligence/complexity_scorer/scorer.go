// Package complexity_scorer converts protocol features into the 0-100 design
// complexity score used for benchmarking.  The weights are fixed so scores
// stay comparable with the historically collected corpus.
package complexity_scorer

import (
	"math"

	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/common"
)

// ---------------------------------------------------------------------------
// Weights and bands
// ---------------------------------------------------------------------------

const (
	weightCriterion         = 2.0
	weightPrimaryEndpoint   = 10.0
	weightSecondaryEndpoint = 5.0
	weightOtherEndpoint     = 2.0
	bonusRandomized         = 10.0
	bonusMasked             = 15.0
	weightPhase             = 5.0

	maxScore = 100.0

	// DefaultMinReferenceSamples is the smallest corpus sample used for the
	// percentile unless WithMinReferenceSamples says otherwise; below it the
	// static anchors apply.
	DefaultMinReferenceSamples = 10
)

// Breakdown keys.
const (
	FactorCriteria   = "criteria"
	FactorPrimary    = "primary_endpoints"
	FactorSecondary  = "secondary_endpoints"
	FactorOther      = "other_endpoints"
	FactorRandomized = "randomization"
	FactorMasked     = "masking"
	FactorMultiPhase = "multi_phase"
)

// confidenceFields are the extracted fields the score depends on.
var confidenceFields = []string{
	protocol.FieldInclusion, protocol.FieldExclusion, protocol.FieldEndpoints, protocol.FieldPhase,
}

// anchor maps a score to its approximate industry percentile.
type anchor struct{ score, percentile float64 }

// industryAnchors approximate the registry-wide distribution when no corpus
// is loaded.
var industryAnchors = []anchor{
	{0, 1}, {22, 10}, {31, 25}, {42, 50}, {56, 75}, {68, 90}, {100, 99},
}

// Category bands a score: ≤25 Simple, ≤50 Moderate, ≤75 Complex, else Highly
// Complex.
func Category(score float64) protocol.ComplexityCategory {
	switch {
	case score <= 25:
		return protocol.ComplexitySimple
	case score <= 50:
		return protocol.ComplexityModerate
	case score <= 75:
		return protocol.ComplexityComplex
	default:
		return protocol.ComplexityHighlyComplex
	}
}

// ---------------------------------------------------------------------------
// Inputs
// ---------------------------------------------------------------------------

// SubCounts are the raw design counts the score is computed from.
type SubCounts struct {
	Inclusion  int
	Exclusion  int
	Primary    int
	Secondary  int
	Other      int
	Randomized bool
	Masked     bool
	Phases     int
}

// CountsFromFeatures projects features onto SubCounts.
func CountsFromFeatures(f protocol.ProtocolFeatures) SubCounts {
	return SubCounts{
		Inclusion:  f.InclusionCount,
		Exclusion:  f.ExclusionCount,
		Primary:    f.Endpoints.Primary,
		Secondary:  f.Endpoints.Secondary,
		Other:      f.Endpoints.Other,
		Randomized: f.Randomized,
		Masked:     f.Masked,
		Phases:     f.Phase.Count(),
	}
}

// ReferenceScores supplies the corpus complexity scores, ascending.  An
// empty phase asks for the whole corpus.
type ReferenceScores interface {
	ComplexityScores(phase protocol.Phase) []float64
}

// ---------------------------------------------------------------------------
// Scorer
// ---------------------------------------------------------------------------

// Scorer is stateless apart from its read-only reference; safe for
// concurrent use.
type Scorer struct {
	reference  ReferenceScores
	minSamples int
}

// Option customises a Scorer.
type Option func(*Scorer)

// WithReference positions scores against a loaded corpus.
func WithReference(r ReferenceScores) Option {
	return func(s *Scorer) { s.reference = r }
}

// WithMinReferenceSamples sets the reference floor, normally the
// benchmark cohort floor.  Non-positive values keep the default.
func WithMinReferenceSamples(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.minSamples = n
		}
	}
}

// New returns a Scorer.
func New(opts ...Option) *Scorer {
	s := &Scorer{minSamples: DefaultMinReferenceSamples}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreCounts computes the clamped score and its breakdown.  Negative counts
// contribute nothing.
func ScoreCounts(c SubCounts) (float64, map[string]float64) {
	b := map[string]float64{
		FactorCriteria:   float64(max(0, c.Inclusion)+max(0, c.Exclusion)) * weightCriterion,
		FactorPrimary:    float64(max(0, c.Primary)) * weightPrimaryEndpoint,
		FactorSecondary:  float64(max(0, c.Secondary)) * weightSecondaryEndpoint,
		FactorOther:      float64(max(0, c.Other)) * weightOtherEndpoint,
		FactorRandomized: 0,
		FactorMasked:     0,
		FactorMultiPhase: 0,
	}
	if c.Randomized {
		b[FactorRandomized] = bonusRandomized
	}
	if c.Masked {
		b[FactorMasked] = bonusMasked
	}
	if c.Phases > 1 {
		b[FactorMultiPhase] = float64(c.Phases) * weightPhase
	}
	var total float64
	for _, v := range b {
		total += v
	}
	return common.Clamp(total, 0, maxScore), b
}

// Score computes the ComplexityScore of one protocol.
func (s *Scorer) Score(f protocol.ProtocolFeatures) protocol.ComplexityScore {
	score, breakdown := ScoreCounts(CountsFromFeatures(f))
	return protocol.ComplexityScore{
		Score:      score,
		Category:   Category(score),
		Breakdown:  breakdown,
		Percentile: s.percentile(score, f.Phase),
		Confidence: math.Round((0.5+0.5*f.Coverage(confidenceFields...))*100) / 100,
	}
}

// ScoreComplexity scores with the static percentile anchors.
func ScoreComplexity(f protocol.ProtocolFeatures) protocol.ComplexityScore {
	return New().Score(f)
}

func (s *Scorer) percentile(score float64, phase protocol.Phase) float64 {
	if s.reference != nil {
		if phase != protocol.PhaseNA {
			if ref := s.reference.ComplexityScores(phase); len(ref) >= s.minSamples {
				return common.Round1(common.PercentileRank(ref, score))
			}
		}
		if ref := s.reference.ComplexityScores(""); len(ref) >= s.minSamples {
			return common.Round1(common.PercentileRank(ref, score))
		}
	}
	return common.Round1(AnchorPercentile(score))
}

// AnchorPercentile interpolates the static industry anchors.
func AnchorPercentile(score float64) float64 {
	score = common.Clamp(score, 0, maxScore)
	for i := 1; i < len(industryAnchors); i++ {
		lo, hi := industryAnchors[i-1], industryAnchors[i]
		if score <= hi.score {
			frac := (score - lo.score) / (hi.score - lo.score)
			return lo.percentile + frac*(hi.percentile-lo.percentile)
		}
	}
	return industryAnchors[len(industryAnchors)-1].percentile
}
