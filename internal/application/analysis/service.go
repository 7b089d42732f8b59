// Package analysis runs the full protocol scoring pipeline: feature
// extraction, complexity, enrollment, visit burden, benchmark and
// recommendations.
package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/common"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/complexity_scorer"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/enrollment_predictor"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/feature_extractor"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/recommendations"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/visit_burden"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// Operation names recorded in analysis metrics.
const (
	OpAnalyze     = "analyze"
	OpFeatures    = "features"
	OpComplexity  = "complexity"
	OpEnrollment  = "enrollment"
	OpVisitBurden = "visit_burden"
	OpBenchmark   = "benchmark"
)

// EventPublisher emits domain events.  The kafka Publisher satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, payload interface{}) error
}

// Request is one protocol to analyse.  Phase and TherapeuticArea, when set,
// override what the extractor finds in the text.
type Request struct {
	Text            string `json:"text"`
	Phase           string `json:"phase,omitempty"`
	TherapeuticArea string `json:"therapeutic_area,omitempty"`
}

// Report is the combined result of one analysis.  Benchmark is nil when no
// corpus is loaded or the cohort is below the floor; BenchmarkNote says
// which.
type Report struct {
	ID              string                         `json:"id"`
	AnalyzedAt      time.Time                      `json:"analyzed_at"`
	Features        protocol.ProtocolFeatures      `json:"features"`
	Complexity      protocol.ComplexityScore       `json:"complexity"`
	Enrollment      protocol.EnrollmentFeasibility `json:"enrollment"`
	VisitBurden     protocol.VisitBurdenAnalysis   `json:"visit_burden"`
	Benchmark       *protocol.Benchmark            `json:"benchmark,omitempty"`
	BenchmarkNote   string                         `json:"benchmark_note,omitempty"`
	Recommendations []protocol.Recommendation      `json:"recommendations"`
	DurationMs      float64                        `json:"duration_ms"`
}

// BatchItem is the outcome of one request in a batch.
type BatchItem struct {
	Index  int     `json:"index"`
	Report *Report `json:"report,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// BatchReport aggregates AnalyzeBatch.
type BatchReport struct {
	Items        []BatchItem `json:"items"`
	SuccessCount int         `json:"success_count"`
	FailureCount int         `json:"failure_count"`
	DurationMs   float64     `json:"duration_ms"`
}

// Service orchestrates the scoring engine.  It holds no per-request state
// and is safe for concurrent use.
type Service struct {
	extractor        *feature_extractor.Extractor
	predictor        *enrollment_predictor.Predictor
	corpus           *CorpusProvider
	publisher        EventPublisher
	metrics          common.AnalysisMetrics
	logger           logging.Logger
	batchConcurrency int
	itemTimeout      time.Duration
	batchTimeout     time.Duration
	now              func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithCorpus enables benchmarking and corpus-relative percentiles.
func WithCorpus(p *CorpusProvider) Option { return func(s *Service) { s.corpus = p } }

// WithPublisher emits a protocol.analyzed event per analysis.
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.publisher = p } }

// WithMetrics records analysis metrics.
func WithMetrics(m common.AnalysisMetrics) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(s *Service) { s.logger = l } }

// WithExtractor replaces the default feature extractor.
func WithExtractor(e *feature_extractor.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithBatchConcurrency bounds AnalyzeBatch parallelism.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// WithBatchConfig applies the analysis section of the configuration to
// AnalyzeBatch.  Zero fields keep the defaults.
func WithBatchConfig(cfg config.AnalysisConfig) Option {
	return func(s *Service) {
		if cfg.BatchConcurrency > 0 {
			s.batchConcurrency = cfg.BatchConcurrency
		}
		s.itemTimeout = cfg.ItemTimeout
		s.batchTimeout = cfg.BatchTimeout
	}
}

// NewService builds a Service.
func NewService(opts ...Option) *Service {
	s := &Service{
		predictor:        enrollment_predictor.New(),
		batchConcurrency: 4,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrNop(s.logger)
	if s.extractor == nil {
		s.extractor = feature_extractor.New(feature_extractor.WithLogger(s.logger))
	}
	if s.metrics == nil {
		s.metrics = common.NewNoopAnalysisMetrics()
	}
	return s
}

// Features extracts features and applies the request overrides.
func (s *Service) Features(ctx context.Context, req Request) protocol.ProtocolFeatures {
	var f protocol.ProtocolFeatures
	_ = common.Timed(ctx, s.metrics, OpFeatures, func() error {
		f = s.extractor.Extract(req.Text)
		return nil
	})
	if req.Phase != "" {
		if p := protocol.NormalizePhase(req.Phase); p != protocol.PhaseNA {
			f.Phase = p
		}
	}
	if req.TherapeuticArea != "" {
		f.TherapeuticArea = protocol.ParseArea(req.TherapeuticArea)
	}
	return f
}

// Complexity scores f, against the loaded corpus when there is one.
func (s *Service) Complexity(ctx context.Context, f protocol.ProtocolFeatures) protocol.ComplexityScore {
	var cs protocol.ComplexityScore
	_ = common.Timed(ctx, s.metrics, OpComplexity, func() error {
		cs = s.scorer().Score(f)
		return nil
	})
	s.metrics.RecordComplexity(ctx, cs.Score, string(cs.Category))
	return cs
}

// Enrollment forecasts recruitment for f.
func (s *Service) Enrollment(ctx context.Context, f protocol.ProtocolFeatures) protocol.EnrollmentFeasibility {
	var ef protocol.EnrollmentFeasibility
	_ = common.Timed(ctx, s.metrics, OpEnrollment, func() error {
		ef = s.predictor.Predict(f)
		return nil
	})
	s.metrics.RecordEnrollment(ctx, ef.EstimatedMonths, string(ef.Difficulty))
	return ef
}

// VisitBurden scores the visit schedule described in text.  f supplies the
// cadence, duration and inpatient flag, so request overrides and the
// configured extractor apply.
func (s *Service) VisitBurden(ctx context.Context, text string, f protocol.ProtocolFeatures) protocol.VisitBurdenAnalysis {
	var vb protocol.VisitBurdenAnalysis
	_ = common.Timed(ctx, s.metrics, OpVisitBurden, func() error {
		vb = visit_burden.CalculateBurden(visit_burden.FactorsFromFeatures(text, f))
		return nil
	})
	return vb
}

// Benchmark compares metrics with the loaded corpus.  It fails with
// CORPUS_001 before a corpus is loaded and CORPUS_002 when no cohort meets
// the floor.
func (s *Service) Benchmark(ctx context.Context, m protocol.ProtocolMetrics, phase protocol.Phase, area protocol.TherapeuticArea) (*protocol.Benchmark, error) {
	if s.corpus == nil {
		return nil, ErrCorpusNotLoaded
	}
	var b *protocol.Benchmark
	err := common.Timed(ctx, s.metrics, OpBenchmark, func() error {
		var err error
		b, err = s.corpus.Benchmark(m, phase, area)
		return err
	})
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeCohortTooSmall) {
			s.metrics.RecordBenchmarkOmitted(ctx, string(phase))
		}
		return nil, err
	}
	for _, o := range b.Outliers {
		s.metrics.RecordOutlier(ctx, o.Metric, string(o.Severity))
	}
	return b, nil
}

// Analyze runs the whole pipeline over one protocol.  It only fails when ctx
// is done; missing corpus data degrades to a report without a benchmark.
func (s *Service) Analyze(ctx context.Context, req Request) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	r := &Report{ID: uuid.NewString(), AnalyzedAt: s.now()}

	r.Features = s.Features(ctx, req)
	r.Complexity = s.Complexity(ctx, r.Features)
	r.Enrollment = s.Enrollment(ctx, r.Features)
	r.VisitBurden = s.VisitBurden(ctx, req.Text, r.Features)

	b, err := s.Benchmark(ctx, r.Features.Metrics(r.Complexity.Score), r.Features.Phase, r.Features.TherapeuticArea)
	switch {
	case err == nil:
		r.Benchmark = b
	case errors.IsCode(err, errors.ErrCodeCorpusNotLoaded):
		r.BenchmarkNote = "reference corpus not loaded"
	case errors.IsCode(err, errors.ErrCodeCohortTooSmall):
		r.BenchmarkNote = "no " + r.Features.Phase.Label() + " cohort meets the minimum size"
	default:
		s.logger.Warn("benchmark failed", logging.String("analysis_id", r.ID), logging.Err(err))
		r.BenchmarkNote = "benchmark unavailable"
	}

	r.Recommendations = recommendations.Generate(recommendations.Input{
		Features:    r.Features,
		Complexity:  r.Complexity,
		Enrollment:  r.Enrollment,
		VisitBurden: r.VisitBurden,
		Benchmark:   r.Benchmark,
	})
	r.DurationMs = float64(time.Since(start).Microseconds()) / 1000

	s.metrics.RecordAnalysis(ctx, &common.AnalysisMetricParams{
		Operation:  OpAnalyze,
		DurationMs: r.DurationMs,
		Success:    true,
		TextLength: len(req.Text),
	})
	s.logger.Debug("protocol analysed",
		logging.String("analysis_id", r.ID),
		logging.String("phase", string(r.Features.Phase)),
		logging.String("area", string(r.Features.TherapeuticArea)),
		logging.Float64("complexity", r.Complexity.Score),
		logging.Bool("benchmarked", r.Benchmark != nil))
	s.publish(ctx, r)
	return r, nil
}

// AnalyzeBatch analyses every request with bounded concurrency.  Items fail
// independently.
func (s *Service) AnalyzeBatch(ctx context.Context, reqs []Request) (*BatchReport, error) {
	bp := common.NewBatchProcessor[Request, *Report](
		common.WithBatchName(OpAnalyze),
		common.WithMaxConcurrency(s.batchConcurrency),
		common.WithItemTimeout(s.itemTimeout),
		common.WithBatchTimeout(s.batchTimeout),
		common.WithBatchMetrics(s.metrics),
		common.WithBatchLogger(s.logger),
	)
	res, err := bp.Process(ctx, reqs, s.Analyze)
	if err != nil {
		return nil, err
	}
	out := &BatchReport{
		Items:        make([]BatchItem, len(res.Results)),
		SuccessCount: res.SuccessCount,
		FailureCount: res.FailureCount,
		DurationMs:   res.TotalDurationMs,
	}
	for i, ir := range res.Results {
		item := BatchItem{Index: ir.Index, Report: ir.Result}
		if ir.Error != nil {
			item.Error = ir.Error.Error()
		}
		out.Items[i] = item
	}
	return out, nil
}

func (s *Service) scorer() *complexity_scorer.Scorer {
	if s.corpus != nil {
		if svc := s.corpus.Service(); svc != nil {
			return complexity_scorer.New(
				complexity_scorer.WithReference(svc.Corpus()),
				complexity_scorer.WithMinReferenceSamples(svc.MinCohortSize()))
		}
	}
	return complexity_scorer.New()
}

func (s *Service) publish(ctx context.Context, r *Report) {
	if s.publisher == nil {
		return
	}
	payload := kafka.ProtocolAnalyzedPayload{
		AnalysisID:          r.ID,
		Phase:               string(r.Features.Phase),
		TherapeuticArea:     string(r.Features.TherapeuticArea),
		ComplexityScore:     r.Complexity.Score,
		ComplexityCategory:  string(r.Complexity.Category),
		EstimatedMonths:     r.Enrollment.EstimatedMonths,
		DifficultyTier:      string(r.Enrollment.Difficulty),
		BurdenScore:         r.VisitBurden.BurdenScore,
		Benchmarked:         r.Benchmark != nil,
		RecommendationCount: len(r.Recommendations),
		AnalyzedAt:          r.AnalyzedAt,
	}
	if err := s.publisher.PublishEvent(ctx, kafka.TopicProtocolAnalyzed, r.ID, payload); err != nil {
		s.logger.Warn("failed to publish analysis event",
			logging.String("analysis_id", r.ID),
			logging.Err(err))
	}
}

// Empty reports whether req carries no text.
func (req Request) Empty() bool { return strings.TrimSpace(req.Text) == "" }
