package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	appmetrics "github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/benchmarking"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// ErrCorpusNotLoaded is returned by benchmark lookups before the first
// successful load.
var ErrCorpusNotLoaded = errors.New(errors.ErrCodeCorpusNotLoaded, "reference corpus not loaded")

// CorpusSummary describes the loaded reference dataset.
type CorpusSummary struct {
	Version        string                                        `json:"version"`
	RunID          string                                        `json:"run_id,omitempty"`
	GeneratedAt    time.Time                                     `json:"generated_at"`
	LoadedAt       time.Time                                     `json:"loaded_at"`
	TotalProtocols int                                           `json:"total_protocols"`
	MinCohortSize  int                                           `json:"min_cohort_size"`
	Benchmarkable  []protocol.Phase                              `json:"benchmarkable_phases"`
	Phases         map[protocol.Phase]benchmarking.CohortSummary `json:"phases"`
}

// CorpusProvider holds the reference corpus in memory and swaps it
// atomically on reload.  Readers never see a partially loaded dataset.
type CorpusProvider struct {
	store   storage.ArtifactStore
	key     string
	cfg     config.BenchmarkConfig
	logger  logging.Logger
	metrics *appmetrics.AppMetrics

	mu       sync.RWMutex
	service  *benchmarking.Service
	loadedAt time.Time
}

// CorpusOption customises a CorpusProvider.
type CorpusOption func(*CorpusProvider)

// WithCorpusLogger sets the logger.
func WithCorpusLogger(l logging.Logger) CorpusOption {
	return func(p *CorpusProvider) { p.logger = l }
}

// WithCorpusMetrics publishes the corpus size gauge.
func WithCorpusMetrics(m *appmetrics.AppMetrics) CorpusOption {
	return func(p *CorpusProvider) { p.metrics = m }
}

// NewCorpusProvider returns an empty provider reading cfg.DatasetKey from
// store.  store may be nil when datasets are only installed with Set.
func NewCorpusProvider(store storage.ArtifactStore, cfg config.BenchmarkConfig, opts ...CorpusOption) *CorpusProvider {
	p := &CorpusProvider{store: store, key: cfg.DatasetKey, cfg: cfg}
	if p.key == "" {
		p.key = storage.DatasetKey
	}
	if p.cfg.MinCohortSize <= 0 {
		p.cfg.MinCohortSize = benchmarking.DefaultMinCohortSize
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = logging.OrNop(p.logger)
	return p
}

// Load reads the dataset from the artifact store and installs it.  On any
// failure the previously loaded corpus stays in place.
func (p *CorpusProvider) Load(ctx context.Context) error {
	if p.store == nil {
		return ErrCorpusNotLoaded.WithDetail("no artifact store configured")
	}
	var ds protocol.Dataset
	if err := storage.GetJSON(ctx, p.store, p.key, &ds); err != nil {
		switch {
		case storage.IsNotFound(err):
			return ErrCorpusNotLoaded.WithCause(err).WithDetail(p.key)
		case errors.IsCode(err, errors.ErrCodeSerialization):
			return errors.Wrap(err, errors.ErrCodeCorpusDecodeFailed, "reference dataset is corrupt").WithDetail(p.key)
		}
		return err
	}
	if ds.Version != "" && ds.Version != protocol.DatasetVersion {
		p.logger.Warn("dataset version differs from this build",
			logging.String("dataset_version", ds.Version),
			logging.String("expected", protocol.DatasetVersion))
	}
	p.Set(&ds)
	p.logger.Info("reference corpus loaded",
		logging.String("key", p.key),
		logging.String("location", p.store.Location()),
		logging.Int("protocols", ds.TotalProtocols),
		logging.String("run_id", ds.RunID))
	return nil
}

// Reload is Load under its operational name.
func (p *CorpusProvider) Reload(ctx context.Context) error { return p.Load(ctx) }

// Set installs ds directly.
func (p *CorpusProvider) Set(ds *protocol.Dataset) {
	minCohort := p.cfg.MinCohortSize
	if ds != nil && ds.MinCohortSize > minCohort {
		minCohort = ds.MinCohortSize
	}
	svc := benchmarking.NewService(benchmarking.NewCorpus(ds),
		benchmarking.WithMinCohortSize(minCohort),
		benchmarking.WithOutlierThresholds(p.cfg.UpperThreshold, p.cfg.LowerThreshold))

	p.mu.Lock()
	p.service = svc
	p.loadedAt = time.Now().UTC()
	p.mu.Unlock()

	if p.metrics != nil {
		for phase, st := range svc.Summary() {
			p.metrics.CorpusSize.WithLabelValues(string(phase)).Set(float64(st.Count))
		}
	}
}

// Loaded reports whether a dataset is installed.
func (p *CorpusProvider) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.service != nil
}

// Service returns the current benchmarking service, nil before the first
// load.
func (p *CorpusProvider) Service() *benchmarking.Service {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.service
}

// Benchmark positions metrics in the matching cohort.
func (p *CorpusProvider) Benchmark(m protocol.ProtocolMetrics, phase protocol.Phase, area protocol.TherapeuticArea) (*protocol.Benchmark, error) {
	svc := p.Service()
	if svc == nil {
		return nil, ErrCorpusNotLoaded
	}
	b, ok := svc.Benchmark(m, phase, area)
	if !ok {
		return nil, errors.New(errors.ErrCodeCohortTooSmall, "no cohort meets the minimum size").
			WithDetail(string(phase) + "/" + string(area))
	}
	return &b, nil
}

// Summary describes the loaded dataset.
func (p *CorpusProvider) Summary() (*CorpusSummary, error) {
	p.mu.RLock()
	svc, loadedAt := p.service, p.loadedAt
	p.mu.RUnlock()
	if svc == nil {
		return nil, ErrCorpusNotLoaded
	}

	corpus := svc.Corpus()
	out := &CorpusSummary{
		LoadedAt:       loadedAt,
		TotalProtocols: corpus.Size(),
		MinCohortSize:  svc.MinCohortSize(),
		Phases:         svc.Summary(),
	}
	if ds := corpus.Dataset(); ds != nil {
		out.Version = ds.Version
		out.RunID = ds.RunID
		out.GeneratedAt = ds.GeneratedAt
	}
	for phase, st := range out.Phases {
		if st.Benchmarkable {
			out.Benchmarkable = append(out.Benchmarkable, phase)
		}
	}
	sort.Slice(out.Benchmarkable, func(i, j int) bool { return out.Benchmarkable[i] < out.Benchmarkable[j] })
	return out, nil
}

// HandleCorpusBuilt reloads the dataset when the collector announces a new
// one.  Returning the load error lets the consumer retry.
func (p *CorpusProvider) HandleCorpusBuilt(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	var payload kafka.CorpusBuiltPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	if payload.DatasetKey != "" && payload.DatasetKey != p.key {
		p.logger.Debug("ignoring dataset announced under a different key",
			logging.String("key", payload.DatasetKey))
		return nil
	}
	p.logger.Info("corpus rebuilt, reloading",
		logging.String("run_id", payload.RunID),
		logging.Int("protocols", payload.TotalProtocols))
	return p.Reload(ctx)
}
