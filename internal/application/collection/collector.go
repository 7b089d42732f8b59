// Package collection harvests ClinicalTrials.gov into the reference corpus
// the benchmarking service reads.
package collection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	appmetrics "github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/registry/clinicaltrials"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/benchmarking"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// Harvest stages in execution order.
const (
	StageSystematic = "systematic"
	StageCondition  = "condition"
	StagePhase      = "phase"
	StageStudyType  = "study_type"
)

var (
	ErrRunInProgress    = errors.New(errors.ErrCodeCollectionRunning, "a collection run is already in progress")
	ErrNothingHarvested = errors.New(errors.ErrCodeCorpusEmpty, "collection produced no protocols")
)

// StudySource pages through registry studies.  The ClinicalTrials.gov
// client satisfies it.
type StudySource interface {
	SearchStudies(ctx context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error)
}

// requestCounter is implemented by sources that count HTTP round trips.
type requestCounter interface {
	Requests() int64
}

// EventPublisher emits domain events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, payload interface{}) error
}

// Locker guards against overlapping runs across processes.  The redis Mutex
// satisfies it.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// StageReport summarises one harvest stage.
type StageReport struct {
	Stage        string `json:"stage"`
	Ran          bool   `json:"ran"`
	Slices       int    `json:"slices"`
	FailedSlices int    `json:"failed_slices"`
	Pages        int    `json:"pages"`
	Added        int    `json:"added"`
}

// RunReport summarises one collection run.
type RunReport struct {
	RunID           string         `json:"run_id"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	Stages          []StageReport  `json:"stages"`
	TotalProtocols  int            `json:"total_protocols"`
	PhaseCounts     map[string]int `json:"phase_counts"`
	Requests        int64          `json:"requests"`
	FailedSlices    int            `json:"failed_slices"`
	Duplicates      int            `json:"duplicates_dropped"`
	Undecodable     int            `json:"undecodable_studies"`
	WithoutDocument int            `json:"dropped_without_document"`
	Persisted       int64          `json:"persisted"`
	PersistFailures int64          `json:"persist_failures"`
	DatasetKey      string         `json:"dataset_key"`
	Location        string         `json:"location"`
}

// Collector runs staged harvests.  One Collector may run repeatedly but not
// concurrently with itself.
type Collector struct {
	source     StudySource
	store      storage.ArtifactStore
	cfg        config.CollectorConfig
	datasetKey string
	minCohort  int
	mapper     *Mapper
	publisher  EventPublisher
	locker     Locker
	metrics    *appmetrics.AppMetrics
	logger     logging.Logger
	now        func() time.Time
}

// Option customises a Collector.
type Option func(*Collector)

// WithPublisher emits protocol.collected and corpus.built events.
func WithPublisher(p EventPublisher) Option { return func(c *Collector) { c.publisher = p } }

// WithLocker makes Run fail fast when another run holds the lock.
func WithLocker(l Locker) Option { return func(c *Collector) { c.locker = l } }

// WithMetrics records collector metrics.
func WithMetrics(m *appmetrics.AppMetrics) Option { return func(c *Collector) { c.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(c *Collector) { c.logger = l } }

// WithMapper replaces the study mapper.
func WithMapper(m *Mapper) Option { return func(c *Collector) { c.mapper = m } }

// WithDatasetKey overrides the dataset artifact key.
func WithDatasetKey(key string) Option {
	return func(c *Collector) {
		if key != "" {
			c.datasetKey = key
		}
	}
}

// WithMinCohortSize sets the cohort floor written into the dataset.
func WithMinCohortSize(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.minCohort = n
		}
	}
}

// WithClock fixes the run timestamps.
func WithClock(now func() time.Time) Option { return func(c *Collector) { c.now = now } }

// NewCollector builds a Collector.  Zero or negative tuning fields take the
// configuration defaults.
func NewCollector(source StudySource, store storage.ArtifactStore, cfg config.CollectorConfig, opts ...Option) *Collector {
	full := config.Config{Collector: cfg}
	config.ApplyDefaults(&full)
	c := &Collector{
		source:     source,
		store:      store,
		cfg:        clampTuning(full.Collector),
		datasetKey: storage.DatasetKey,
		minCohort:  benchmarking.DefaultMinCohortSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = logging.OrNop(c.logger).With(logging.String("component", "collector"))
	if c.mapper == nil {
		c.mapper = NewMapper(nil)
	}
	return c
}

func clampTuning(cfg config.CollectorConfig) config.CollectorConfig {
	atLeastOne := func(v *int, def int) {
		if *v < 1 {
			*v = def
		}
	}
	atLeastOne(&cfg.PageSize, config.DefaultPageSize)
	atLeastOne(&cfg.MaxProtocols, config.DefaultMaxProtocols)
	atLeastOne(&cfg.MaxEmptyPages, config.DefaultMaxEmptyPages)
	atLeastOne(&cfg.Concurrency, config.DefaultConcurrency)
	atLeastOne(&cfg.PagesPerSlice, config.DefaultPagesPerSlice)
	atLeastOne(&cfg.PersistWorkers, config.DefaultPersistWorkers)
	return cfg
}

// ---------------------------------------------------------------------------
// Harvest state
// ---------------------------------------------------------------------------

// harvest is owned by the Run goroutine; slice fetches hand their studies
// back and are merged in slice order so first-seen is deterministic.
type harvest struct {
	collectedAt time.Time
	seen        map[string]struct{}
	records     []protocol.CorpusRecord
	limit       int
	requireDoc  bool
	duplicates  int
	undecodable int
	withoutDoc  int
	out         chan<- protocol.CorpusRecord
}

func (h *harvest) full() bool { return len(h.records) >= h.limit }

// merge adds unseen studies in order until the cap and returns how many
// were added.  Later duplicates are dropped, never merged.
func (h *harvest) merge(m *Mapper, page *clinicaltrials.Page) int {
	h.undecodable += page.Skipped
	added := 0
	for _, s := range page.Studies {
		if h.full() {
			break
		}
		id := s.NCTID()
		if _, dup := h.seen[id]; dup {
			h.duplicates++
			continue
		}
		h.seen[id] = struct{}{}
		if h.requireDoc && !s.HasProtocolDocument() {
			h.withoutDoc++
			continue
		}
		rec := m.Record(s, h.collectedAt)
		h.records = append(h.records, rec)
		if h.out != nil {
			h.out <- rec
		}
		added++
	}
	return added
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run performs one full harvest: systematic pagination, then condition,
// phase and study-type sweeps while the unique count stays below each
// stage's target, then writes the dataset and summaries.  Registry failures
// only empty the affected slice; the run fails when ctx ends, when nothing
// was harvested, or when the dataset cannot be written.
func (c *Collector) Run(ctx context.Context) (*RunReport, error) {
	if c.locker != nil {
		ok, err := c.locker.TryLock(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := c.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				c.logger.Warn("failed to release collection lock", logging.Err(err))
			}
		}()
	}

	rep := &RunReport{RunID: uuid.NewString(), StartedAt: c.now(), DatasetKey: c.datasetKey}
	var baseRequests int64
	if rc, ok := c.source.(requestCounter); ok {
		baseRequests = rc.Requests()
	}
	log := c.logger.With(logging.String("run_id", rep.RunID))
	log.Info("collection started",
		logging.Int("max_protocols", c.cfg.MaxProtocols),
		logging.Int("page_size", c.cfg.PageSize))

	records := make(chan protocol.CorpusRecord, c.cfg.PersistWorkers*4)
	h := &harvest{
		collectedAt: rep.StartedAt,
		seen:        make(map[string]struct{}),
		limit:       c.cfg.MaxProtocols,
		requireDoc:  c.cfg.RequireProtocolDoc,
		out:         records,
	}
	p := c.startPersisters(ctx, rep.RunID, records)

	err := c.harvest(ctx, h, rep)
	close(records)
	p.wait()

	rep.TotalProtocols = len(h.records)
	rep.Duplicates = h.duplicates
	rep.Undecodable = h.undecodable
	rep.WithoutDocument = h.withoutDoc
	rep.Persisted = p.persisted.Load()
	rep.PersistFailures = p.failed.Load()
	if rc, ok := c.source.(requestCounter); ok {
		rep.Requests = rc.Requests() - baseRequests
	}
	for _, st := range rep.Stages {
		rep.FailedSlices += st.FailedSlices
	}

	if err == nil && len(h.records) == 0 {
		err = ErrNothingHarvested
	}
	if err == nil {
		err = c.writeOutputs(ctx, h, rep)
	}
	rep.FinishedAt = c.now()
	rep.DurationSeconds = rep.FinishedAt.Sub(rep.StartedAt).Seconds()
	c.recordRun(rep, err)

	if err != nil {
		log.Error("collection failed", logging.Err(err), logging.Int("harvested", len(h.records)))
		return rep, err
	}
	log.Info("collection finished",
		logging.Int("protocols", rep.TotalProtocols),
		logging.Int("duplicates", rep.Duplicates),
		logging.Int("failed_slices", rep.FailedSlices),
		logging.Int64("requests", rep.Requests),
		logging.Float64("seconds", rep.DurationSeconds))
	return rep, nil
}

func (c *Collector) harvest(ctx context.Context, h *harvest, rep *RunReport) error {
	sys := StageReport{Stage: StageSystematic, Ran: true, Slices: 1}
	err := c.paginate(ctx, h, clinicaltrials.SearchParams{PageSize: c.cfg.PageSize}, &sys)
	rep.Stages = append(rep.Stages, sys)
	if err != nil {
		return err
	}

	sweeps := []struct {
		stage  string
		target int
		params []clinicaltrials.SearchParams
	}{
		{StageCondition, c.cfg.ConditionTarget, c.sliceParams(c.cfg.Conditions, func(p *clinicaltrials.SearchParams, v string) { p.Condition = v })},
		{StagePhase, c.cfg.PhaseTarget, c.sliceParams(c.cfg.Phases, func(p *clinicaltrials.SearchParams, v string) { p.Phase = v })},
		{StageStudyType, c.cfg.StudyTypeTarget, c.sliceParams(c.cfg.StudyTypes, func(p *clinicaltrials.SearchParams, v string) { p.StudyType = v })},
	}
	for _, sw := range sweeps {
		st := StageReport{Stage: sw.stage}
		if len(h.records) < sw.target && !h.full() {
			st.Ran = true
			if err := c.sweep(ctx, h, sw.params, &st); err != nil {
				rep.Stages = append(rep.Stages, st)
				return err
			}
		}
		rep.Stages = append(rep.Stages, st)
		c.logger.Debug("stage finished",
			logging.String("stage", st.Stage),
			logging.Bool("ran", st.Ran),
			logging.Int("added", st.Added),
			logging.Int("total", len(h.records)))
	}
	return nil
}

func (c *Collector) sliceParams(values []string, set func(*clinicaltrials.SearchParams, string)) []clinicaltrials.SearchParams {
	out := make([]clinicaltrials.SearchParams, 0, len(values))
	for _, v := range values {
		p := clinicaltrials.SearchParams{PageSize: c.cfg.PageSize}
		set(&p, v)
		out = append(out, p)
	}
	return out
}

// paginate walks one query until MaxEmptyPages consecutive pages add
// nothing new, a page comes back short or without a next token, or the cap
// is reached.  A failed page counts as empty and is retried from the same
// token.
func (c *Collector) paginate(ctx context.Context, h *harvest, params clinicaltrials.SearchParams, st *StageReport) error {
	empty := 0
	for !h.full() {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := c.source.SearchStudies(ctx, params)
		st.Pages++
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			st.FailedSlices++
			c.logger.Warn("registry page failed, counting as empty",
				logging.String("stage", st.Stage),
				logging.String("page_token", params.PageToken),
				logging.Err(err))
			empty++
			if empty >= c.cfg.MaxEmptyPages {
				return nil
			}
			continue
		}

		added := h.merge(c.mapper, page)
		st.Added += added
		if added == 0 {
			empty++
		} else {
			empty = 0
		}
		if empty >= c.cfg.MaxEmptyPages ||
			len(page.Studies)+page.Skipped < params.PageSize ||
			page.NextPageToken == "" {
			return nil
		}
		params.PageToken = page.NextPageToken
	}
	return nil
}

type sliceResult struct {
	pages []*clinicaltrials.Page
	err   error
}

// fetchSlice reads up to PagesPerSlice pages of one query.  Any error
// discards the whole slice.
func (c *Collector) fetchSlice(ctx context.Context, params clinicaltrials.SearchParams) sliceResult {
	var res sliceResult
	for i := 0; i < c.cfg.PagesPerSlice; i++ {
		page, err := c.source.SearchStudies(ctx, params)
		if err != nil {
			return sliceResult{pages: res.pages, err: err}
		}
		res.pages = append(res.pages, page)
		if len(page.Studies)+page.Skipped < params.PageSize || page.NextPageToken == "" {
			break
		}
		params.PageToken = page.NextPageToken
	}
	return res
}

// sweep fetches slices in groups of Concurrency, waits for the whole group,
// then merges it in slice order.  Pacing comes from the source's limiter.
func (c *Collector) sweep(ctx context.Context, h *harvest, slices []clinicaltrials.SearchParams, st *StageReport) error {
	for start := 0; start < len(slices) && !h.full(); start += c.cfg.Concurrency {
		group := slices[start:min(start+c.cfg.Concurrency, len(slices))]
		results := make([]sliceResult, len(group))

		var g errgroup.Group
		for i, params := range group {
			i, params := i, params
			g.Go(func() error {
				results[i] = c.fetchSlice(ctx, params)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}

		for i, res := range results {
			st.Slices++
			st.Pages += len(res.pages)
			if res.err != nil {
				st.FailedSlices++
				c.logger.Warn("registry slice failed, counting as empty",
					logging.String("stage", st.Stage),
					logging.String("condition", group[i].Condition),
					logging.String("phase", group[i].Phase),
					logging.String("study_type", group[i].StudyType),
					logging.Err(res.err))
				continue
			}
			for _, page := range res.pages {
				st.Added += h.merge(c.mapper, page)
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

type persisters struct {
	wg        sync.WaitGroup
	persisted atomic.Int64
	failed    atomic.Int64
}

func (p *persisters) wait() { p.wg.Wait() }

// startPersisters drains records into per-protocol artifacts and
// protocol.collected events.  Failures are logged and counted only.
func (c *Collector) startPersisters(ctx context.Context, runID string, in <-chan protocol.CorpusRecord) *persisters {
	p := &persisters{}
	for i := 0; i < c.cfg.PersistWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for rec := range in {
				c.persistOne(ctx, runID, rec, p)
			}
		}()
	}
	return p
}

func (c *Collector) persistOne(ctx context.Context, runID string, rec protocol.CorpusRecord, p *persisters) {
	if !c.cfg.SkipProtocolFiles && c.store != nil {
		if err := storage.PutJSON(ctx, c.store, storage.ProtocolKey(rec.NCTID), rec); err != nil {
			p.failed.Add(1)
			if c.metrics != nil {
				c.metrics.CollectorPersistFailed.WithLabelValues().Inc()
			}
			c.logger.Error("failed to persist protocol",
				logging.String("nct_id", rec.NCTID),
				logging.Err(err))
		} else {
			p.persisted.Add(1)
		}
	}
	if c.publisher != nil {
		err := c.publisher.PublishEvent(ctx, kafka.TopicProtocolCollected, rec.NCTID, kafka.ProtocolCollectedPayload{
			RunID:           runID,
			NCTID:           rec.NCTID,
			Phase:           string(rec.Phase),
			TherapeuticArea: string(rec.TherapeuticArea),
			ComplexityScore: rec.ComplexityScore,
			HasProtocolDoc:  rec.HasProtocolDocument,
		})
		appmetrics.RecordEvent(c.metrics, kafka.TopicProtocolCollected, err)
	}
}

// ---------------------------------------------------------------------------
// Outputs
// ---------------------------------------------------------------------------

func (c *Collector) writeOutputs(ctx context.Context, h *harvest, rep *RunReport) error {
	if c.store == nil {
		return errors.Internal("collector has no artifact store")
	}
	ds := benchmarking.BuildDataset(h.records, c.minCohort, c.now(), rep.RunID)
	rep.PhaseCounts = make(map[string]int)
	for _, r := range h.records {
		rep.PhaseCounts[string(r.Phase)]++
	}
	rep.Location = c.store.Location()

	if err := storage.PutJSON(ctx, c.store, c.datasetKey, ds); err != nil {
		return err
	}

	md := RenderSummary(ds, rep)
	if err := c.store.Put(ctx, storage.SummaryMarkdownKey, []byte(md), storage.ContentTypeMarkdown); err != nil {
		c.logger.Error("failed to write markdown summary", logging.Err(err))
	}
	if html, err := RenderHTML(md); err != nil {
		c.logger.Error("failed to render HTML summary", logging.Err(err))
	} else if err := c.store.Put(ctx, storage.SummaryHTMLKey, html, storage.ContentTypeHTML); err != nil {
		c.logger.Error("failed to write HTML summary", logging.Err(err))
	}

	if c.publisher != nil {
		err := c.publisher.PublishEvent(ctx, kafka.TopicCorpusBuilt, rep.RunID, kafka.CorpusBuiltPayload{
			RunID:          rep.RunID,
			DatasetKey:     c.datasetKey,
			Location:       rep.Location,
			TotalProtocols: ds.TotalProtocols,
			PhaseCounts:    rep.PhaseCounts,
			GeneratedAt:    ds.GeneratedAt,
		})
		appmetrics.RecordEvent(c.metrics, kafka.TopicCorpusBuilt, err)
		if err != nil {
			c.logger.Warn("failed to announce corpus", logging.Err(err))
		}
	}
	return nil
}

func (c *Collector) recordRun(rep *RunReport, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.metrics.CollectorRunsTotal.WithLabelValues(status).Inc()
	c.metrics.CollectorRunDuration.WithLabelValues().Observe(rep.DurationSeconds)
	c.metrics.CollectorDuplicates.WithLabelValues().Add(float64(rep.Duplicates))
	for _, st := range rep.Stages {
		c.metrics.CollectorStageAdded.WithLabelValues(st.Stage).Add(float64(st.Added))
		c.metrics.CollectorFailedSlices.WithLabelValues(st.Stage).Add(float64(st.FailedSlices))
	}
}
