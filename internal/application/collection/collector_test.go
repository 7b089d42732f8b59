package collection

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/registry/clinicaltrials"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage/filesystem"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeSource struct {
	mu      sync.Mutex
	calls   []clinicaltrials.SearchParams
	handler func(ctx context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error)
}

func (f *fakeSource) SearchStudies(ctx context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.handler(ctx, p)
}

func (f *fakeSource) Requests() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.calls))
}

func (f *fakeSource) callsWhere(match func(clinicaltrials.SearchParams) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if match(c) {
			n++
		}
	}
	return n
}

type publishedEvent struct {
	topic   string
	key     string
	payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic, key, payload})
	return nil
}

func (p *fakePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.topic == topic {
			n++
		}
	}
	return n
}

// failingStore rejects writes to one key and delegates everything else.
type failingStore struct {
	storage.ArtifactStore
	failKey string
}

func (f *failingStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == f.failKey {
		return errors.New(errors.ErrCodeArtifactWrite, "disk full").WithDetail(key)
	}
	return f.ArtifactStore.Put(ctx, key, data, contentType)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) TryLock(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) Unlock(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func study(id, title string, phases ...string) clinicaltrials.Study {
	var s clinicaltrials.Study
	s.ProtocolSection.Identification.NCTID = id
	s.ProtocolSection.Identification.BriefTitle = title
	s.ProtocolSection.Design.StudyType = "INTERVENTIONAL"
	s.ProtocolSection.Design.Phases = phases
	s.ProtocolSection.Design.Enrollment.Count = 120
	s.ProtocolSection.Conditions.Conditions = []string{"Type 2 Diabetes"}
	s.ProtocolSection.Eligibility.Criteria = "Inclusion Criteria:\n* Adults 18-75\n* HbA1c 7-10%\n\nExclusion Criteria:\n* Pregnancy\n"
	s.ProtocolSection.Outcomes.Primary = []clinicaltrials.Outcome{{Measure: "Change in HbA1c", TimeFrame: "24 weeks"}}
	return s
}

func studies(prefix string, from, to int) []clinicaltrials.Study {
	out := make([]clinicaltrials.Study, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, study(fmt.Sprintf("%s%05d", prefix, i), "Study "+prefix, "PHASE2"))
	}
	return out
}

func page(token string, ss ...clinicaltrials.Study) *clinicaltrials.Page {
	return &clinicaltrials.Page{Studies: ss, NextPageToken: token}
}

func isSystematic(p clinicaltrials.SearchParams) bool {
	return p.Condition == "" && p.Phase == "" && p.StudyType == ""
}

// testConfig keeps every sweep to a single slice and skips sweeps once any
// record exists.
func testConfig() config.CollectorConfig {
	return config.CollectorConfig{
		PageSize:        2,
		MaxProtocols:    100,
		MaxEmptyPages:   2,
		ConditionTarget: 1,
		PhaseTarget:     1,
		StudyTypeTarget: 1,
		Concurrency:     2,
		PagesPerSlice:   2,
		PersistWorkers:  2,
		Conditions:      []string{"asthma"},
		Phases:          []string{"PHASE2"},
		StudyTypes:      []string{"INTERVENTIONAL"},
	}
}

func newStore(t *testing.T) storage.ArtifactStore {
	t.Helper()
	s, err := filesystem.NewStore(t.TempDir(), logging.NewNopLogger())
	require.NoError(t, err)
	return s
}

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func loadDataset(t *testing.T, store storage.ArtifactStore) *protocol.Dataset {
	t.Helper()
	var ds protocol.Dataset
	require.NoError(t, storage.GetJSON(context.Background(), store, storage.DatasetKey, &ds))
	return &ds
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRun_SystematicPaginationDeduplicates(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		switch p.PageToken {
		case "":
			return page("p2", study("NCT00000001", "first", "PHASE2"), study("nct00000002", "b", "PHASE3")), nil
		case "p2":
			return page("", study("NCT00000002", "dup", "PHASE3"), study("NCT00000003", "c", "PHASE2")), nil
		}
		return nil, fmt.Errorf("unexpected token %q", p.PageToken)
	}}
	store := newStore(t)
	pub := &fakePublisher{}

	c := NewCollector(src, store, testConfig(), WithPublisher(pub), WithClock(fixedClock()), WithMinCohortSize(2))
	rep, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.TotalProtocols)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Equal(t, int64(2), rep.Requests)
	assert.Equal(t, int64(3), rep.Persisted)
	assert.Equal(t, map[string]int{"PHASE2": 2, "PHASE3": 1}, rep.PhaseCounts)
	require.Len(t, rep.Stages, 4)
	assert.Equal(t, StageReport{Stage: StageSystematic, Ran: true, Slices: 1, Pages: 2, Added: 3}, rep.Stages[0])
	for _, st := range rep.Stages[1:] {
		assert.False(t, st.Ran, st.Stage)
	}

	ds := loadDataset(t, store)
	assert.Equal(t, 3, ds.TotalProtocols)
	assert.Equal(t, 2, ds.MinCohortSize)
	assert.Equal(t, rep.RunID, ds.RunID)
	assert.Contains(t, ds.Phases, protocol.Phase2)
	assert.NotContains(t, ds.Phases, protocol.Phase3)
	assert.Equal(t, "NCT00000002", ds.Records[1].NCTID)
	assert.Equal(t, "b", ds.Records[1].Title)

	keys, err := store.List(context.Background(), storage.ProtocolsPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"protocols/NCT00000001.json", "protocols/NCT00000002.json", "protocols/NCT00000003.json"}, keys)
	for _, key := range []string{storage.SummaryMarkdownKey, storage.SummaryHTMLKey} {
		ok, err := store.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}

	assert.Equal(t, 3, pub.count(kafka.TopicProtocolCollected))
	assert.Equal(t, 1, pub.count(kafka.TopicCorpusBuilt))
}

func TestRun_StopsAfterConsecutiveEmptyPages(t *testing.T) {
	calls := 0
	src := &fakeSource{handler: func(_ context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		calls++
		return page(fmt.Sprintf("t%d", calls), study("NCT1", "a", "PHASE2"), study("NCT2", "b", "PHASE2")), nil
	}}
	c := NewCollector(src, newStore(t), testConfig())
	rep, err := c.Run(context.Background())
	require.NoError(t, err)

	// One productive page, then MaxEmptyPages pages that add nothing.
	assert.Equal(t, 3, src.callsWhere(isSystematic))
	assert.Equal(t, 2, rep.TotalProtocols)
	assert.Equal(t, 4, rep.Duplicates)
}

func TestRun_ShortPageEndsPagination(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, _ clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		return page("more", study("NCT1", "a", "PHASE1")), nil
	}}
	rep, err := NewCollector(src, newStore(t), testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.callsWhere(isSystematic))
	assert.Equal(t, 1, rep.TotalProtocols)
}

func TestRun_SkippedStudiesKeepPageFull(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		if p.PageToken == "" {
			pg := page("p2", study("NCT1", "a", "PHASE2"))
			pg.Skipped = 1
			return pg, nil
		}
		return page("", study("NCT2", "b", "PHASE2")), nil
	}}
	rep, err := NewCollector(src, newStore(t), testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.callsWhere(isSystematic))
	assert.Equal(t, 2, rep.TotalProtocols)
	assert.Equal(t, 1, rep.Undecodable)
}

func TestRun_CapStopsHarvest(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, _ clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		return page("next", studies("NCT", 1, 5)...), nil
	}}
	cfg := testConfig()
	cfg.MaxProtocols = 3
	cfg.ConditionTarget = 50
	rep, err := NewCollector(src, newStore(t), cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, rep.TotalProtocols)
	assert.Equal(t, 1, src.callsWhere(isSystematic))
	assert.False(t, rep.Stages[1].Ran, "sweeps never start once the cap is reached")
}

func TestRun_GatedSweeps(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		switch {
		case isSystematic(p):
			return page("", study("NCT00000001", "systematic", "PHASE2")), nil
		case p.Condition == "asthma":
			return page("", study("NCT00000001", "condition copy", "PHASE2"), study("NCT00000010", "asthma", "PHASE3")), nil
		case p.Condition == "copd":
			return page("", study("NCT00000011", "copd", "PHASE3")), nil
		case p.StudyType != "":
			return page("", study("NCT00000020", "type", "PHASE4")), nil
		}
		return page(""), nil
	}}
	cfg := testConfig()
	cfg.Conditions = []string{"asthma", "copd"}
	cfg.ConditionTarget = 5
	cfg.PhaseTarget = 3
	cfg.StudyTypeTarget = 10
	store := newStore(t)

	rep, err := NewCollector(src, store, cfg, WithMinCohortSize(1)).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Stages, 4)
	assert.True(t, rep.Stages[1].Ran)
	assert.Equal(t, 2, rep.Stages[1].Slices)
	assert.Equal(t, 2, rep.Stages[1].Added)
	assert.False(t, rep.Stages[2].Ran, "three records already meet the phase target")
	assert.Zero(t, src.callsWhere(func(p clinicaltrials.SearchParams) bool { return p.Phase != "" }))
	assert.True(t, rep.Stages[3].Ran)
	assert.Equal(t, 4, rep.TotalProtocols)
	assert.Equal(t, 1, rep.Duplicates)

	ds := loadDataset(t, store)
	assert.Equal(t, "systematic", ds.Records[0].Title, "first-seen record wins")
	assert.Equal(t, []string{"NCT00000001", "NCT00000010", "NCT00000011", "NCT00000020"},
		[]string{ds.Records[0].NCTID, ds.Records[1].NCTID, ds.Records[2].NCTID, ds.Records[3].NCTID})
}

func TestRun_FailedSliceIsDiscarded(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		switch {
		case isSystematic(p):
			return page("", study("NCT1", "a", "PHASE2")), nil
		case p.Condition == "flaky" && p.PageToken == "":
			return page("p2", study("NCT90", "lost", "PHASE2"), study("NCT91", "lost", "PHASE2")), nil
		case p.Condition == "flaky":
			return nil, errors.New(errors.ErrCodeRegistryUnavailable, "registry down")
		case p.Condition == "down":
			return nil, errors.New(errors.ErrCodeRegistryUnavailable, "registry down")
		case p.Condition == "ok":
			return page("", study("NCT2", "b", "PHASE2")), nil
		}
		return page(""), nil
	}}
	cfg := testConfig()
	cfg.Conditions = []string{"flaky", "down", "ok"}
	cfg.ConditionTarget = 10

	rep, err := NewCollector(src, newStore(t), cfg).Run(context.Background())
	require.NoError(t, err)

	cond := rep.Stages[1]
	assert.Equal(t, 3, cond.Slices)
	assert.Equal(t, 2, cond.FailedSlices)
	assert.Equal(t, 1, cond.Added)
	assert.Equal(t, 2, rep.TotalProtocols)
	assert.GreaterOrEqual(t, rep.FailedSlices, 2)
}

func TestRun_FailedSystematicPagesCountAsEmpty(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		if isSystematic(p) {
			return nil, errors.New(errors.ErrCodeRegistryUnavailable, "registry down")
		}
		return page("", study("NCT5", "from sweep", "PHASE2")), nil
	}}
	rep, err := NewCollector(src, newStore(t), testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.callsWhere(isSystematic))
	assert.Equal(t, 2, rep.Stages[0].FailedSlices)
	assert.True(t, rep.Stages[1].Ran)
	assert.Equal(t, 1, rep.TotalProtocols)
}

func TestRun_RequireProtocolDocument(t *testing.T) {
	withDoc := study("NCT1", "documented", "PHASE2")
	withDoc.DocumentSection.LargeDocuments.Documents = []clinicaltrials.LargeDocument{{TypeAbbrev: "Prot", HasProtocol: true}}
	src := &fakeSource{handler: func(_ context.Context, _ clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		return page("", withDoc, study("NCT2", "bare", "PHASE2")), nil
	}}
	cfg := testConfig()
	cfg.RequireProtocolDoc = true
	store := newStore(t)

	rep, err := NewCollector(src, store, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.TotalProtocols)
	assert.Equal(t, 1, rep.WithoutDocument)
	ds := loadDataset(t, store)
	require.Len(t, ds.Records, 1)
	assert.True(t, ds.Records[0].HasProtocolDocument)
}

func TestRun_SkipProtocolFiles(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, _ clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		return page("", study("NCT1", "a", "PHASE2")), nil
	}}
	cfg := testConfig()
	cfg.SkipProtocolFiles = true
	store := newStore(t)

	rep, err := NewCollector(src, store, cfg, WithDatasetKey("corpus/v1.json")).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Persisted)
	assert.Equal(t, "corpus/v1.json", rep.DatasetKey)

	keys, err := store.List(context.Background(), storage.ProtocolsPrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)
	ok, err := store.Exists(context.Background(), "corpus/v1.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_EmptyHarvestWritesNothing(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, _ clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		return page(""), nil
	}}
	store := newStore(t)
	pub := &fakePublisher{}

	rep, err := NewCollector(src, store, testConfig(), WithPublisher(pub)).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusEmpty))
	require.NotNil(t, rep)
	assert.Zero(t, rep.TotalProtocols)

	ok, err := store.Exists(context.Background(), storage.DatasetKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, pub.count(kafka.TopicCorpusBuilt))
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{handler: func(_ context.Context, _ clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		cancel()
		return page("next", study("NCT1", "a", "PHASE2"), study("NCT2", "b", "PHASE2")), nil
	}}
	store := newStore(t)

	_, err := NewCollector(src, store, testConfig()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	ok, err := store.Exists(context.Background(), storage.DatasetKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_LockHeldElsewhere(t *testing.T) {
	locker := &mockLocker{}
	locker.On("TryLock", mock.Anything).Return(false, nil)
	src := &fakeSource{handler: func(context.Context, clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		t.Fatal("source must not be queried without the lock")
		return nil, nil
	}}

	_, err := NewCollector(src, newStore(t), testConfig(), WithLocker(locker)).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCollectionRunning))
	locker.AssertNotCalled(t, "Unlock", mock.Anything)
}

func TestRun_LockReleasedAfterRun(t *testing.T) {
	locker := &mockLocker{}
	locker.On("TryLock", mock.Anything).Return(true, nil)
	locker.On("Unlock", mock.Anything).Return(nil)
	src := &fakeSource{handler: func(context.Context, clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		return page("", study("NCT1", "a", "PHASE2")), nil
	}}

	_, err := NewCollector(src, newStore(t), testConfig(), WithLocker(locker)).Run(context.Background())
	require.NoError(t, err)
	locker.AssertExpectations(t)
}

func TestRun_SummaryListsStages(t *testing.T) {
	src := &fakeSource{handler: func(context.Context, clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		return page("", studies("NCT", 1, 2)...), nil
	}}
	store := newStore(t)
	_, err := NewCollector(src, store, testConfig(), WithMinCohortSize(2)).Run(context.Background())
	require.NoError(t, err)

	md, err := store.Get(context.Background(), storage.SummaryMarkdownKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Reference Corpus Summary"))
	assert.Contains(t, string(md), "| systematic | yes | 1 | 0 | 1 | 2 |")
}

func TestRun_PersistFailureDoesNotFailRun(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, _ clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		return page("", study("NCT1", "a", "PHASE2"), study("NCT2", "b", "PHASE2")), nil
	}}
	store := &failingStore{ArtifactStore: newStore(t), failKey: storage.ProtocolKey("NCT2")}

	rep, err := NewCollector(src, store, testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.TotalProtocols)
	assert.EqualValues(t, 1, rep.Persisted)
	assert.EqualValues(t, 1, rep.PersistFailures)
	assert.Len(t, loadDataset(t, store).Records, 2)
}

func TestRun_NegativeTuningFallsBackToDefaults(t *testing.T) {
	src := &fakeSource{handler: func(_ context.Context, _ clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		return page("", study("NCT1", "a", "PHASE2")), nil
	}}
	cfg := testConfig()
	cfg.PersistWorkers = -1
	cfg.PagesPerSlice = -2
	cfg.MaxEmptyPages = -5
	cfg.Concurrency = -3

	c := NewCollector(src, newStore(t), cfg)
	assert.Equal(t, config.DefaultPersistWorkers, c.cfg.PersistWorkers)
	assert.Equal(t, config.DefaultPagesPerSlice, c.cfg.PagesPerSlice)
	assert.Equal(t, config.DefaultMaxEmptyPages, c.cfg.MaxEmptyPages)
	assert.Equal(t, config.DefaultConcurrency, c.cfg.Concurrency)

	rep, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.TotalProtocols)
	assert.EqualValues(t, 1, rep.Persisted)
}

func TestRun_SweepBatchesRespectConcurrency(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
		slowEnd  time.Time
		starts   = make(map[string]time.Time)
	)
	src := &fakeSource{handler: func(_ context.Context, p clinicaltrials.SearchParams) (*clinicaltrials.Page, error) {
		if isSystematic(p) {
			return page(""), nil
		}
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		starts[p.Condition] = time.Now()
		mu.Unlock()

		delay := 10 * time.Millisecond
		if p.Condition == "c1" {
			delay = 60 * time.Millisecond
		}
		time.Sleep(delay)

		mu.Lock()
		inFlight--
		if p.Condition == "c1" {
			slowEnd = time.Now()
		}
		mu.Unlock()
		return page("", study("NCT-"+p.Condition, p.Condition, "PHASE2")), nil
	}}
	cfg := testConfig()
	cfg.Conditions = []string{"c1", "c2", "c3", "c4", "c5", "c6"}
	cfg.Concurrency = 3
	cfg.ConditionTarget = 6
	cfg.PhaseTarget = 6
	cfg.StudyTypeTarget = 6

	rep, err := NewCollector(src, newStore(t), cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Stages[1].Slices)
	assert.Equal(t, 6, rep.Stages[1].Added)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 3)
	assert.GreaterOrEqual(t, peak, 1)
	for _, cond := range []string{"c4", "c5", "c6"} {
		assert.False(t, starts[cond].Before(slowEnd), "%s started before the first batch settled", cond)
	}
}
