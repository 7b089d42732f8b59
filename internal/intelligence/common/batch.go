package common

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// ---------------------------------------------------------------------------
// ItemStatus enumeration
// ---------------------------------------------------------------------------

// ItemStatus is the outcome of one batch item.
type ItemStatus int

const (
	ItemStatusSuccess ItemStatus = iota
	ItemStatusFailed
	ItemStatusTimeout
	ItemStatusCancelled
)

func (s ItemStatus) String() string {
	switch s {
	case ItemStatusSuccess:
		return "SUCCESS"
	case ItemStatusFailed:
		return "FAILED"
	case ItemStatusTimeout:
		return "TIMEOUT"
	case ItemStatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ---------------------------------------------------------------------------
// Generic types
// ---------------------------------------------------------------------------

// ProcessFunc processes a single item.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// ItemResult is the outcome of one item, in input order.
type ItemResult[R any] struct {
	Index      int        `json:"index"`
	Result     R          `json:"result"`
	Error      error      `json:"-"`
	DurationMs float64    `json:"duration_ms"`
	Status     ItemStatus `json:"status"`
}

// BatchResult aggregates a run.
type BatchResult[R any] struct {
	Results           []*ItemResult[R] `json:"results"`
	TotalCount        int              `json:"total_count"`
	SuccessCount      int              `json:"success_count"`
	FailureCount      int              `json:"failure_count"`
	TotalDurationMs   float64          `json:"total_duration_ms"`
	AvgItemDurationMs float64          `json:"avg_item_duration_ms"`
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type batchConfig struct {
	name           string
	maxConcurrency int
	itemTimeout    time.Duration
	batchTimeout   time.Duration
	metrics        AnalysisMetrics
	logger         logging.Logger
}

func defaultBatchConfig() *batchConfig {
	return &batchConfig{
		name:           "batch",
		maxConcurrency: runtime.NumCPU(),
		itemTimeout:    30 * time.Second,
		batchTimeout:   5 * time.Minute,
	}
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*batchConfig)

// WithBatchName labels the run in metrics and logs.
func WithBatchName(name string) BatchOption {
	return func(c *batchConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithMaxConcurrency bounds the number of items in flight.
func WithMaxConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithItemTimeout sets the per-item timeout.
func WithItemTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

// WithBatchTimeout sets the whole-run timeout.
func WithBatchTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

// WithBatchMetrics injects a metrics recorder.
func WithBatchMetrics(m AnalysisMetrics) BatchOption {
	return func(c *batchConfig) { c.metrics = m }
}

// WithBatchLogger injects a logger.
func WithBatchLogger(l logging.Logger) BatchOption {
	return func(c *batchConfig) { c.logger = l }
}

// ---------------------------------------------------------------------------
// BatchProcessor
// ---------------------------------------------------------------------------

// BatchProcessor runs a function over many items with bounded concurrency.  A
// failing item never cancels its siblings; the run completes when every
// item has settled.
type BatchProcessor[T, R any] struct {
	cfg *batchConfig
}

// NewBatchProcessor builds a runner from options.
func NewBatchProcessor[T, R any](opts ...BatchOption) *BatchProcessor[T, R] {
	cfg := defaultBatchConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewNoopAnalysisMetrics()
	}
	cfg.logger = logging.OrNop(cfg.logger)
	return &BatchProcessor[T, R]{cfg: cfg}
}

// Process runs fn for every item and returns the results in input order.
func (b *BatchProcessor[T, R]) Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error) {
	if fn == nil {
		return nil, errors.InvalidParam("process function must not be nil")
	}
	if len(items) == 0 {
		return &BatchResult[R]{Results: []*ItemResult[R]{}}, nil
	}

	start := time.Now()
	batchCtx, cancel := context.WithTimeout(ctx, b.cfg.batchTimeout)
	defer cancel()

	results := make([]*ItemResult[R], len(items))
	var g errgroup.Group
	g.SetLimit(b.cfg.maxConcurrency)
	for i, item := range items {
		if err := batchCtx.Err(); err != nil {
			results[i] = &ItemResult[R]{Index: i, Error: err, Status: classifyCtxError(err)}
			continue
		}
		i, item := i, item
		g.Go(func() error {
			results[i] = b.processOne(batchCtx, i, item, fn)
			return nil
		})
	}
	_ = g.Wait()

	br := buildBatchResult(results, time.Since(start))
	b.cfg.metrics.RecordBatchProcessing(ctx, &BatchMetricParams{
		BatchName:         b.cfg.name,
		TotalItems:        br.TotalCount,
		SuccessItems:      br.SuccessCount,
		FailedItems:       br.FailureCount,
		TotalDurationMs:   br.TotalDurationMs,
		AvgItemDurationMs: br.AvgItemDurationMs,
		MaxConcurrency:    b.cfg.maxConcurrency,
	})
	if br.FailureCount > 0 {
		b.cfg.logger.Warn("batch finished with failures",
			logging.String("batch", b.cfg.name),
			logging.Int("failed", br.FailureCount),
			logging.Int("total", br.TotalCount))
	}
	return br, nil
}

func (b *BatchProcessor[T, R]) processOne(ctx context.Context, idx int, item T, fn ProcessFunc[T, R]) *ItemResult[R] {
	start := time.Now()
	itemCtx, cancel := context.WithTimeout(ctx, b.cfg.itemTimeout)
	defer cancel()
	res, err := fn(itemCtx, item)
	if err != nil {
		return &ItemResult[R]{Index: idx, Error: err, Status: classifyError(itemCtx, err), DurationMs: msSince(start)}
	}
	return &ItemResult[R]{Index: idx, Result: res, Status: ItemStatusSuccess, DurationMs: msSince(start)}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func buildBatchResult[R any](results []*ItemResult[R], total time.Duration) *BatchResult[R] {
	br := &BatchResult[R]{
		Results:         results,
		TotalCount:      len(results),
		TotalDurationMs: float64(total.Microseconds()) / 1000.0,
	}
	var sumItemMs float64
	for _, r := range results {
		if r.Status == ItemStatusSuccess {
			br.SuccessCount++
		} else {
			br.FailureCount++
		}
		sumItemMs += r.DurationMs
	}
	if br.TotalCount > 0 {
		br.AvgItemDurationMs = sumItemMs / float64(br.TotalCount)
	}
	return br
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func classifyCtxError(err error) ItemStatus {
	switch {
	case err == nil:
		return ItemStatusSuccess
	case stdliberrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	default:
		return ItemStatusCancelled
	}
}

func classifyError(ctx context.Context, err error) ItemStatus {
	switch {
	case err == nil:
		return ItemStatusSuccess
	case stdliberrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	case stdliberrors.Is(err, context.Canceled):
		return ItemStatusCancelled
	case ctx.Err() != nil:
		return classifyCtxError(ctx.Err())
	}
	return ItemStatusFailed
}
