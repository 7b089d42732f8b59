// Package clinicaltrials is a client for the ClinicalTrials.gov v2 REST API.
package clinicaltrials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	appmetrics "github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

const (
	studiesPath     = "/studies"
	maxPageSize     = 1000
	maxRetryAfter   = 60 * time.Second
	maxErrorBodyLen = 512
)

// PageCache memoises page responses.  The redis cache satisfies it.
type PageCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// SearchParams selects one page of studies.  Empty filters are omitted.
type SearchParams struct {
	Condition string
	Phase     string
	StudyType string
	PageSize  int
	PageToken string
}

// Page is one decoded response.  Skipped counts study entries that could
// not be decoded and were dropped.
type Page struct {
	Studies       []Study `json:"studies"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	TotalCount    int     `json:"totalCount,omitempty"`
	Skipped       int     `json:"skipped,omitempty"`
}

type rawPage struct {
	Studies       []json.RawMessage `json:"studies"`
	NextPageToken string            `json:"nextPageToken"`
	TotalCount    int               `json:"totalCount"`
}

// Client issues rate-limited, retried requests against the registry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	retryBase  time.Duration
	retryMax   time.Duration
	cache      PageCache
	cacheTTL   time.Duration
	logger     logging.Logger
	metrics    *appmetrics.AppMetrics
	requests   atomic.Int64
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageCache enables response caching for ttl.
func WithPageCache(pc PageCache, ttl time.Duration) Option {
	return func(c *Client) {
		if pc != nil && ttl > 0 {
			c.cache = pc
			c.cacheTTL = ttl
		}
	}
}

// WithLimiter replaces the token bucket.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request outcomes and retries.
func WithMetrics(m *appmetrics.AppMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a client from cfg.
func NewClient(cfg config.RegistryConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, cfg.RateBurst)),
		userAgent:  cfg.UserAgent,
		maxRetries: max(0, cfg.MaxRetries),
		retryBase:  cfg.RetryBase,
		retryMax:   30 * time.Second,
	}
	if c.retryBase <= 0 {
		c.retryBase = 500 * time.Millisecond
	}
	if cfg.RateLimit <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if cfg.CacheTTL > 0 {
		c.cacheTTL = cfg.CacheTTL
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = logging.OrNop(c.logger)
	return c
}

// Requests is the number of HTTP requests issued, retries included.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// Query encodes p as registry query parameters.
func (p SearchParams) Query() url.Values {
	q := url.Values{}
	q.Set("format", "json")
	size := p.PageSize
	if size <= 0 {
		size = 100
	}
	q.Set("pageSize", strconv.Itoa(min(size, maxPageSize)))
	if p.PageToken != "" {
		q.Set("pageToken", p.PageToken)
	}
	if p.Condition != "" {
		q.Set("query.cond", p.Condition)
	}
	var filters []string
	if p.Phase != "" {
		filters = append(filters, "AREA[Phase]"+p.Phase)
	}
	if p.StudyType != "" {
		filters = append(filters, "AREA[StudyType]"+p.StudyType)
	}
	if len(filters) > 0 {
		q.Set("filter.advanced", strings.Join(filters, " AND "))
	}
	return q
}

// SearchStudies fetches one page.
func (c *Client) SearchStudies(ctx context.Context, p SearchParams) (*Page, error) {
	query := p.Query().Encode()
	if c.cache == nil {
		return c.fetch(ctx, query)
	}

	var page Page
	err := c.cache.GetOrSet(ctx, cacheKey(query), &page, c.cacheTTL, func(ctx context.Context) (interface{}, error) {
		return c.fetch(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "registry:studies:" + hex.EncodeToString(sum[:16])
}

func (c *Client) fetch(ctx context.Context, query string) (*Page, error) {
	body, err := c.get(ctx, c.baseURL+studiesPath+"?"+query)
	if err != nil {
		return nil, err
	}
	return decodePage(body)
}

// decodePage decodes studies one by one so a single malformed entry does not
// lose the page.
func decodePage(body []byte) (*Page, error) {
	var raw rawPage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRegistryMalformed, "registry returned malformed JSON")
	}
	page := &Page{
		Studies:       make([]Study, 0, len(raw.Studies)),
		NextPageToken: raw.NextPageToken,
		TotalCount:    raw.TotalCount,
	}
	for _, r := range raw.Studies {
		var s Study
		if err := json.Unmarshal(r, &s); err != nil || s.NCTID() == "" {
			page.Skipped++
			continue
		}
		page.Studies = append(page.Studies, s)
	}
	return page, nil
}

// get performs a GET with the limiter, retrying network failures, 429 and
// 5xx.  A Retry-After header overrides the computed backoff.
func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	var wait time.Duration
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if wait <= 0 {
				wait = c.backoff(attempt)
			}
			c.logger.Debug("registry retry",
				logging.Int("attempt", attempt),
				logging.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait = 0
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryAfter, err := c.do(ctx, fullURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
		wait = retryAfter
		if c.metrics != nil {
			c.metrics.RegistryRetries.WithLabelValues(string(errors.GetCode(err))).Inc()
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, fullURL string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to build registry request")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	c.requests.Add(1)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		appmetrics.RecordRegistryCall(c.metrics, 0, time.Since(start))
		return nil, 0, errors.Wrap(err, errors.ErrCodeRegistryUnavailable, "registry request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	appmetrics.RecordRegistryCall(c.metrics, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeRegistryUnavailable, "registry response truncated")
	}
	c.logger.Debug("registry response",
		logging.Int("status", resp.StatusCode),
		logging.Int("bytes", len(body)),
		logging.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")),
			errors.New(errors.ErrCodeRegistryRateLimited, "registry rate limit exceeded")
	case resp.StatusCode >= 500:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")),
			errors.Newf(errors.ErrCodeRegistryUnavailable, "registry returned %d", resp.StatusCode).WithDetail(truncate(body))
	case resp.StatusCode >= 400:
		return nil, 0, errors.Newf(errors.ErrCodeBadRequest, "registry rejected request with %d", resp.StatusCode).WithDetail(truncate(body))
	}
	return body, 0, nil
}

func retryable(err error) bool {
	return errors.IsCode(err, errors.ErrCodeRegistryUnavailable) || errors.IsCode(err, errors.ErrCodeRegistryRateLimited)
}

// backoff is exponential from retryBase with up to 25% jitter, capped at
// retryMax.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryBase << uint(attempt-1)
	if d <= 0 || d > c.retryMax {
		d = c.retryMax
	}
	return d + time.Duration(rand.Int63n(int64(d/4)+1))
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return min(time.Duration(secs)*time.Second, maxRetryAfter)
	}
	if t, err := http.ParseTime(v); err == nil {
		return min(max(0, time.Until(t)), maxRetryAfter)
	}
	return 0
}

func truncate(b []byte) string {
	if len(b) > maxErrorBodyLen {
		b = b[:maxErrorBodyLen]
	}
	return string(b)
}
