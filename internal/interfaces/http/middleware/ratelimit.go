package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appmetrics "github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// RateLimitInfo is the limiter state reported in response headers.
type RateLimitInfo struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client key.  Idle buckets are
// evicted by a background sweep until Stop is called.
type ClientLimiter struct {
	rps   rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*clientBucket
	stop    chan struct{}
	once    sync.Once
}

// NewClientLimiter allows rps sustained requests per client with the given
// burst.  idle > 0 starts the eviction sweep.
func NewClientLimiter(rps float64, burst int, idle time.Duration) *ClientLimiter {
	if burst < 1 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	l := &ClientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		buckets: make(map[string]*clientBucket),
		stop:    make(chan struct{}),
	}
	if idle > 0 {
		go l.sweepLoop()
	}
	return l
}

// Allow takes one token for key.  When none is available it reports how
// long until one will be.
func (l *ClientLimiter) Allow(key string) (bool, RateLimitInfo) {
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	info := RateLimitInfo{Limit: l.burst}
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, info
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		info.RetryAfter = delay
		return false, info
	}
	info.Remaining = int(math.Max(0, b.limiter.TokensAt(now)))
	return true, info
}

// Len is the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the eviction sweep.
func (l *ClientLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *ClientLimiter) sweepLoop() {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

func (l *ClientLimiter) evictIdle() {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// RateLimit rejects clients, keyed by client IP, that exceed their bucket.
func RateLimit(l *ClientLimiter, metrics *appmetrics.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, info := l.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		if allowed {
			c.Next()
			return
		}

		secs := int(math.Ceil(info.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		if metrics != nil {
			metrics.HTTPRateLimited.WithLabelValues(c.FullPath()).Inc()
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code":    string(errors.ErrCodeTooManyRequests),
			"message": "rate limit exceeded, retry later",
		})
	}
}
