package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiter_Allow(t *testing.T) {
	l := NewClientLimiter(1, 2, 0)
	defer l.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, info := l.Allow("10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, 2, info.Limit)
	assert.Equal(t, 1, info.Remaining)

	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, info = l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, info.RetryAfter)

	// Rejections do not consume tokens.
	now = now.Add(time.Second)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)

	// Keys are independent.
	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok)
	assert.Equal(t, 2, l.Len())
}

func TestClientLimiter_EvictIdle(t *testing.T) {
	l := NewClientLimiter(1, 1, time.Minute)
	defer l.Stop()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("stale")
	now = now.Add(2 * time.Minute)
	l.Allow("fresh")
	l.evictIdle()

	assert.Equal(t, 1, l.Len())
}

func TestNewClientLimiter_BurstFloor(t *testing.T) {
	l := NewClientLimiter(2.5, 0, 0)
	defer l.Stop()
	assert.Equal(t, 3, l.burst)
}
