package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewClient_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewClient(config.RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeServiceUnavailable))
}

func TestMutex_ExclusiveOwnership(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	a := NewMutex(c, "collector", time.Minute, nil)
	b := NewMutex(c, "collector", time.Minute, nil)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:collector"))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, b.Unlock(ctx), ErrLockNotHeld)
	require.NoError(t, a.Unlock(ctx))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMutex_ExpiresAndExtends(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	m := NewMutex(c, "collector", 10*time.Second, nil)
	ok, err := m.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(5 * time.Second)
	require.NoError(t, m.Extend(ctx))
	assert.Equal(t, 10*time.Second, mr.TTL("lock:collector"))

	mr.FastForward(11 * time.Second)
	assert.ErrorIs(t, m.Extend(ctx), ErrLockNotHeld)
	assert.ErrorIs(t, m.Unlock(ctx), ErrLockNotHeld)
}

func TestNewMutex_DefaultTTL(t *testing.T) {
	c, _ := newTestClient(t)
	m := NewMutex(c, "x", 0, nil)
	assert.Equal(t, 30*time.Second, m.ttl)
	assert.NotEqual(t, m.token, NewMutex(c, "x", 0, nil).token)
}
