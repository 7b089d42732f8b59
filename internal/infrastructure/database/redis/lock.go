package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeValidation, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeValidation, "lock not held by this owner")
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Mutex is a single-owner lock with a TTL.  The worker uses it so only one
// replica harvests the registry at a time.
type Mutex struct {
	client *Client
	key    string
	token  string
	ttl    time.Duration
	logger logging.Logger
}

// NewMutex creates a lock on name.  Each Mutex carries its own owner token.
func NewMutex(client *Client, name string, ttl time.Duration, log logging.Logger) *Mutex {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Mutex{
		client: client,
		key:    "lock:" + name,
		token:  uuid.NewString(),
		ttl:    ttl,
		logger: logging.OrNop(log),
	}
}

// TryLock acquires the lock without waiting.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.key, m.token, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "lock acquire failed").WithDetail(m.key)
	}
	if ok {
		m.logger.Debug("lock acquired", logging.String("key", m.key))
	}
	return ok, nil
}

// Extend pushes the expiry out by the configured TTL.
func (m *Mutex) Extend(ctx context.Context) error {
	n, err := extendScript.Run(ctx, m.client.Underlying(), []string{m.key}, m.token, m.ttl.Milliseconds()).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "lock extend failed").WithDetail(m.key)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Unlock releases the lock if this Mutex still owns it.
func (m *Mutex) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, m.client.Underlying(), []string{m.key}, m.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "lock release failed").WithDetail(m.key)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	m.logger.Debug("lock released", logging.String("key", m.key))
	return nil
}
