package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"github.com/redis/go-redis/v9"
)

// AttemptLimiter counts failed attempts per key inside a fixed window.
// Once a key reaches the limit it stays blocked until the window ends.
type AttemptLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

const attemptsPrefix = "auth:attempts:"

// INCR and set the window on the first hit in one round trip
var failScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return c
`)

type RedisAttempts struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewRedisAttempts(rdb *redis.Client, max int, window time.Duration) *RedisAttempts {
	return &RedisAttempts{rdb: rdb, max: max, window: window}
}

func (r *RedisAttempts) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Get(ctx, attemptsPrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("attempts redis get: %w", err)
	}
	return n >= r.max, nil
}

func (r *RedisAttempts) Fail(ctx context.Context, key string) error {
	if err := failScript.Run(ctx, r.rdb, []string{attemptsPrefix + key}, r.window.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("attempts redis incr: %w", err)
	}
	return nil
}

func (r *RedisAttempts) Reset(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, attemptsPrefix+key).Err(); err != nil {
		return fmt.Errorf("attempts redis del: %w", err)
	}
	return nil
}

type attemptEntry struct {
	count int
	until time.Time
}

// MemoryAttempts keeps counters in process. Used when no Redis is
// configured, so limits are per instance.
type MemoryAttempts struct {
	mu     sync.Mutex
	cache  *ttlcache.Cache
	max    int
	window time.Duration
	now    func() time.Time
}

func NewMemoryAttempts(max int, window time.Duration) *MemoryAttempts {
	c := ttlcache.NewCache()
	c.SkipTTLExtensionOnHit(true)

	return &MemoryAttempts{cache: c, max: max, window: window, now: time.Now}
}

func (m *MemoryAttempts) get(key string) (attemptEntry, bool) {
	v, err := m.cache.Get(key)
	if err != nil {
		return attemptEntry{}, false
	}
	e, ok := v.(attemptEntry)
	if !ok || !m.now().Before(e.until) {
		return attemptEntry{}, false
	}
	return e, true
}

func (m *MemoryAttempts) Blocked(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.get(key)
	return ok && e.count >= m.max, nil
}

func (m *MemoryAttempts) Fail(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.get(key)
	if !ok {
		e = attemptEntry{until: now.Add(m.window)}
	}
	e.count++

	return m.cache.SetWithTTL(key, e, e.until.Sub(now))
}

func (m *MemoryAttempts) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.cache.Remove(key)
	if errors.Is(err, ttlcache.ErrNotFound) {
		return nil
	}
	return err
}

func (m *MemoryAttempts) Close() error {
	return m.cache.Close()
}
