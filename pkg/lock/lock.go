// Package lock provides exclusive, expiring leases keyed by name.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrHeld = errors.New("lock is held by another owner")
	// ErrLost means the lease expired or was taken over before a refresh.
	ErrLost = errors.New("lock lease lost")
)

// Locker hands out leases. Acquire returns ErrHeld when another owner holds
// an unexpired lease on key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is released at most once; releasing an expired or stolen lease is a
// no-op. Refresh extends a live lease to ttl from now and returns ErrLost
// once the lease is gone.
type Lease interface {
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// DocumentKey is the lock key for one document's pipeline run.
func DocumentKey(documentID string) string {
	return "lock:document:" + documentID
}

// ==================== Redis ====================

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (r *redisLease) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, r.client, []string{r.key}, r.token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLost
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Err()
}

// ==================== Memory ====================

// MemoryLocker serves a single process, e.g. the CLI and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry), clock: time.Now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	l.held[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, token: token}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (m *memoryLease) Refresh(_ context.Context, ttl time.Duration) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	now := m.locker.clock()
	e, ok := m.locker.held[m.key]
	if !ok || e.token != m.token || !now.Before(e.expires) {
		return ErrLost
	}
	m.locker.held[m.key] = memoryEntry{token: m.token, expires: now.Add(ttl)}
	return nil
}

func (m *memoryLease) Release(context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if e, ok := m.locker.held[m.key]; ok && e.token == m.token {
		delete(m.locker.held, m.key)
	}
	return nil
}
