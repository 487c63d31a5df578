package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides mutual exclusion for singleton jobs. At most one holder
// exists per name at a time; a lock held by a crashed process expires on its
// own after the TTL rather than deadlocking future runs.
type Locker interface {
	// Acquire attempts to take the named lock for the given TTL. It returns
	// ok=false without error when another holder owns the lock. The returned
	// release function is safe to call exactly once; it only removes the lock
	// if this holder still owns it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

const keyPrefix = "access-sync:lock:"

// releaseScript deletes the lock only when the stored token still matches,
// so a holder whose lock already expired cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// NewRedis returns a Locker backed by the given Redis client.
func NewRedis(client *redis.Client) Locker {
	return &redisLocker{client: client}
}

type redisLocker struct {
	client *redis.Client
}

func (l *redisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := keyPrefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Best effort: an expired lock is already gone.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// NewMemory returns an in-process Locker for single-process deployments and
// tests.
func NewMemory() Locker {
	return &memoryLocker{held: make(map[string]time.Time)}
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func (l *memoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, exists := l.held[name]
	if exists && time.Now().Before(expiry) {
		return nil, false, nil
	}
	l.held[name] = time.Now().Add(ttl)

	release := func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}
	return release, true, nil
}
