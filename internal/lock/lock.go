// Package lock provides short-lived exclusive locks keyed by name. Thread casts
// take one per conversation so two requests never post the same thread.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrLocked is returned when the lock is already held
var ErrLocked = errors.New("lock is held by another caller")

// Locker acquires a named lock without blocking
type Locker interface {
	// TryLock acquires name for at most ttl. The returned func releases it.
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

// RedisLocker is a Locker backed by redsync, shared across instances
type RedisLocker struct {
	client *redis.Client
	rs     *redsync.Redsync
	prefix string
}

// NewRedisLocker connects to Redis and returns a distributed Locker
func NewRedisLocker(ctx context.Context, redisURL string) (*RedisLocker, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("Redis URL must be provided")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Msg("Connected to Redis for cast locks")
	return &RedisLocker{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: "cast-bridge:lock:",
	}, nil
}

// TryLock acquires the lock once, failing fast with ErrLocked if taken
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	mutex := l.rs.NewMutex(l.prefix+name, redsync.WithExpiry(ttl), redsync.WithTries(1))
	if err := mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}

	return func() {
		// Unlock with a fresh context: the request context may already be done.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); err != nil || !ok {
			log.Warn().Err(err).Str("lock", name).Msg("Failed to release lock")
		}
	}, nil
}

// Close closes the Redis connection
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// LocalLocker is an in-process Locker for single-instance deployments
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

// NewLocalLocker creates an in-process Locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]time.Time),
		nowFn: time.Now,
	}
}

// TryLock acquires name unless it is held and not yet expired
func (l *LocalLocker) TryLock(_ context.Context, name string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if expires, ok := l.held[name]; ok && now.Before(expires) {
		return nil, ErrLocked
	}

	expires := now.Add(ttl)
	l.held[name] = expires

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// Only release our own acquisition; an expired lock may have been retaken.
			if current, ok := l.held[name]; ok && current.Equal(expires) {
				delete(l.held, name)
			}
		})
	}, nil
}

// New returns a RedisLocker when redisURL is set and reachable, otherwise a
// LocalLocker.
func New(ctx context.Context, redisURL string) Locker {
	if strings.TrimSpace(redisURL) == "" {
		log.Info().Msg("REDIS_URL not set, using in-process cast locks")
		return NewLocalLocker()
	}

	locker, err := NewRedisLocker(ctx, redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-process cast locks")
		return NewLocalLocker()
	}
	return locker
}
