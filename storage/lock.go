package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another process holds the run lock.
var ErrLockHeld = errors.New("run lock held by another process")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock is a Redis-backed mutex that keeps two persist stages from writing
// to the same store at once. The TTL bounds how long a crashed holder blocks
// others.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRunLock connects to Redis at the given URL (redis://host:6379/0).
func NewRunLock(ctx context.Context, redisURL, key string, ttl time.Duration) (*RunLock, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("lock: invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("lock: redis ping failed: %w", err)
	}

	return &RunLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire takes the lock or fails fast with ErrLockHeld. The returned release
// func frees it if this holder still owns it.
func (l *RunLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock: acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock: %s: %w", l.key, ErrLockHeld)
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("lock: release %s: %w", l.key, err)
		}
		return nil
	}
	return release, nil
}

// Close closes the Redis connection.
func (l *RunLock) Close() error {
	return l.client.Close()
}

// NoopLocker is used when no Redis is configured.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
