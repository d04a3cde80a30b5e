package runlock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker enforces the single-writer-at-a-time discipline for sync runs.
// Acquire returns ok=false when another run holds the lock; release is only
// valid when ok is true.
type Locker interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// RedisLocker implements Locker with SET NX and a TTL safety net: a crashed
// run cannot hold the lock forever.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = "tracksync:sync_users:lock"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context) (func(), bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		_ = l.client.Del(context.Background(), l.key).Err()
	}
	return release, true, nil
}

// NoopLocker is used when Redis is not configured; the scheduler is then the
// only line of defense against overlapping runs.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context) (func(), bool, error) {
	return func() {}, true, nil
}
