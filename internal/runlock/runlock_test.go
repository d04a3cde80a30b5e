package runlock

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLockerMutualExclusion(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	locker := NewRedisLocker(client, "test:lock", time.Minute)
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// second acquire while held must fail without error
	_, ok2, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok2)

	release()

	release3, ok3, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok3)
	release3()
}

func TestRedisLockerTTLExpiry(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	locker := NewRedisLocker(client, "test:lock", time.Second)
	ctx := context.Background()

	_, ok, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// simulate a crashed holder: TTL frees the lock
	m.FastForward(2 * time.Second)

	release, ok, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	release()
}

func TestNoopLocker(t *testing.T) {
	release, ok, err := NoopLocker{}.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	release()
}
