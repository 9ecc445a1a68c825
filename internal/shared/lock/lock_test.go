package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock, err := l.Acquire(ctx, "market:x", time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "market:x", time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := l.Acquire(ctx, "market:y", time.Second)
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := l.Acquire(ctx, "market:x", time.Second)
	require.NoError(t, err)
	again()
}

func TestRedisLockerUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	_, err := NewRedisLocker(rdb).Acquire(context.Background(), "k", time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockHeld)
	assert.Equal(t, "lock:k", lockKey("k"))
}
