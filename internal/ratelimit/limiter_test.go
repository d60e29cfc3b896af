package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client)
}

func TestAllow_UnderLimit(t *testing.T) {
	l := newTestLimiter(t)
	w := Window{Route: "/predict", Limit: 3, Period: time.Second}

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(context.Background(), "key-a", w)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestAllow_RejectsOverLimit(t *testing.T) {
	l := newTestLimiter(t)
	w := Window{Route: "/predict", Limit: 2, Period: time.Second}

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(context.Background(), "key-b", w)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := l.Allow(context.Background(), "key-b", w)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllow_DistinctKeysIndependent(t *testing.T) {
	l := newTestLimiter(t)
	w := Window{Route: "/predict", Limit: 1, Period: time.Second}

	ok, err := l.Allow(context.Background(), "key-c", w)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(context.Background(), "key-d", w)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllow_WindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := New(client)

	w := Window{Route: "/predict", Limit: 1, Period: time.Second}

	ok, err := l.Allow(context.Background(), "key-e", w)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = l.Allow(context.Background(), "key-e", w)
	require.NoError(t, err)
	assert.True(t, ok)
}
