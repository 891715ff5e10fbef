package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg *Config) *MemoryLimiter {
	l := NewMemoryLimiter(cfg)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestMemoryLimiter_Allow(t *testing.T) {
	l := newTestLimiter(t, &Config{Requests: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok, "fourth request must be rejected")

	// Другой ключ не затронут
	ok, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiter_AllowN(t *testing.T) {
	l := newTestLimiter(t, &Config{Requests: 5, Window: time.Minute})
	ctx := context.Background()

	ok, err := l.AllowN(ctx, "k", 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.AllowN(ctx, "k", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLimiter_WindowExpiry(t *testing.T) {
	l := newTestLimiter(t, &Config{Requests: 1, Window: 30 * time.Millisecond})
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "k")
	assert.True(t, ok)

	ok, _ = l.Allow(ctx, "k")
	assert.False(t, ok)

	time.Sleep(40 * time.Millisecond)

	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok, "window should have rolled over")
}

func TestMemoryLimiter_Reset(t *testing.T) {
	l := newTestLimiter(t, &Config{Requests: 1, Window: time.Minute})
	ctx := context.Background()

	_, _ = l.Allow(ctx, "k")
	require.NoError(t, l.Reset(ctx, "k"))

	ok, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiter_GetInfo(t *testing.T) {
	l := newTestLimiter(t, &Config{Requests: 10, Window: time.Minute})
	ctx := context.Background()

	info, err := l.GetInfo(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 10, info.Limit)
	assert.Equal(t, 10, info.Remaining)

	_, _ = l.Allow(ctx, "used")
	_, _ = l.Allow(ctx, "used")

	info, err = l.GetInfo(ctx, "used")
	require.NoError(t, err)
	assert.Equal(t, 8, info.Remaining)
}

func TestMemoryLimiter_Closed(t *testing.T) {
	l := NewMemoryLimiter(&Config{Requests: 1, Window: time.Minute})
	require.NoError(t, l.Close())

	_, err := l.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ErrLimiterClosed)
	assert.NoError(t, l.Close())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&Config{Requests: 0, Window: time.Minute})
	assert.Error(t, err)

	_, err = New(&Config{Requests: 1, Window: 0})
	assert.Error(t, err)

	_, err = New(&Config{Requests: 1, Window: time.Minute, Backend: "bogus"})
	assert.Error(t, err)

	l, err := New(nil)
	require.NoError(t, err)
	defer l.Close()
	_, ok := l.(*MemoryLimiter)
	assert.True(t, ok)
}
