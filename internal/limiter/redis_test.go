package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapkit/bapvault/internal/store"
)

func TestLockoutAfterThreshold(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryStore(), 15*time.Minute, 3)
	ip := HashIP("10.0.0.1")

	for i := 0; i < 2; i++ {
		blocked, err := l.Failure(ctx, "B1", ip)
		require.NoError(t, err)
		assert.False(t, blocked)
	}

	blocked, err := l.Failure(ctx, "B1", ip)
	require.NoError(t, err)
	assert.True(t, blocked)

	allowed, err := l.Allow(ctx, "B1", ip)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestSuccessResets(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryStore(), 15*time.Minute, 3)
	ip := HashIP("10.0.0.1")

	for i := 0; i < 3; i++ {
		_, err := l.Failure(ctx, "B1", ip)
		require.NoError(t, err)
	}
	require.NoError(t, l.Success(ctx, "B1", ip))

	allowed, err := l.Allow(ctx, "B1", ip)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestWindowExpiryUnlocks(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := time.Now()
	s.Now = func() time.Time { return now }
	l := New(s, time.Minute, 2)
	ip := HashIP("10.0.0.1")

	for i := 0; i < 2; i++ {
		_, err := l.Failure(ctx, "B1", ip)
		require.NoError(t, err)
	}
	allowed, err := l.Allow(ctx, "B1", ip)
	require.NoError(t, err)
	assert.False(t, allowed)

	now = now.Add(2 * time.Minute)
	allowed, err = l.Allow(ctx, "B1", ip)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestScopedPerIdentityAndIP(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemoryStore(), time.Minute, 1)

	blocked, err := l.Failure(ctx, "B1", HashIP("10.0.0.1"))
	require.NoError(t, err)
	assert.True(t, blocked)

	// Different identity and different IP are unaffected.
	allowed, err := l.Allow(ctx, "B2", HashIP("10.0.0.1"))
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = l.Allow(ctx, "B1", HashIP("10.0.0.2"))
	require.NoError(t, err)
	assert.True(t, allowed)
}
