package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapkit/bapvault/internal/errs"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", "v"))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.Now = func() time.Time { return now }

	require.NoError(t, s.SetTTL(ctx, "k", "v", 10*time.Minute))
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(11 * time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryStoreGetDelOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "tok", "payload"))
	got, err := s.GetDel(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)

	_, err = s.GetDel(ctx, "tok")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemoryStoreHashes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.HGetAll(ctx, "user:abc")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.HSet(ctx, "user:abc", map[string]string{"address": "1Addr", "idKey": "abc"}))
	require.NoError(t, s.HSet(ctx, "user:abc", map[string]string{"displayName": "Satoshi"}))

	h, err := s.HGetAll(ctx, "user:abc")
	require.NoError(t, err)
	assert.Equal(t, "1Addr", h["address"])
	assert.Equal(t, "Satoshi", h["displayName"])
}

func TestMemoryStoreKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "oauth:github:1", "B1"))
	require.NoError(t, s.Set(ctx, "oauth:github:2", "B2"))
	require.NoError(t, s.Set(ctx, "oauth:google:1", "B1"))

	keys, err := s.Keys(ctx, "oauth:github:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestMemoryStoreIncrWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.Now = func() time.Time { return now }

	for want := int64(1); want <= 3; want++ {
		n, err := s.IncrWindow(ctx, "rl", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	now = now.Add(2 * time.Minute)
	n, err := s.IncrWindow(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
