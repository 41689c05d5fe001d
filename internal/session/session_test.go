package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapkit/bapvault/internal/errs"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := NewManager([]byte("test-key"), time.Hour, nil)

	raw, err := m.Issue(Session{BapID: "B1", Address: "1Addr", Kind: KindBitcoin})
	require.NoError(t, err)

	got, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "B1", got.BapID)
	assert.Equal(t, "1Addr", got.Address)
	assert.Equal(t, KindBitcoin, got.Kind)
}

func TestIssueDefaultsToBitcoinKind(t *testing.T) {
	m := NewManager([]byte("test-key"), time.Hour, nil)
	raw, err := m.Issue(Session{BapID: "B1"})
	require.NoError(t, err)
	got, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, KindBitcoin, got.Kind)
}

func TestVerifyExpired(t *testing.T) {
	now := time.Now()
	clock := now
	m := NewManager([]byte("test-key"), time.Minute, func() time.Time { return clock })

	raw, err := m.Issue(Session{BapID: "B1"})
	require.NoError(t, err)

	clock = now.Add(2 * time.Minute)
	_, err = m.Verify(raw)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestVerifyWrongKey(t *testing.T) {
	a := NewManager([]byte("key-a"), time.Hour, nil)
	b := NewManager([]byte("key-b"), time.Hour, nil)

	raw, err := a.Issue(Session{BapID: "B1"})
	require.NoError(t, err)

	_, err = b.Verify(raw)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestIssueRequiresBapID(t *testing.T) {
	m := NewManager([]byte("test-key"), time.Hour, nil)
	_, err := m.Issue(Session{})
	assert.Error(t, err)
}
