package authtoken

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapkit/bapvault/internal/errs"
)

func newKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv := newKey(t)
	now := time.Now()
	body := []byte(`{"ciphertext":"abc"}`)

	raw, err := Sign(priv, "/backup", body, now)
	require.NoError(t, err)

	pubkey, err := Verify(raw, "/backup", body, now.Add(time.Minute), MaxSkew)
	require.NoError(t, err)

	tok, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, tok.Pubkey, pubkey)
}

func TestVerifyExpired(t *testing.T) {
	priv := newKey(t)
	issued := time.Now()

	raw, err := Sign(priv, "/backup", nil, issued)
	require.NoError(t, err)

	_, err = Verify(raw, "/backup", nil, issued.Add(MaxSkew+time.Minute), MaxSkew)
	assert.ErrorIs(t, err, errs.ErrTokenExpired)

	// Future-dated tokens are just as expired.
	_, err = Verify(raw, "/backup", nil, issued.Add(-MaxSkew-time.Minute), MaxSkew)
	assert.ErrorIs(t, err, errs.ErrTokenExpired)
}

func TestVerifyPathMismatch(t *testing.T) {
	priv := newKey(t)
	now := time.Now()

	raw, err := Sign(priv, "/backup", nil, now)
	require.NoError(t, err)

	_, err = Verify(raw, "/users", nil, now, MaxSkew)
	assert.ErrorIs(t, err, errs.ErrTokenInvalid)
}

func TestVerifyTamperedBody(t *testing.T) {
	priv := newKey(t)
	now := time.Now()

	raw, err := Sign(priv, "/backup", []byte("original"), now)
	require.NoError(t, err)

	_, err = Verify(raw, "/backup", []byte("tampered"), now, MaxSkew)
	assert.ErrorIs(t, err, errs.ErrTokenInvalid)
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"only|four|fields|here",
		"pub|wrongscheme|2024-01-01T00:00:00Z|/backup|sig",
		"|bsm|2024-01-01T00:00:00Z|/backup|sig",
	} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, errs.ErrTokenMalformed, "raw=%q", raw)
	}
}

func TestVerifyMalformedTimestamp(t *testing.T) {
	priv := newKey(t)
	raw, err := Sign(priv, "/backup", nil, time.Now())
	require.NoError(t, err)
	tok, err := Parse(raw)
	require.NoError(t, err)

	tok.Timestamp = "yesterday-ish"
	_, err = Verify(tok.String(), "/backup", nil, time.Now(), MaxSkew)
	assert.ErrorIs(t, err, errs.ErrTokenMalformed)
}
