// Package authtoken builds and verifies signed auth tokens binding a public
// key to a request path, body and timestamp. This is the only authentication
// primitive that does not depend on cookies: possession of the derived
// signing key is the credential.
package authtoken

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bapkit/bapvault/internal/errs"
)

// Scheme identifies the signature construction: compact recoverable ECDSA
// over a double-SHA256 of the prefixed request digest.
const Scheme = "bsm"

// MaxSkew is the default accept window around the token timestamp.
const MaxSkew = 10 * time.Minute

const messagePrefix = "Bitcoin Signed Message:\n"

// Token is the parsed wire form: five pipe-separated fields.
type Token struct {
	Pubkey      string // compressed pubkey, hex
	Scheme      string
	Timestamp   string // RFC3339
	RequestPath string
	Signature   string // base64 compact signature
}

func (t Token) String() string {
	return strings.Join([]string{t.Pubkey, t.Scheme, t.Timestamp, t.RequestPath, t.Signature}, "|")
}

// digest computes the signed message hash for a request. The body is hashed
// first so large payloads sign in constant space.
func digest(requestPath, timestamp string, body []byte) []byte {
	bodyHash := sha256.Sum256(body)
	msg := messagePrefix + requestPath + "|" + timestamp + "|" + hex.EncodeToString(bodyHash[:])
	return chainhash.DoubleHashB([]byte(msg))
}

// Sign produces a token for the given request at time now.
func Sign(priv *btcec.PrivateKey, requestPath string, body []byte, now time.Time) (string, error) {
	ts := now.UTC().Format(time.RFC3339)
	sig := ecdsa.SignCompact(priv, digest(requestPath, ts, body), true)
	t := Token{
		Pubkey:      hex.EncodeToString(priv.PubKey().SerializeCompressed()),
		Scheme:      Scheme,
		Timestamp:   ts,
		RequestPath: requestPath,
		Signature:   base64.StdEncoding.EncodeToString(sig),
	}
	return t.String(), nil
}

// Parse splits a raw token. Returns errs.ErrTokenMalformed on any shape
// problem; it does not verify anything cryptographic.
func Parse(raw string) (Token, error) {
	parts := strings.SplitN(raw, "|", 5)
	if len(parts) != 5 {
		return Token{}, errs.ErrTokenMalformed
	}
	t := Token{
		Pubkey:      parts[0],
		Scheme:      parts[1],
		Timestamp:   parts[2],
		RequestPath: parts[3],
		Signature:   parts[4],
	}
	if t.Pubkey == "" || t.Scheme != Scheme || t.Timestamp == "" || t.RequestPath == "" || t.Signature == "" {
		return Token{}, errs.ErrTokenMalformed
	}
	return t, nil
}

// Verify checks a raw token against the request it claims to authorize and
// returns the proven compressed pubkey (hex). Failure modes:
// errs.ErrTokenMalformed (parse), errs.ErrTokenExpired (timestamp outside
// maxSkew of now), errs.ErrTokenInvalid (path mismatch or bad signature).
func Verify(raw, requestPath string, body []byte, now time.Time, maxSkew time.Duration) (string, error) {
	t, err := Parse(raw)
	if err != nil {
		return "", err
	}
	ts, err := time.Parse(time.RFC3339, t.Timestamp)
	if err != nil {
		return "", errs.ErrTokenMalformed
	}
	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		return "", errs.ErrTokenExpired
	}
	if t.RequestPath != requestPath {
		return "", errs.ErrTokenInvalid
	}
	sig, err := base64.StdEncoding.DecodeString(t.Signature)
	if err != nil {
		return "", errs.ErrTokenMalformed
	}
	pub, _, err := ecdsa.RecoverCompact(sig, digest(t.RequestPath, t.Timestamp, body))
	if err != nil {
		return "", errs.ErrTokenInvalid
	}
	recovered := hex.EncodeToString(pub.SerializeCompressed())
	if recovered != t.Pubkey {
		return "", errs.ErrTokenInvalid
	}
	return recovered, nil
}
