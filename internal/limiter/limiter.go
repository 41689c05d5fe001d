// Package limiter rate-limits password-verification attempts (transfer and
// member-export download) to blunt online guessing against stored backups.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Limiter controls password attempts and temporary lockouts per (bapId, ip).
type Limiter interface {
	// Allow reports whether an attempt is currently permitted.
	Allow(ctx context.Context, bapID, ipHash string) (bool, error)
	// Success resets counters after a successful verification.
	Success(ctx context.Context, bapID, ipHash string) error
	// Failure records a failed attempt; reports whether the caller is now
	// locked out.
	Failure(ctx context.Context, bapID, ipHash string) (bool, error)
}

// HashIP returns a stable hash for an IP string so raw addresses are never
// stored.
func HashIP(ip string) string {
	h := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(h[:8])
}

// Unexported guard so the zero Duration never sneaks into Redis EXPIRE.
const minWindow = time.Second
