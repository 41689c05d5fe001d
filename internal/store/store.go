// Package store defines the keyed store contract the service coordinates
// through, plus its Redis and in-memory implementations. All cross-request
// state lives behind this interface; there are no multi-key transactions.
package store

import (
	"context"
	"time"
)

// Store is a namespaced key/value and hash store with TTL support.
// Implementations must return errs.ErrNotFound for absent keys.
type Store interface {
	// Get returns the string value at key.
	Get(ctx context.Context, key string) (string, error)
	// Set writes a non-expiring value.
	Set(ctx context.Context, key, val string) error
	// SetTTL writes a value that expires after ttl.
	SetTTL(ctx context.Context, key, val string, ttl time.Duration) error
	// GetDel atomically reads and deletes, for one-time tokens.
	GetDel(ctx context.Context, key string) (string, error)
	// Del removes a key; deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// HSet writes hash fields at key.
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGetAll returns all hash fields; errs.ErrNotFound if the hash is absent.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Keys returns keys matching a glob pattern. Admin/diagnostic use only.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// IncrWindow increments a counter, starting a ttl window on first use,
	// and returns the new count. Backs the password-attempt rate limiter.
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Key builders for the shared key space. Every component goes through these
// so the namespace stays greppable in one place.

func BackupKey(bapID string) string         { return "backup:" + bapID }
func BackupMetadataKey(bapID string) string { return "backup:" + bapID + ":metadata" }

func OAuthKey(provider, accountID string) string { return "oauth:" + provider + ":" + accountID }

func UserKey(bapID string) string      { return "user:" + bapID }
func Addr2BapKey(address string) string { return "addr2bap:" + address }

func DeviceLinkKey(token string) string   { return "device-link:" + token }
func MemberExportKey(token string) string { return "member-export:" + token }

func LinkSessionKey(bapID string) string   { return "oauth-state:" + bapID }
func PendingBackupKey(nonce string) string { return "pending-backup:" + nonce }

func RateLimitKey(bapID, ipHash string) string { return "ratelimit:" + bapID + ":" + ipHash }
