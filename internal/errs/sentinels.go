// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist or has expired.
	// Missing and expired tokens deliberately share this sentinel so callers
	// cannot tell the two apart.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is authenticated but not the owner.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyLinked indicates an OAuth account is mapped to a different
	// identity. Expected business outcome, not a system failure; the registry
	// reports it as a structured result so the caller can resolve it.
	ErrAlreadyLinked = errors.New("already linked")

	// ErrIdentityMismatch indicates a decrypted backup did not derive the
	// claimed identity key (wrong password, or a tampered/corrupted blob).
	ErrIdentityMismatch = errors.New("identity mismatch")

	// ErrRateLimited indicates temporary lockout of password verification.
	ErrRateLimited = errors.New("rate limited")
)

// Key-material sentinels (identity resolver).
var (
	// ErrInvalidKeyMaterial indicates master key material that cannot be parsed.
	ErrInvalidKeyMaterial = errors.New("invalid key material")

	// ErrNoIdentity indicates key material containing zero identities.
	ErrNoIdentity = errors.New("no identity found")
)

// Auth-token sentinels. The HTTP layer collapses all three into one generic
// "authentication failed" response; the distinction exists for logs and tests.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired")
)
