// Package session represents the two session kinds the service juggles: the
// durable Bitcoin-credentials session and the transient OAuth session used
// only to learn a provider account ID. Both are HS256 JWTs; the orchestrator
// switches between them by re-issuing, never by mutating cookies in place.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bapkit/bapvault/internal/errs"
)

// CookieName is the session cookie the HTTP layer reads and writes.
const CookieName = "bapvault_session"

// Kind labels which authentication produced the session.
type Kind string

const (
	// KindBitcoin is a session proven by a signed auth token.
	KindBitcoin Kind = "bitcoin"
	// KindOAuth is a transient session from an OAuth callback; it exists
	// only long enough to complete or resolve a link.
	KindOAuth Kind = "oauth"
)

// Session is the verified content of a session token.
type Session struct {
	BapID    string
	Address  string
	Provider string // set for KindOAuth and for "which provider signed me in"
	Kind     Kind
}

type claims struct {
	Address  string `json:"addr,omitempty"`
	Provider string `json:"provider,omitempty"`
	Kind     Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// Manager issues and verifies session tokens.
type Manager struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewManager constructs a Manager. now may be nil (defaults to time.Now).
func NewManager(signKey []byte, ttl time.Duration, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{signKey: signKey, ttl: ttl, now: now}
}

// Issue creates a signed session token.
func (m *Manager) Issue(s Session) (string, error) {
	if s.BapID == "" {
		return "", errors.New("validation: empty bapId")
	}
	if s.Kind == "" {
		s.Kind = KindBitcoin
	}
	now := m.now()
	c := claims{
		Address:  s.Address,
		Provider: s.Provider,
		Kind:     s.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.BapID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(m.signKey)
}

// Verify parses and validates a session token. All failures map to
// errs.ErrUnauthorized; the reason is not surfaced to clients.
func (m *Manager) Verify(raw string) (Session, error) {
	var c claims
	tok, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !tok.Valid || c.Subject == "" {
		return Session{}, errs.ErrUnauthorized
	}
	return Session{
		BapID:    c.Subject,
		Address:  c.Address,
		Provider: c.Provider,
		Kind:     c.Kind,
	}, nil
}
