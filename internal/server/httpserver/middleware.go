package httpserver

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/bapkit/bapvault/internal/authtoken"
	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/identity"
	"github.com/bapkit/bapvault/internal/session"
)

// AuthTokenHeader carries the signed request token.
const AuthTokenHeader = "X-Auth-Token"

const sessionCtxKey = "bapvault.session"

// sessionFrom returns the authenticated session placed by the auth
// middleware, if any.
func sessionFrom(c echo.Context) (session.Session, bool) {
	s, ok := c.Get(sessionCtxKey).(session.Session)
	return s, ok
}

// requestLogger logs request metadata through zap. Payloads are never logged.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.log.Info("http",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("dur", time.Since(start)),
			zap.String("remote", c.RealIP()),
		)
		return err
	}
}

// recoverPanic converts handler panics into logged 500s.
func (s *Server) recoverPanic(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request().URL.Path),
				)
				err = c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
		}()
		return next(c)
	}
}

// requireSession admits only requests carrying a valid session cookie or
// bearer token.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, raw, err := s.sessionFromRequest(c)
		if err != nil {
			return jsonError(c, err)
		}
		c.Set(sessionCtxKey, sess)
		c.Set(rawSessionCtxKey, raw)
		return next(c)
	}
}

// requireAuth admits a signed auth token or a session. A valid signed token
// proves key possession directly, so the derived identity needs no prior
// registration to authenticate.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if raw := c.Request().Header.Get(AuthTokenHeader); raw != "" {
			sess, err := s.verifySignedToken(c, raw)
			if err != nil {
				return jsonError(c, err)
			}
			c.Set(sessionCtxKey, sess)
			return next(c)
		}
		return s.requireSession(next)(c)
	}
}

const rawSessionCtxKey = "bapvault.session.raw"

func (s *Server) sessionFromRequest(c echo.Context) (session.Session, string, error) {
	raw := ""
	if cookie, err := c.Cookie(session.CookieName); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		const prefix = "Bearer "
		if h := c.Request().Header.Get(echo.HeaderAuthorization); len(h) > len(prefix) && h[:len(prefix)] == prefix {
			raw = h[len(prefix):]
		}
	}
	if raw == "" {
		return session.Session{}, "", errs.ErrUnauthorized
	}
	sess, err := s.sessions.Verify(raw)
	if err != nil {
		return session.Session{}, "", err
	}
	return sess, raw, nil
}

// verifySignedToken checks the token against this exact request (path and
// body) and maps the proven pubkey onto an identity.
func (s *Server) verifySignedToken(c echo.Context, raw string) (session.Session, error) {
	body, err := readBody(c)
	if err != nil {
		return session.Session{}, err
	}
	pubkey, err := authtoken.Verify(raw, c.Request().URL.Path, body, time.Now(), authtoken.MaxSkew)
	if err != nil {
		return session.Session{}, err
	}
	resolved, err := identity.FromPubKeyHex(pubkey)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{
		BapID:   resolved.BapID,
		Address: resolved.Address,
		Kind:    session.KindBitcoin,
	}, nil
}

// readBody returns the request body and resets it so handlers can bind it.
func readBody(c echo.Context) ([]byte, error) {
	if c.Request().Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	c.Request().Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
