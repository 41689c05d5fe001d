package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bapkit/bapvault/internal/oauth"
	"github.com/bapkit/bapvault/internal/session"
)

// handleLinkBegin starts the linking saga: persists the single-use link
// session and bounces the browser to the provider.
func (s *Server) handleLinkBegin(c echo.Context) error {
	sess, _ := sessionFrom(c)
	raw, _ := c.Get(rawSessionCtxKey).(string)
	p, err := oauth.ParseProvider(c.QueryParam("provider"))
	if err != nil {
		return badRequest(c, "unknown provider")
	}
	authorizeURL, err := s.linking.Begin(c.Request().Context(), sess, raw, p)
	if err != nil {
		return jsonError(c, err)
	}
	return c.Redirect(http.StatusFound, authorizeURL)
}

// handleLinkCallback finishes the round trip. Outcomes:
//   - linked, session restored: 200 with the re-issued session (also set as
//     the session cookie);
//   - linked, restore failed: 200 with signinRequired, cookie cleared — a
//     forced clean re-login beats a silent half-OAuth session;
//   - conflict: 409 carrying everything the conflict resolver needs;
//   - CSRF/state/provider failure: error before any mapping access.
func (s *Server) handleLinkCallback(c echo.Context) error {
	res, err := s.linking.Callback(c.Request().Context(),
		c.QueryParam("state"), c.QueryParam("code"), c.QueryParam("error"))
	if err != nil {
		return jsonError(c, err)
	}
	if res.Conflict {
		linkConflicts.Inc()
		return c.JSON(http.StatusConflict, echo.Map{
			"error":             "already linked",
			"provider":          res.Provider,
			"providerAccountId": res.AccountID,
			"existingBapId":     res.ExistingBapID,
			"currentBapId":      res.CurrentBapID,
		})
	}
	linksCreated.Inc()
	if res.RestoreFailed {
		sessionRestoreFailures.Inc()
		s.clearSessionCookie(c)
		return c.JSON(http.StatusOK, echo.Map{
			"linked":         true,
			"provider":       res.Provider,
			"signinRequired": true,
			"signinUrl":      s.signinURL,
		})
	}
	s.setSessionCookie(c, res.SessionToken)
	return c.JSON(http.StatusOK, echo.Map{
		"linked":       true,
		"provider":     res.Provider,
		"bapId":        res.CurrentBapID,
		"sessionToken": res.SessionToken,
	})
}

type linkSwitchRequest struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"providerAccountId"`
}

// handleLinkSwitch abandons the new identity after a conflict and stages the
// existing account's backup for sign-in.
func (s *Server) handleLinkSwitch(c echo.Context) error {
	var req linkSwitchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed body")
	}
	p, err := oauth.ParseProvider(req.Provider)
	if err != nil {
		return badRequest(c, "unknown provider")
	}
	if req.ProviderAccountID == "" {
		return badRequest(c, "missing providerAccountId")
	}
	staged, err := s.linking.Switch(c.Request().Context(), p, req.ProviderAccountID)
	if err != nil {
		return jsonError(c, err)
	}
	s.clearSessionCookie(c)
	return c.JSON(http.StatusOK, staged)
}

func (s *Server) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}
