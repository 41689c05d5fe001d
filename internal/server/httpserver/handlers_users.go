package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/limiter"
	"github.com/bapkit/bapvault/internal/model"
	"github.com/bapkit/bapvault/internal/oauth"
)

// handleUserCreate registers the authenticated identity's user record.
// Creation is idempotent: re-posting the same identity rewrites the same
// fields.
func (s *Server) handleUserCreate(c echo.Context) error {
	sess, _ := sessionFrom(c)
	rec, err := s.profiles.Create(c.Request().Context(), model.BapIdentity{
		BapID:   sess.BapID,
		Address: sess.Address,
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleUserGet(c echo.Context) error {
	rec, err := s.profiles.Get(c.Request().Context(), c.Param("bapId"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// handleUserByAddress resolves a signing address to its user record.
func (s *Server) handleUserByAddress(c echo.Context) error {
	ctx := c.Request().Context()
	bapID, err := s.profiles.ResolveAddress(ctx, c.Param("address"))
	if err != nil {
		return jsonError(c, err)
	}
	rec, err := s.profiles.Get(ctx, bapID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

type profileUpdateRequest struct {
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

func (s *Server) handleProfileUpdate(c echo.Context) error {
	sess, _ := sessionFrom(c)
	var req profileUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed body")
	}
	if err := s.profiles.Update(c.Request().Context(), sess.BapID, req.DisplayName, req.Avatar); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

type transferOAuthRequest struct {
	Provider             string `json:"provider"`
	FromBapID            string `json:"fromBapId"`
	ToBapID              string `json:"toBapId"`
	VerificationPassword string `json:"verificationPassword"`
}

// handleTransferOAuth resolves a link conflict in favor of the caller, who
// must hold the session for the destination identity and the password for
// the source identity's backup.
func (s *Server) handleTransferOAuth(c echo.Context) error {
	sess, _ := sessionFrom(c)
	var req transferOAuthRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed body")
	}
	if req.Provider == "" || req.FromBapID == "" || req.ToBapID == "" || req.VerificationPassword == "" {
		return badRequest(c, "missing fields")
	}
	if sess.BapID != req.ToBapID {
		return jsonError(c, errs.ErrForbidden)
	}
	p, err := oauth.ParseProvider(req.Provider)
	if err != nil {
		return badRequest(c, "unknown provider")
	}
	err = s.linking.Transfer(c.Request().Context(), p, req.FromBapID, req.ToBapID,
		req.VerificationPassword, limiter.HashIP(c.RealIP()))
	if err != nil {
		return jsonError(c, err)
	}
	linkTransfers.Inc()
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

type disconnectRequest struct {
	Provider string `json:"provider"`
}

func (s *Server) handleDisconnect(c echo.Context) error {
	sess, _ := sessionFrom(c)
	var req disconnectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed body")
	}
	p, err := oauth.ParseProvider(req.Provider)
	if err != nil {
		return badRequest(c, "unknown provider")
	}
	if err := s.linking.Unlink(c.Request().Context(), sess, p); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
