package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/limiter"
	"github.com/bapkit/bapvault/internal/model"
)

func (s *Server) handleDeviceLinkGenerate(c echo.Context) error {
	sess, _ := sessionFrom(c)
	res, err := s.tokens.GenerateDeviceLink(c.Request().Context(), model.BapIdentity{
		BapID:   sess.BapID,
		Address: sess.Address,
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleDeviceLinkValidate(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return badRequest(c, "missing token")
	}
	payload, blob, err := s.tokens.ValidateDeviceLink(c.Request().Context(), req.Token)
	if err != nil {
		return jsonError(c, err)
	}
	tokenValidations.Inc()
	return c.JSON(http.StatusOK, echo.Map{
		"bapId":      payload.BapID,
		"address":    payload.Address,
		"idKey":      payload.IDKey,
		"ciphertext": blob,
	})
}

func (s *Server) handleExportGenerate(c echo.Context) error {
	sess, _ := sessionFrom(c)
	res, err := s.tokens.GenerateExport(c.Request().Context(), sess.BapID, sess.BapID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// handleExportValidate is the non-consuming existence check a second device
// runs before prompting for the password.
func (s *Server) handleExportValidate(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return badRequest(c, "missing token")
	}
	payload, err := s.tokens.PeekExport(c.Request().Context(), req.Token)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":     true,
		"bapId":     payload.BapID,
		"createdAt": payload.CreatedAt,
	})
}

type exportDownloadRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// handleExportDownload is the password-gated, consuming step. Failed
// passwords count against the owner's rate-limit window.
func (s *Server) handleExportDownload(c echo.Context) error {
	var req exportDownloadRequest
	if err := c.Bind(&req); err != nil || req.Token == "" || req.Password == "" {
		return badRequest(c, "missing token or password")
	}
	ctx := c.Request().Context()
	payload, err := s.tokens.PeekExport(ctx, req.Token)
	if err != nil {
		return jsonError(c, err)
	}
	ipHash := limiter.HashIP(c.RealIP())
	allowed, err := s.lim.Allow(ctx, payload.BapID, ipHash)
	if err != nil {
		return jsonError(c, err)
	}
	if !allowed {
		return jsonError(c, errs.ErrRateLimited)
	}
	blob, err := s.tokens.DownloadExport(ctx, req.Token, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrIdentityMismatch) {
			if blocked, ferr := s.lim.Failure(ctx, payload.BapID, ipHash); ferr == nil && blocked {
				return jsonError(c, errs.ErrRateLimited)
			}
		}
		return jsonError(c, err)
	}
	_ = s.lim.Success(ctx, payload.BapID, ipHash)
	tokenValidations.Inc()
	return c.JSON(http.StatusOK, echo.Map{"ciphertext": blob})
}
