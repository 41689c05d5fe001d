package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/model"
	"github.com/bapkit/bapvault/internal/oauth"
)

type backupUpsertRequest struct {
	BapID         string `json:"bapId,omitempty"`
	Ciphertext    string `json:"ciphertext"`
	OAuthProvider string `json:"oauthProvider,omitempty"`
	OAuthID       string `json:"oauthId,omitempty"`
}

// handleBackupUpsert stores the caller's backup and, when provider details
// are supplied, links the OAuth account in the same request. The blob is
// written before the mapping so a mapping never points at a missing backup.
func (s *Server) handleBackupUpsert(c echo.Context) error {
	sess, _ := sessionFrom(c)
	var req backupUpsertRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed body")
	}
	if req.Ciphertext == "" {
		return badRequest(c, "missing ciphertext")
	}
	if req.BapID != "" && req.BapID != sess.BapID {
		return jsonError(c, errs.ErrForbidden)
	}
	if err := s.backups.Store(c.Request().Context(), sess.BapID, model.EncryptedBlob(req.Ciphertext)); err != nil {
		return jsonError(c, err)
	}
	backupWrites.Inc()

	if req.OAuthProvider != "" && req.OAuthID != "" {
		p, err := oauth.ParseProvider(req.OAuthProvider)
		if err != nil {
			return badRequest(c, "unknown provider")
		}
		res, err := s.links.Link(c.Request().Context(), p.String(), req.OAuthID, sess.BapID, false)
		if err != nil {
			return jsonError(c, err)
		}
		if !res.Linked {
			linkConflicts.Inc()
			return c.JSON(http.StatusConflict, echo.Map{
				"error":         "already linked",
				"existingBapId": res.ExistingBapID,
			})
		}
		linksCreated.Inc()
	}

	status, err := s.backups.Status(c.Request().Context(), sess.BapID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "status": status})
}

// handleBackupFetch returns a blob by bapId or by "provider|accountId".
// Ciphertext is opaque, so reads are unauthenticated by design: possession
// of the password, not of the blob, is what protects the contents.
func (s *Server) handleBackupFetch(c echo.Context) error {
	ctx := c.Request().Context()
	if bapID := c.QueryParam("bapid"); bapID != "" {
		blob, err := s.backups.Fetch(ctx, bapID)
		if err != nil {
			return jsonError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"bapId": bapID, "ciphertext": blob})
	}
	if oauthID := c.QueryParam("oauthId"); oauthID != "" {
		providerName, accountID, ok := strings.Cut(oauthID, "|")
		if !ok {
			return badRequest(c, "oauthId must be provider|accountId")
		}
		p, err := oauth.ParseProvider(providerName)
		if err != nil {
			return badRequest(c, "unknown provider")
		}
		blob, err := s.backups.FetchByOAuth(ctx, p.String(), accountID)
		if err != nil {
			return jsonError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"ciphertext": blob})
	}
	return badRequest(c, "missing bapid or oauthId")
}

func (s *Server) handleBackupStatus(c echo.Context) error {
	bapID := c.QueryParam("bapid")
	if bapID == "" {
		return badRequest(c, "missing bapid")
	}
	status, err := s.backups.Status(c.Request().Context(), bapID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}
