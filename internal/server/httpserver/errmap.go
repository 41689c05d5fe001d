package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bapkit/bapvault/internal/errs"
)

// jsonError maps sentinel errors onto the HTTP surface. Token expiry,
// invalidity and malformedness collapse into one generic message so the
// endpoint cannot be used as an oracle; the same goes for password and
// backup-corruption failures.
func jsonError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errs.ErrTokenExpired),
		errors.Is(err, errs.ErrTokenInvalid),
		errors.Is(err, errs.ErrTokenMalformed),
		errors.Is(err, errs.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication failed"})
	case errors.Is(err, errs.ErrIdentityMismatch):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid password or corrupted backup"})
	case errors.Is(err, errs.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, errs.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, errs.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many attempts, try again later"})
	case errors.Is(err, errs.ErrAlreadyLinked):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already linked"})
	case errors.Is(err, errs.ErrInvalidKeyMaterial), errors.Is(err, errs.ErrNoIdentity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid key material"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
