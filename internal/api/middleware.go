package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"flowsync/pkg/logging"
)

// RequireSecret rejects requests whose shared secret does not match the
// configured value. With no secret configured, authentication is a no-op;
// the server logs that explicitly at startup.
func RequireSecret(secret string, logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}

			provided := c.Request().Header.Get(SecretHeader)
			if provided == "" {
				provided = c.QueryParam(SecretQueryParam)
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				logger.Warn("unauthorized request rejected: %s", c.Path())
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			return next(c)
		}
	}
}
