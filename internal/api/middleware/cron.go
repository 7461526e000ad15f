package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/security"
)

// CronAuth accepts only requests carrying "Authorization: Bearer <secret>".
// With no secret configured every request is rejected.
func CronAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scheme, token, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
			if secret == "" || !ok || !strings.EqualFold(scheme, "bearer") || !security.SecureCompare(token, secret) {
				return domain.ErrUnauthenticated
			}
			return next(c)
		}
	}
}
