package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/mediastudio/studio-api/internal/api/cookies"
	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/ports"
)

const (
	ContextKeyUser    = "user"
	ContextKeySession = "session"
)

// Session resolves the session cookie and injects the user and session into
// the context. Requests without a valid session are rejected.
func Session(sessions ports.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, sess, err := sessions.ValidateSession(c.Request().Context(), cookies.SessionToken(c))
			if err != nil {
				if !errors.Is(err, domain.ErrSessionInvalid) {
					return err
				}
				return domain.ErrUnauthenticated
			}

			c.Set(ContextKeyUser, user)
			c.Set(ContextKeySession, sess)
			return next(c)
		}
	}
}

// UserFrom returns the authenticated user, or nil.
func UserFrom(c echo.Context) *domain.User {
	u, _ := c.Get(ContextKeyUser).(*domain.User)
	return u
}

// SessionFrom returns the current session, or nil.
func SessionFrom(c echo.Context) *domain.Session {
	s, _ := c.Get(ContextKeySession).(*domain.Session)
	return s
}
