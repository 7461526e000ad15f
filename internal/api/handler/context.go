package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/mediastudio/studio-api/internal/api/middleware"
	"github.com/mediastudio/studio-api/internal/core/domain"
)

// ctxUser returns the user injected by the Session middleware and fails fast
// when it is missing, which means the route was mounted without it.
func ctxUser(c echo.Context) (*domain.User, error) {
	user := middleware.UserFrom(c)
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}

func sessionMeta(c echo.Context) domain.SessionMeta {
	ua := c.Request().UserAgent()
	if len(ua) > 256 {
		ua = ua[:256]
	}
	return domain.SessionMeta{UserAgent: ua, IP: c.RealIP()}
}

// bindAndValidate decodes the JSON body into req and runs the struct tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.NewValidationError("invalid payload")
	}
	return c.Validate(req)
}
