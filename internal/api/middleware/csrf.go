package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/mediastudio/studio-api/internal/api/cookies"
	"github.com/mediastudio/studio-api/internal/api/metrics"
	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/security"
)

// CSRFConfig configures the double-submit check.
type CSRFConfig struct {
	// Skipper exempts routes that authenticate by other means.
	Skipper echomiddleware.Skipper
}

// CSRF rejects state-changing requests whose X-CSRF-Token header does not
// equal the csrf_token cookie.
func CSRF(cfg CSRFConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = echomiddleware.DefaultSkipper
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isSafeMethod(c.Request().Method) || cfg.Skipper(c) {
				return next(c)
			}

			header := c.Request().Header.Get(cookies.CSRFHeader)
			ck, err := c.Cookie(cookies.CSRFName)
			if err != nil || ck.Value == "" || header == "" || !security.SecureCompare(header, ck.Value) {
				metrics.CSRFRejectionsTotal.Inc()
				return domain.ErrInvalidCSRF
			}
			return next(c)
		}
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
