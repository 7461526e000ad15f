package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediastudio/studio-api/internal/api/metrics"
	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/ports"
	"github.com/mediastudio/studio-api/internal/core/service"
)

// RateLimitConfig describes one budget.
type RateLimitConfig struct {
	Limiter  ports.RateLimiter
	Endpoint string
	Policy   domain.RateLimitPolicy
	// FailOpen lets requests through when the counter store is unreachable.
	// Strict budgets leave it false and answer 500 instead.
	FailOpen bool
	Log      zerolog.Logger
}

// RateLimit counts the request against cfg.Policy before calling next and
// sets the X-RateLimit-* headers on the response.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := cfg.Limiter.ClientIdentifier(c.Request(), cfg.Endpoint)
			res, err := cfg.Limiter.CheckRateLimit(c.Request().Context(), id, cfg.Policy)
			if err != nil {
				metrics.RateLimitDecisionsTotal.WithLabelValues(cfg.Endpoint, "error").Inc()
				if cfg.FailOpen {
					cfg.Log.Warn().Err(err).Str("endpoint", cfg.Endpoint).Msg("rate limit store unavailable, allowing request")
					return next(c)
				}
				return err
			}

			h := c.Response().Header()
			for k, v := range service.RateLimitHeaders(res, time.Now()) {
				h.Set(k, v)
			}

			if !res.Success {
				metrics.RateLimitDecisionsTotal.WithLabelValues(cfg.Endpoint, "rejected").Inc()
				cfg.Log.Info().Str("client", id).Msg("rate limit exceeded")
				return &domain.RateLimitError{Result: res}
			}
			metrics.RateLimitDecisionsTotal.WithLabelValues(cfg.Endpoint, "allowed").Inc()
			return next(c)
		}
	}
}
