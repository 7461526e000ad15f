package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/mediastudio/studio-api/internal/api/cookies"
	"github.com/mediastudio/studio-api/internal/api/handler"
	"github.com/mediastudio/studio-api/internal/api/middleware"
	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/ports"
	"github.com/mediastudio/studio-api/internal/pkg/config"

	_ "github.com/mediastudio/studio-api/docs"
)

// Services are the core services the HTTP layer drives.
type Services struct {
	Auth        ports.AuthService
	Sessions    ports.SessionService
	Setup       ports.SetupService
	Credentials ports.CredentialService
	RateLimiter ports.RateLimiter
}

// Options configure the router.
type Options struct {
	Production bool
	SessionTTL time.Duration
	CronSecret string
	Policies   config.Policies
	// Health lists the dependencies checked by /health/ready.
	Health map[string]handler.Pinger
	// Registerer receives the HTTP metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Log        zerolog.Logger
}

// csrfExempt are the mutating routes that cannot carry a CSRF token yet or
// authenticate with a bearer secret.
var csrfExempt = []string{"/api/auth/login", "/api/setup", "/api/cron/"}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(opts Options, s Services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(opts.Log)
	e.IPExtractor = echo.ExtractIPDirect()

	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(opts.Log))
	e.Use(echomiddleware.BodyLimit("64K"))
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:      "0",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		HSTSMaxAge:         hstsMaxAge(opts.Production),
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "http",
		Registerer: opts.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Dependencies ---
	issuer := cookies.NewIssuer(opts.Production, opts.SessionTTL)
	authHandler := handler.NewAuthHandler(s.Auth, s.Sessions, issuer, opts.Log)
	setupHandler := handler.NewSetupHandler(s.Setup, authHandler)
	credentialHandler := handler.NewCredentialHandler(s.Credentials)
	userHandler := handler.NewUserHandler(s.Auth)
	cronHandler := handler.NewCronHandler(s.Sessions, s.Credentials)

	limit := func(endpoint string, p domain.RateLimitPolicy, failOpen bool) echo.MiddlewareFunc {
		return middleware.RateLimit(middleware.RateLimitConfig{
			Limiter:  s.RateLimiter,
			Endpoint: endpoint,
			Policy:   p,
			FailOpen: failOpen,
			Log:      opts.Log,
		})
	}
	session := middleware.Session(s.Sessions)

	// --- API ---
	api := e.Group("/api",
		limit("api", opts.Policies.API, true),
		middleware.CSRF(middleware.CSRFConfig{Skipper: isCSRFExempt}),
	)

	api.GET("/setup", setupHandler.Status)
	api.POST("/setup", setupHandler.Create, limit("setup", opts.Policies.Setup, false))

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login, limit("login", opts.Policies.Login, false))
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/session", authHandler.Session, session)
	auth.GET("/csrf", authHandler.CSRF)
	auth.POST("/password", authHandler.ChangePassword, session, limit("password", opts.Policies.Login, false))

	keys := api.Group("/settings/api-keys", session)
	credentialWrites := limit("credentials", opts.Policies.Credentials, false)
	keys.GET("", credentialHandler.List)
	keys.PUT("/:service", credentialHandler.Save, credentialWrites)
	keys.DELETE("/:service", credentialHandler.Delete, credentialWrites)

	api.POST("/users", userHandler.Create, session, middleware.RBAC(domain.RoleAdmin))

	cron := api.Group("/cron", middleware.CronAuth(opts.CronSecret))
	cron.GET("/cleanup-sessions", cronHandler.CleanupSessions)
	cron.GET("/migrate-credentials", cronHandler.MigrateCredentials)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(opts.Health)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: opts.Gatherer}))

	if !opts.Production {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	e.RouteNotFound("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	})

	return e
}

func isCSRFExempt(c echo.Context) bool {
	path := c.Request().URL.Path
	for _, p := range csrfExempt {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

func hstsMaxAge(production bool) int {
	if production {
		return 31536000
	}
	return 0
}
