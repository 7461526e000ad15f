// @title           Media Studio API
// @version         1.0
// @description     Authentication, session, rate limiting and credential storage endpoints of the media studio.
// @BasePath        /
// @securityDefinitions.apikey CronSecret
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mediastudio/studio-api/internal/api"
	"github.com/mediastudio/studio-api/internal/api/handler"
	"github.com/mediastudio/studio-api/internal/core/ports"
	"github.com/mediastudio/studio-api/internal/core/security"
	"github.com/mediastudio/studio-api/internal/core/service"
	"github.com/mediastudio/studio-api/internal/infrastructure/db/mongo"
	"github.com/mediastudio/studio-api/internal/infrastructure/db/redis"
	"github.com/mediastudio/studio-api/internal/infrastructure/memory"
	"github.com/mediastudio/studio-api/internal/infrastructure/worker"
	"github.com/mediastudio/studio-api/internal/pkg/config"
	"github.com/mediastudio/studio-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "studio-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	policies, err := cfg.RateLimit.Policies()
	if err != nil {
		return err
	}

	codec, err := newCodec(cfg, log)
	if err != nil {
		return err
	}

	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	users := mongo.NewUserRepository(db)
	sessions := mongo.NewSessionRepository(db)
	credentials := mongo.NewCredentialRepository(db)
	if err := mongo.EnsureIndexes(ctx, users, sessions, credentials); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	health := map[string]handler.Pinger{
		"mongodb": handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) }),
	}
	scheduler := worker.NewScheduler(log)

	var (
		store    ports.RateLimitStore
		throttle ports.TouchThrottle
	)
	switch cfg.RateLimit.Store {
	case config.RateLimitStoreMemory:
		mem := memory.NewRateLimitStore()
		store, throttle = mem, memory.NewTouchThrottle()
		scheduler.Add(worker.Job{Name: "rate-limit-sweep", Interval: time.Minute, Run: func(context.Context) error {
			mem.Sweep()
			return nil
		}})
		log.Warn().Msg("rate limit counters are process-local")
	default:
		rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer func(rdb *goredis.Client) { _ = rdb.Close() }(rdb)
		store, throttle = redis.NewRateLimitStore(rdb), redis.NewTouchThrottle(rdb)
		health["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	limiter, err := service.NewRateLimitService(store, cfg.Security.TrustedProxies)
	if err != nil {
		return err
	}
	sessionService := service.NewSessionService(sessions, users, throttle, service.SessionConfig{
		TTL:           cfg.Session.TTL,
		TouchInterval: cfg.Session.TouchInterval,
	}, log)
	services := api.Services{
		Auth:        service.NewAuthService(users, log),
		Sessions:    sessionService,
		Setup:       service.NewSetupService(users, log),
		Credentials: service.NewCredentialService(credentials, codec, cfg.Credential.AllowLegacyPlaintext, log),
		RateLimiter: limiter,
	}

	scheduler.Add(worker.Job{Name: "session-cleanup", Interval: cfg.Session.SweepInterval, Run: func(ctx context.Context) error {
		_, err := sessionService.CleanupExpiredSessions(ctx)
		return err
	}})
	scheduler.Start(ctx)

	if cfg.Security.CronSecret == "" {
		log.Warn().Msg("CRON_SECRET not set, cron endpoints are disabled")
	}

	e := api.NewRouter(api.Options{
		Production: cfg.IsProduction(),
		SessionTTL: cfg.Session.TTL,
		CronSecret: cfg.Security.CronSecret,
		Policies:   policies,
		Health:     health,
		Log:        log,
	}, services)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	scheduler.Wait()
	return nil
}

// newCodec builds the credential codec. Without a configured key an
// ephemeral one is generated so development works; stored keys then do not
// survive a restart.
func newCodec(cfg *config.Config, log zerolog.Logger) (*security.Codec, error) {
	raw := cfg.Credential.EncryptionKey
	if raw == "" {
		tok, err := security.NewToken(32)
		if err != nil {
			return nil, err
		}
		raw = tok
		log.Warn().Msg("CREDENTIAL_ENCRYPTION_KEY not set, using an ephemeral key")
	}
	key, stretched, err := security.ParseKey(raw)
	if err != nil {
		return nil, err
	}
	if stretched && cfg.Credential.EncryptionKey != "" {
		log.Warn().Msg("CREDENTIAL_ENCRYPTION_KEY is not 32 bytes of hex or base64, deriving key with SHA-256")
	}
	return security.NewCodec(key)
}
