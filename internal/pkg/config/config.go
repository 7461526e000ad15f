package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/mediastudio/studio-api/internal/core/domain"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	RateLimitStoreRedis  = "redis"
	RateLimitStoreMemory = "memory"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Session    SessionConfig
	Credential CredentialConfig
	Security   SecurityConfig
	RateLimit  RateLimitConfig
	Mongo      MongoConfig
	Redis      RedisConfig
}

type SessionConfig struct {
	TTL           time.Duration `env:"SESSION_TTL,            default=168h"`
	TouchInterval time.Duration `env:"SESSION_TOUCH_INTERVAL, default=1m"`
	// SweepInterval enables the in-process cleanup job when positive.
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL, default=0s"`
}

type CredentialConfig struct {
	EncryptionKey        string `env:"CREDENTIAL_ENCRYPTION_KEY"`
	AllowLegacyPlaintext bool   `env:"ALLOW_LEGACY_PLAINTEXT, default=true"`
}

type SecurityConfig struct {
	CronSecret     string   `env:"CRON_SECRET"`
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

type RateLimitConfig struct {
	Store       string `env:"RATE_LIMIT_STORE,       default=redis"`
	API         string `env:"RATE_LIMIT_API,         default=100/1m"`
	Login       string `env:"RATE_LIMIT_LOGIN,       default=5/1m"`
	Setup       string `env:"RATE_LIMIT_SETUP,       default=5/1m"`
	Credentials string `env:"RATE_LIMIT_CREDENTIALS, default=20/1m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=media_studio"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	DB       int    `env:"REDIS_DB,       default=0"`
	Password string `env:"REDIS_PASSWORD"`
}

// Policies are the parsed rate limit budgets.
type Policies struct {
	API         domain.RateLimitPolicy
	Login       domain.RateLimitPolicy
	Setup       domain.RateLimitPolicy
	Credentials domain.RateLimitPolicy
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads and validates configuration from l.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.IsProduction() {
		if c.Credential.EncryptionKey == "" {
			errs = append(errs, errors.New("CREDENTIAL_ENCRYPTION_KEY is required in production"))
		}
		if c.Security.CronSecret == "" {
			errs = append(errs, errors.New("CRON_SECRET is required in production"))
		}
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	switch c.RateLimit.Store {
	case RateLimitStoreRedis, RateLimitStoreMemory:
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_STORE must be %q or %q", RateLimitStoreRedis, RateLimitStoreMemory))
	}
	if _, err := c.RateLimit.Policies(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Policies parses every configured budget.
func (r RateLimitConfig) Policies() (Policies, error) {
	var (
		p    Policies
		errs []error
	)
	for _, f := range []struct {
		raw string
		dst *domain.RateLimitPolicy
	}{
		{r.API, &p.API},
		{r.Login, &p.Login},
		{r.Setup, &p.Setup},
		{r.Credentials, &p.Credentials},
	} {
		policy, err := domain.ParseRateLimitPolicy(f.raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f.dst = policy
	}
	return p, errors.Join(errs...)
}
