package ports

import (
	"context"
	"net/http"

	"github.com/mediastudio/studio-api/internal/core/domain"
)

// AuthService verifies credentials and manages accounts.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	CreateUser(ctx context.Context, email, password, name, role string) (*domain.User, error)
}

// SessionService is the session lifecycle manager.
type SessionService interface {
	CreateSession(ctx context.Context, userID string, meta domain.SessionMeta) (string, *domain.Session, error)
	ValidateSession(ctx context.Context, token string) (*domain.User, *domain.Session, error)
	InvalidateSession(ctx context.Context, token string) error
	InvalidateUserSessions(ctx context.Context, userID, exceptSessionID string) (int64, error)
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// SetupService guards the one-time creation of the first administrator.
type SetupService interface {
	SetupRequired(ctx context.Context) (bool, error)
	CreateInitialAdmin(ctx context.Context, email, password, name string) (*domain.User, error)
}

// RateLimiter applies fixed-window budgets per client identifier.
type RateLimiter interface {
	ClientIdentifier(r *http.Request, endpoint string) string
	CheckRateLimit(ctx context.Context, id string, policy domain.RateLimitPolicy) (domain.RateLimitResult, error)
}

// CredentialService stores and serves third-party API keys. GetAPIKey and
// HasActiveAPIKey are the entry points for features calling a provider.
type CredentialService interface {
	SaveAPIKey(ctx context.Context, userID, service, apiKey string) (*domain.CredentialView, error)
	GetAPIKey(ctx context.Context, userID, service string) (string, error)
	HasActiveAPIKey(ctx context.Context, userID, service string) (bool, error)
	ListAPIKeys(ctx context.Context, userID string) ([]domain.CredentialView, error)
	DeactivateAPIKey(ctx context.Context, userID, service string) error
	MigrateLegacyKeys(ctx context.Context) (int, error)
}
