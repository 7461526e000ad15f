package ports

import (
	"context"
	"time"

	"github.com/mediastudio/studio-api/internal/core/domain"
)

// UserRepository defines the interface for user account persistence.
// Emails are passed already normalized.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// CreateInitialAdmin inserts user only if no other user has ever been
	// created through it and the collection is empty. Concurrent callers race
	// on an exclusive marker; losers get domain.ErrSetupCompleted.
	CreateInitialAdmin(ctx context.Context, user *domain.User) (*domain.User, error)
	Count(ctx context.Context) (int64, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// SessionRepository persists session records keyed by token hash.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	// FindByTokenHash returns domain.ErrNotFound when no record matches.
	FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// Invalidate marks the record dead. Unknown hashes are not an error.
	Invalidate(ctx context.Context, tokenHash string, at time.Time) error
	// InvalidateByUser marks every live session of userID dead except exceptID.
	InvalidateByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error)
	Touch(ctx context.Context, id string, at time.Time) error
	// DeleteExpired removes sessions expired at now and sessions invalidated
	// before invalidatedBefore.
	DeleteExpired(ctx context.Context, now, invalidatedBefore time.Time) (int64, error)
}

// CredentialRepository persists per-user third-party API keys.
type CredentialRepository interface {
	// FindActive returns domain.ErrNotFound when the user has no active key.
	FindActive(ctx context.Context, userID, service string) (*domain.StoredCredential, error)
	ExistsActive(ctx context.Context, userID, service string) (bool, error)
	ListActive(ctx context.Context, userID string) ([]*domain.StoredCredential, error)
	// ReplaceActive deactivates any active key for (UserID, Service) and
	// inserts c as the new active key.
	ReplaceActive(ctx context.Context, c *domain.StoredCredential) error
	// Deactivate reports whether an active key existed.
	Deactivate(ctx context.Context, userID, service string, at time.Time) (bool, error)
	ListUnencrypted(ctx context.Context, limit int64) ([]*domain.StoredCredential, error)
	MarkEncrypted(ctx context.Context, id, envelope string, at time.Time) error
}
