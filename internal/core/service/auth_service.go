package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/ports"
	"github.com/mediastudio/studio-api/internal/core/security"
)

// AuthService implements login, password change and account creation.
type AuthService struct {
	repo ports.UserRepository
	log  zerolog.Logger
	now  func() time.Time
}

func NewAuthService(repo ports.UserRepository, log zerolog.Logger) *AuthService {
	return &AuthService{
		repo: repo,
		log:  log.With().Str("component", "auth").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies email and password. Unknown accounts and wrong passwords both
// yield domain.ErrInvalidCredentials after the same amount of hashing work.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			security.BurnVerification(password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !security.VerifyPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if security.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	now := s.now()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLoginAt = &now
	}

	return user, nil
}

func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hash, err := security.HashPassword(password)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash failed")
		return
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to store upgraded password hash")
		return
	}
	user.PasswordHash = hash
	s.log.Info().Str("user_id", user.ID).Msg("password hash upgraded")
}

// ChangePassword replaces the password of userID after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !security.VerifyPassword(currentPassword, user.PasswordHash) {
		return domain.NewValidationError("Current password is incorrect")
	}
	if currentPassword == newPassword {
		return domain.NewValidationError("New password must differ from the current password")
	}
	if err := checkPasswordPolicy(newPassword); err != nil {
		return err
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

// CreateUser registers an account on behalf of an administrator.
func (s *AuthService) CreateUser(ctx context.Context, email, password, name, role string) (*domain.User, error) {
	user, err := newUser(email, password, name, role, s.now())
	if err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", created.ID).Str("role", created.Role).Msg("user created")
	return created, nil
}

// newUser validates input and builds a user with a hashed password.
func newUser(email, password, name, role string, now time.Time) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.NewValidationError("email is required")
	}
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleAdmin && role != domain.RoleUser {
		return nil, domain.NewValidationError("role must be one of: admin user")
	}
	if err := checkPasswordPolicy(password); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func checkPasswordPolicy(password string) error {
	res := security.ValidatePassword(password)
	if res.Valid {
		return nil
	}
	return &domain.ValidationError{
		Details:      res.Errors,
		Requirements: security.PasswordRequirements(),
	}
}
