package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/ports"
)

// SetupService creates the first administrator exactly once.
type SetupService struct {
	repo ports.UserRepository
	log  zerolog.Logger
	now  func() time.Time
}

func NewSetupService(repo ports.UserRepository, log zerolog.Logger) *SetupService {
	return &SetupService{
		repo: repo,
		log:  log.With().Str("component", "setup").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetupRequired reports whether no user exists yet.
func (s *SetupService) SetupRequired(ctx context.Context) (bool, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("setup status: %w", err)
	}
	return n == 0, nil
}

// CreateInitialAdmin creates the first admin. Once any user exists, or when a
// concurrent call wins the race, it returns domain.ErrSetupCompleted.
func (s *SetupService) CreateInitialAdmin(ctx context.Context, email, password, name string) (*domain.User, error) {
	required, err := s.SetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, domain.ErrSetupCompleted
	}

	user, err := newUser(email, password, name, domain.RoleAdmin, s.now())
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateInitialAdmin(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", created.ID).Msg("initial admin created")
	return created, nil
}
