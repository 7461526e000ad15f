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

const migrateBatchSize = 100

// CredentialService stores third-party API keys encrypted and hands them back
// decrypted to features calling the provider.
type CredentialService struct {
	repo        ports.CredentialRepository
	codec       *security.Codec
	allowLegacy bool
	log         zerolog.Logger
	now         func() time.Time
}

// NewCredentialService returns a CredentialService. With allowLegacy, rows
// written before encryption was introduced are served as stored.
func NewCredentialService(repo ports.CredentialRepository, codec *security.Codec, allowLegacy bool, log zerolog.Logger) *CredentialService {
	return &CredentialService{
		repo:        repo,
		codec:       codec,
		allowLegacy: allowLegacy,
		log:         log.With().Str("component", "credentials").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SaveAPIKey encrypts apiKey and makes it the active key of (userID, service).
// The previous key, if any, is deactivated rather than deleted.
func (s *CredentialService) SaveAPIKey(ctx context.Context, userID, service, apiKey string) (*domain.CredentialView, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.NewValidationError("apiKey is required")
	}

	envelope, err := s.codec.EncryptString(apiKey)
	if err != nil {
		return nil, fmt.Errorf("save api key: %w", err)
	}

	now := s.now()
	c := &domain.StoredCredential{
		ID:          uuid.NewString(),
		UserID:      userID,
		Service:     service,
		APIKey:      envelope,
		IsEncrypted: true,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.ReplaceActive(ctx, c); err != nil {
		return nil, fmt.Errorf("save api key: %w", err)
	}

	s.log.Info().Str("user_id", userID).Str("service", service).Msg("api key stored")
	return &domain.CredentialView{
		Service:   service,
		MaskedKey: security.MaskAPIKey(apiKey),
		IsActive:  true,
		UpdatedAt: now,
	}, nil
}

// GetAPIKey returns the decrypted active key, or "" when none is stored.
func (s *CredentialService) GetAPIKey(ctx context.Context, userID, service string) (string, error) {
	c, err := s.repo.FindActive(ctx, userID, service)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get api key: %w", err)
	}
	return s.reveal(c)
}

// HasActiveAPIKey checks for an active key without reading key material.
func (s *CredentialService) HasActiveAPIKey(ctx context.Context, userID, service string) (bool, error) {
	ok, err := s.repo.ExistsActive(ctx, userID, service)
	if err != nil {
		return false, fmt.Errorf("has api key: %w", err)
	}
	return ok, nil
}

// ListAPIKeys returns the masked active keys of userID.
func (s *CredentialService) ListAPIKeys(ctx context.Context, userID string) ([]domain.CredentialView, error) {
	creds, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	views := make([]domain.CredentialView, 0, len(creds))
	for _, c := range creds {
		masked := "..."
		if key, err := s.reveal(c); err == nil {
			masked = security.MaskAPIKey(key)
		}
		views = append(views, domain.CredentialView{
			Service:   c.Service,
			MaskedKey: masked,
			IsActive:  c.IsActive,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return views, nil
}

// DeactivateAPIKey retires the active key of (userID, service).
func (s *CredentialService) DeactivateAPIKey(ctx context.Context, userID, service string) error {
	found, err := s.repo.Deactivate(ctx, userID, service, s.now())
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}
	if !found {
		return domain.ErrNotFound
	}
	s.log.Info().Str("user_id", userID).Str("service", service).Msg("api key deactivated")
	return nil
}

// MigrateLegacyKeys encrypts every row still holding a plaintext key and
// returns how many rows were migrated.
func (s *CredentialService) MigrateLegacyKeys(ctx context.Context) (int, error) {
	migrated := 0
	for {
		batch, err := s.repo.ListUnencrypted(ctx, migrateBatchSize)
		if err != nil {
			return migrated, fmt.Errorf("migrate api keys: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, c := range batch {
			envelope := c.APIKey
			if !security.IsEncrypted(envelope) {
				envelope, err = s.codec.EncryptString(c.APIKey)
				if err != nil {
					return migrated, fmt.Errorf("migrate api keys: %w", err)
				}
			}
			if err := s.repo.MarkEncrypted(ctx, c.ID, envelope, s.now()); err != nil {
				return migrated, fmt.Errorf("migrate api keys: %w", err)
			}
			migrated++
		}
		if len(batch) < migrateBatchSize {
			break
		}
	}
	if migrated > 0 {
		s.log.Info().Int("migrated", migrated).Msg("legacy api keys encrypted")
	}
	return migrated, nil
}

// reveal returns the plaintext key of c. Envelopes are decrypted; a failure is
// an error unless the row is marked legacy and the fallback is enabled, in
// which case the stored value is returned as-is and the anomaly logged.
func (s *CredentialService) reveal(c *domain.StoredCredential) (string, error) {
	if security.IsEncrypted(c.APIKey) {
		key, err := s.codec.DecryptString(c.APIKey)
		if err == nil {
			return key, nil
		}
		if !c.IsEncrypted && s.allowLegacy {
			s.log.Warn().Err(err).Str("credential_id", c.ID).Msg("legacy api key looks encrypted but does not decrypt, returning as stored")
			return c.APIKey, nil
		}
		s.log.Error().Err(err).Str("credential_id", c.ID).Msg("api key decryption failed")
		return "", err
	}

	if !s.allowLegacy {
		s.log.Error().Str("credential_id", c.ID).Msg("plaintext api key found with legacy fallback disabled")
		return "", fmt.Errorf("%w: plaintext value", domain.ErrDecryption)
	}
	if c.IsEncrypted {
		s.log.Warn().Str("credential_id", c.ID).Msg("api key marked encrypted but not an envelope, returning as stored")
	}
	return c.APIKey, nil
}
