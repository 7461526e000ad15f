package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/ports"
	"github.com/mediastudio/studio-api/internal/core/security"
)

const (
	defaultSessionTTL    = 7 * 24 * time.Hour
	invalidatedRetention = 24 * time.Hour
	touchThrottlePrefix  = "session:touch:"
)

// SessionConfig tunes the session lifecycle.
type SessionConfig struct {
	TTL time.Duration
	// TouchInterval bounds how often LastSeenAt is written for one session.
	// Zero disables last-seen tracking.
	TouchInterval time.Duration
}

// SessionService issues, validates, invalidates and garbage-collects opaque
// session tokens. Tokens are random capabilities; only their hash is stored,
// so revocation takes effect on the next request.
type SessionService struct {
	sessions ports.SessionRepository
	users    ports.UserRepository
	throttle ports.TouchThrottle
	cfg      SessionConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewSessionService returns a SessionService. throttle may be nil, in which
// case only the stored LastSeenAt bounds touch frequency.
func NewSessionService(
	sessions ports.SessionRepository,
	users ports.UserRepository,
	throttle ports.TouchThrottle,
	cfg SessionConfig,
	log zerolog.Logger,
) *SessionService {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultSessionTTL
	}
	return &SessionService{
		sessions: sessions,
		users:    users,
		throttle: throttle,
		cfg:      cfg,
		log:      log.With().Str("component", "session").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TTL is the lifetime given to new sessions.
func (s *SessionService) TTL() time.Duration {
	return s.cfg.TTL
}

// CreateSession persists a new session for userID and returns the raw token.
// The token is not retrievable afterwards.
func (s *SessionService) CreateSession(ctx context.Context, userID string, meta domain.SessionMeta) (string, *domain.Session, error) {
	token, err := security.NewToken(security.SessionTokenBytes)
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	now := s.now()
	sess := &domain.Session{
		ID:         uuid.NewString(),
		TokenHash:  security.HashToken(token),
		UserID:     userID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.TTL),
		LastSeenAt: now,
		UserAgent:  meta.UserAgent,
		IP:         meta.IP,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Debug().Str("session_id", sess.ID).Str("user_id", userID).Msg("session created")
	return token, sess, nil
}

// ValidateSession resolves token to its user and session. Missing, expired
// and invalidated sessions, as well as sessions of deleted users, all return
// domain.ErrSessionInvalid.
func (s *SessionService) ValidateSession(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	// hashed before the empty check so every rejection does the same work
	hash := security.HashToken(token)
	if token == "" {
		return nil, nil, domain.ErrSessionInvalid
	}

	sess, err := s.sessions.FindByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrSessionInvalid
		}
		return nil, nil, fmt.Errorf("validate session: %w", err)
	}

	now := s.now()
	if !sess.IsActive(now) {
		return nil, nil, domain.ErrSessionInvalid
	}

	user, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrSessionInvalid
		}
		return nil, nil, fmt.Errorf("validate session: %w", err)
	}

	s.touch(ctx, sess, now)
	return user, sess, nil
}

// touch refreshes LastSeenAt at most once per TouchInterval. Failures never
// affect the authorization decision.
func (s *SessionService) touch(ctx context.Context, sess *domain.Session, now time.Time) {
	if s.cfg.TouchInterval <= 0 || now.Sub(sess.LastSeenAt) < s.cfg.TouchInterval {
		return
	}
	if s.throttle != nil {
		ok, err := s.throttle.Acquire(ctx, touchThrottlePrefix+sess.ID, s.cfg.TouchInterval)
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("touch throttle unavailable")
			return
		}
		if !ok {
			return
		}
	}
	if err := s.sessions.Touch(ctx, sess.ID, now); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to refresh last seen")
		return
	}
	sess.LastSeenAt = now
}

// InvalidateSession kills the session behind token. It is idempotent and
// unknown tokens are not an error.
func (s *SessionService) InvalidateSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Invalidate(ctx, security.HashToken(token), s.now()); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}

// InvalidateUserSessions kills every live session of userID except
// exceptSessionID, which may be empty.
func (s *SessionService) InvalidateUserSessions(ctx context.Context, userID, exceptSessionID string) (int64, error) {
	n, err := s.sessions.InvalidateByUser(ctx, userID, exceptSessionID, s.now())
	if err != nil {
		return 0, fmt.Errorf("invalidate user sessions: %w", err)
	}
	if n > 0 {
		s.log.Info().Str("user_id", userID).Int64("count", n).Msg("sessions revoked")
	}
	return n, nil
}

// CleanupExpiredSessions deletes expired sessions and sessions invalidated
// more than a day ago. It runs without coordination with ValidateSession:
// a deleted record and an expired one are rejected the same way.
func (s *SessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.sessions.DeleteExpired(ctx, now, now.Add(-invalidatedRetention))
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	s.log.Info().Int64("deleted", n).Msg("expired sessions cleaned up")
	return n, nil
}
