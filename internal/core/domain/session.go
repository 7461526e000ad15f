package domain

import "time"

// Session is the server-side record behind an opaque session token.
// Only the SHA-256 hash of the token is persisted.
type Session struct {
	ID            string
	TokenHash     string
	UserID        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastSeenAt    time.Time
	InvalidatedAt *time.Time
	UserAgent     string
	IP            string
}

// SessionMeta carries request details recorded alongside a new session.
type SessionMeta struct {
	UserAgent string
	IP        string
}

// IsActive reports whether the session may still authenticate requests at now.
func (s *Session) IsActive(now time.Time) bool {
	if s == nil || s.InvalidatedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}
