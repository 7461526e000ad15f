package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediastudio/studio-api/internal/core/domain"
)

var testLogger = zerolog.Nop()

type stubUserRepo struct {
	mu         sync.Mutex
	users      map[string]*domain.User
	setupTaken bool
	hashWrites int
	createHook func()
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) CreateInitialAdmin(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.createHook != nil {
		r.createHook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setupTaken || len(r.users) > 0 {
		return nil, domain.ErrSetupCompleted
	}
	r.setupTaken = true
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *stubUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r *stubUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	r.hashWrites++
	return nil
}

func (r *stubUserRepo) put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = cloneUser(u)
}

type stubSessionRepo struct {
	mu      sync.Mutex
	byHash  map[string]*domain.Session
	touches int
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{byHash: make(map[string]*domain.Session)}
}

func cloneSession(s *domain.Session) *domain.Session {
	clone := *s
	return &clone
}

func (r *stubSessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[s.TokenHash] = cloneSession(s)
	return nil
}

func (r *stubSessionRepo) FindByTokenHash(_ context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byHash[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneSession(s), nil
}

func (r *stubSessionRepo) Invalidate(_ context.Context, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byHash[hash]; ok && s.InvalidatedAt == nil {
		s.InvalidatedAt = &at
	}
	return nil
}

func (r *stubSessionRepo) InvalidateByUser(_ context.Context, userID, exceptID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byHash {
		if s.UserID == userID && s.ID != exceptID && s.InvalidatedAt == nil {
			s.InvalidatedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *stubSessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byHash {
		if s.ID == id {
			s.LastSeenAt = at
			r.touches++
		}
	}
	return nil
}

func (r *stubSessionRepo) DeleteExpired(_ context.Context, now, invalidatedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for h, s := range r.byHash {
		if !now.Before(s.ExpiresAt) || (s.InvalidatedAt != nil && s.InvalidatedAt.Before(invalidatedBefore)) {
			delete(r.byHash, h)
			n++
		}
	}
	return n, nil
}

func (r *stubSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byHash)
}

type stubCredentialRepo struct {
	mu    sync.Mutex
	creds []*domain.StoredCredential
}

func cloneCredential(c *domain.StoredCredential) *domain.StoredCredential {
	clone := *c
	return &clone
}

func (r *stubCredentialRepo) FindActive(_ context.Context, userID, service string) (*domain.StoredCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.UserID == userID && c.Service == service && c.IsActive {
			return cloneCredential(c), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubCredentialRepo) ExistsActive(ctx context.Context, userID, service string) (bool, error) {
	_, err := r.FindActive(ctx, userID, service)
	return err == nil, nil
}

func (r *stubCredentialRepo) ListActive(_ context.Context, userID string) ([]*domain.StoredCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StoredCredential
	for _, c := range r.creds {
		if c.UserID == userID && c.IsActive {
			out = append(out, cloneCredential(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

func (r *stubCredentialRepo) ReplaceActive(_ context.Context, c *domain.StoredCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, old := range r.creds {
		if old.UserID == c.UserID && old.Service == c.Service && old.IsActive {
			old.IsActive = false
			at := c.CreatedAt
			old.DeactivatedAt = &at
		}
	}
	r.creds = append(r.creds, cloneCredential(c))
	return nil
}

func (r *stubCredentialRepo) Deactivate(_ context.Context, userID, service string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.UserID == userID && c.Service == service && c.IsActive {
			c.IsActive = false
			c.DeactivatedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (r *stubCredentialRepo) ListUnencrypted(_ context.Context, limit int64) ([]*domain.StoredCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StoredCredential
	for _, c := range r.creds {
		if !c.IsEncrypted && int64(len(out)) < limit {
			out = append(out, cloneCredential(c))
		}
	}
	return out, nil
}

func (r *stubCredentialRepo) MarkEncrypted(_ context.Context, id, envelope string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.ID == id {
			c.APIKey = envelope
			c.IsEncrypted = true
			c.UpdatedAt = at
			return nil
		}
	}
	return domain.ErrNotFound
}

type stubThrottle struct {
	mu      sync.Mutex
	granted map[string]bool
}

func (t *stubThrottle) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.granted == nil {
		t.granted = make(map[string]bool)
	}
	if t.granted[key] {
		return false, nil
	}
	t.granted[key] = true
	return true, nil
}

// stubRateStore is a fixed-window counter driven by a fake clock.
type stubRateStore struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*stubWindow
	err     error
}

type stubWindow struct {
	count   int
	resetAt time.Time
}

func (s *stubRateStore) Hit(_ context.Context, key string, limit int, window time.Duration) (int, time.Time, bool, error) {
	if s.err != nil {
		return 0, time.Time{}, false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.windows == nil {
		s.windows = make(map[string]*stubWindow)
	}
	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &stubWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	if w.count >= limit {
		return w.count, w.resetAt, false, nil
	}
	w.count++
	return w.count, w.resetAt, true, nil
}
