package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediastudio/studio-api/internal/api/cookies"
	"github.com/mediastudio/studio-api/internal/api/middleware"
	"github.com/mediastudio/studio-api/internal/core/domain"
)

type stubAuthService struct {
	loginFn          func(ctx context.Context, email, password string) (*domain.User, error)
	changePasswordFn func(ctx context.Context, userID, current, next string) error
	createUserFn     func(ctx context.Context, email, password, name, role string) (*domain.User, error)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	return s.changePasswordFn(ctx, userID, current, next)
}

func (s *stubAuthService) CreateUser(ctx context.Context, email, password, name, role string) (*domain.User, error) {
	return s.createUserFn(ctx, email, password, name, role)
}

type stubSessionService struct {
	created     []string
	invalidated []string
	kept        string
	revoked     int64
	cleaned     int64
	invalidErr  error
}

func (s *stubSessionService) CreateSession(_ context.Context, userID string, meta domain.SessionMeta) (string, *domain.Session, error) {
	s.created = append(s.created, userID)
	return "tok-" + userID, &domain.Session{ID: "sess-" + userID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *stubSessionService) ValidateSession(context.Context, string) (*domain.User, *domain.Session, error) {
	return nil, nil, domain.ErrSessionInvalid
}

func (s *stubSessionService) InvalidateSession(_ context.Context, token string) error {
	s.invalidated = append(s.invalidated, token)
	return s.invalidErr
}

func (s *stubSessionService) InvalidateUserSessions(_ context.Context, _ string, except string) (int64, error) {
	s.kept = except
	return s.revoked, nil
}

func (s *stubSessionService) CleanupExpiredSessions(context.Context) (int64, error) {
	return s.cleaned, nil
}

type stubSetupService struct {
	required bool
	createFn func(ctx context.Context, email, password, name string) (*domain.User, error)
}

func (s *stubSetupService) SetupRequired(context.Context) (bool, error) { return s.required, nil }

func (s *stubSetupService) CreateInitialAdmin(ctx context.Context, email, password, name string) (*domain.User, error) {
	return s.createFn(ctx, email, password, name)
}

type stubCredentialService struct {
	saved       map[string]string
	migrated    int
	deactivated []string
}

func (s *stubCredentialService) SaveAPIKey(_ context.Context, userID, service, apiKey string) (*domain.CredentialView, error) {
	if s.saved == nil {
		s.saved = map[string]string{}
	}
	s.saved[userID+"/"+service] = apiKey
	return &domain.CredentialView{Service: service, MaskedKey: "sk-...", IsActive: true}, nil
}

func (s *stubCredentialService) GetAPIKey(_ context.Context, userID, service string) (string, error) {
	return s.saved[userID+"/"+service], nil
}

func (s *stubCredentialService) HasActiveAPIKey(_ context.Context, userID, service string) (bool, error) {
	_, ok := s.saved[userID+"/"+service]
	return ok, nil
}

func (s *stubCredentialService) ListAPIKeys(_ context.Context, userID string) ([]domain.CredentialView, error) {
	var out []domain.CredentialView
	for k := range s.saved {
		if svc, ok := strings.CutPrefix(k, userID+"/"); ok {
			out = append(out, domain.CredentialView{Service: svc, MaskedKey: "sk-...", IsActive: true})
		}
	}
	return out, nil
}

func (s *stubCredentialService) DeactivateAPIKey(_ context.Context, userID, service string) error {
	if _, ok := s.saved[userID+"/"+service]; !ok {
		return domain.ErrNotFound
	}
	delete(s.saved, userID+"/"+service)
	s.deactivated = append(s.deactivated, service)
	return nil
}

func (s *stubCredentialService) MigrateLegacyKeys(context.Context) (int, error) {
	return s.migrated, nil
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// authenticate mimics the Session middleware.
func authenticate(c echo.Context, u *domain.User) {
	c.Set(middleware.ContextKeyUser, u)
	c.Set(middleware.ContextKeySession, &domain.Session{ID: "current", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour)})
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

var (
	testLog    = zerolog.Nop()
	testIssuer = cookies.NewIssuer(false, time.Hour)
)
