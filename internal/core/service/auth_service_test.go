package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/security"
)

const testPassword = "Str0ng!Pass#word"

func seedUser(t *testing.T, repo *stubUserRepo, id, email, password, role string) *domain.User {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &domain.User{ID: id, Email: email, PasswordHash: hash, Role: role}
	repo.put(u)
	return u
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "u1", "alice@example.com", testPassword, domain.RoleUser)
	svc := NewAuthService(repo, testLogger)

	user, err := svc.Login(context.Background(), "  Alice@Example.com ", testPassword)
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
}

func TestAuthService_Login_UniformFailure(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "u1", "alice@example.com", testPassword, domain.RoleUser)
	svc := NewAuthService(repo, testLogger)

	_, wrongPassword := svc.Login(context.Background(), "alice@example.com", "Wr0ng!Pass#word")
	_, unknownEmail := svc.Login(context.Background(), "nobody@example.com", testPassword)
	_, empty := svc.Login(context.Background(), "", "")

	for name, err := range map[string]error{"wrong password": wrongPassword, "unknown email": unknownEmail, "empty": empty} {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("error messages differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestAuthService_Login_UpgradesLegacyHash(t *testing.T) {
	repo := newStubUserRepo()
	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	repo.put(&domain.User{ID: "u1", Email: "alice@example.com", PasswordHash: string(legacy), Role: domain.RoleUser})
	svc := NewAuthService(repo, testLogger)

	if _, err := svc.Login(context.Background(), "alice@example.com", testPassword); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	stored, _ := repo.FindByID(context.Background(), "u1")
	if !strings.HasPrefix(stored.PasswordHash, "argon2id$") {
		t.Fatalf("expected upgraded argon2id hash, got %q", stored.PasswordHash)
	}
	if !security.VerifyPassword(testPassword, stored.PasswordHash) {
		t.Fatalf("upgraded hash does not verify")
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "u1", "alice@example.com", testPassword, domain.RoleUser)
	svc := NewAuthService(repo, testLogger)
	ctx := context.Background()

	var vErr *domain.ValidationError
	if err := svc.ChangePassword(ctx, "u1", "Wr0ng!Pass#word", "N3w!Secret#Key"); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for wrong current password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, "u1", testPassword, testPassword); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for unchanged password, got %v", err)
	}
	if err := svc.ChangePassword(ctx, "u1", testPassword, "short"); !errors.As(err, &vErr) || len(vErr.Requirements) == 0 {
		t.Fatalf("expected policy error with requirements, got %v", err)
	}
	if repo.hashWrites != 0 {
		t.Fatalf("rejected changes must not write a hash")
	}

	if err := svc.ChangePassword(ctx, "u1", testPassword, "N3w!Secret#Key"); err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "N3w!Secret#Key"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", testPassword); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
}

func TestAuthService_CreateUser(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, testLogger)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "Bob@Example.com", testPassword, " Bob ", "")
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if user.Email != "bob@example.com" || user.Name != "Bob" || user.Role != domain.RoleUser {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == testPassword || user.ID == "" {
		t.Fatalf("expected hashed password and generated id")
	}

	if _, err := svc.CreateUser(ctx, "bob@example.com", testPassword, "", ""); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	var vErr *domain.ValidationError
	if _, err := svc.CreateUser(ctx, "carol@example.com", testPassword, "", "root"); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for unknown role, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "carol@example.com", "password", "", ""); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for weak password, got %v", err)
	}
}

func TestAuthService_Login_LastLoginUsesClock(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "u1", "alice@example.com", testPassword, domain.RoleUser)
	svc := NewAuthService(repo, testLogger)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	user, err := svc.Login(context.Background(), "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if !user.LastLoginAt.Equal(fixed) {
		t.Fatalf("unexpected last login: %v", user.LastLoginAt)
	}
}
