package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/mediastudio/studio-api/internal/api/cookies"
	"github.com/mediastudio/studio-api/internal/core/domain"
)

func TestSetupHandler_Status(t *testing.T) {
	e := newTestEcho()
	h := NewSetupHandler(&stubSetupService{required: true}, NewAuthHandler(&stubAuthService{}, &stubSessionService{}, testIssuer, testLog))

	c, rec := jsonRequest(e, http.MethodGet, "/api/setup", "")
	if err := h.Status(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp setupStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.SetupRequired {
		t.Fatalf("expected setupRequired=true")
	}
}

func TestSetupHandler_Create_SignsIn(t *testing.T) {
	e := newTestEcho()
	sessions := &stubSessionService{}
	setup := &stubSetupService{
		createFn: func(_ context.Context, email, _, name string) (*domain.User, error) {
			return &domain.User{ID: "admin1", Email: email, Name: name, Role: domain.RoleAdmin}, nil
		},
	}
	h := NewSetupHandler(setup, NewAuthHandler(&stubAuthService{}, sessions, testIssuer, testLog))

	c, rec := jsonRequest(e, http.MethodPost, "/api/setup", `{"email":"root@example.com","password":"Str0ng!Pass#word","name":"Root"}`)
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.User.Role != domain.RoleAdmin {
		t.Fatalf("expected admin, got %+v", resp.User)
	}
	if len(sessions.created) != 1 || cookieByName(rec, cookies.SessionName) == nil {
		t.Fatalf("expected the admin to be signed in")
	}
}

func TestSetupHandler_Create_AlreadyCompleted(t *testing.T) {
	e := newTestEcho()
	sessions := &stubSessionService{}
	setup := &stubSetupService{
		createFn: func(context.Context, string, string, string) (*domain.User, error) {
			return nil, domain.ErrSetupCompleted
		},
	}
	h := NewSetupHandler(setup, NewAuthHandler(&stubAuthService{}, sessions, testIssuer, testLog))

	c, _ := jsonRequest(e, http.MethodPost, "/api/setup", `{"email":"root@example.com","password":"Str0ng!Pass#word"}`)
	if err := h.Create(c); !errors.Is(err, domain.ErrSetupCompleted) {
		t.Fatalf("expected ErrSetupCompleted, got %v", err)
	}
	if len(sessions.created) != 0 {
		t.Fatalf("no session expected")
	}
}

func TestSetupHandler_Create_BadEmail(t *testing.T) {
	e := newTestEcho()
	h := NewSetupHandler(&stubSetupService{}, NewAuthHandler(&stubAuthService{}, &stubSessionService{}, testIssuer, testLog))

	c, _ := jsonRequest(e, http.MethodPost, "/api/setup", `{"email":"not-an-email","password":"x"}`)
	var ve *domain.ValidationError
	if err := h.Create(c); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if ve.First() != "email must be a valid email" {
		t.Fatalf("unexpected message %q", ve.First())
	}
}
