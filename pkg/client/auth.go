package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type Session struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type APIKey struct {
	Service   string    `json:"service"`
	MaskedKey string    `json:"masked_key"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

type authResponse struct {
	Success bool `json:"success"`
	User    User `json:"user"`
}

// SetupRequired reports whether the initial administrator is missing.
func (c *Client) SetupRequired(ctx context.Context) (bool, error) {
	var resp struct {
		SetupRequired bool `json:"setupRequired"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/setup", nil, &resp); err != nil {
		return false, err
	}
	return resp.SetupRequired, nil
}

// Setup creates the initial administrator and signs in as them.
func (c *Client) Setup(ctx context.Context, email, password, name string) (*User, error) {
	req := map[string]string{"email": email, "password": password, "name": name}
	var resp authResponse
	if err := c.Do(ctx, http.MethodPost, "/api/setup", req, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Login signs in. The session and CSRF cookies land in the jar.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	req := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.Do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) Session(ctx context.Context) (*Session, error) {
	var resp Session
	if err := c.Do(ctx, http.MethodGet, "/api/auth/session", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshCSRF asks the API for a new CSRF cookie.
func (c *Client) RefreshCSRF(ctx context.Context) (string, error) {
	var resp struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/auth/csrf", nil, &resp); err != nil {
		return "", err
	}
	return resp.CSRFToken, nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	req := map[string]string{"currentPassword": current, "newPassword": next}
	return c.Do(ctx, http.MethodPost, "/api/auth/password", req, nil)
}

func (c *Client) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var resp struct {
		Keys []APIKey `json:"keys"`
	}
	if err := c.Do(ctx, http.MethodGet, "/api/settings/api-keys", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (c *Client) SaveAPIKey(ctx context.Context, service, key string) (*APIKey, error) {
	var resp struct {
		Key APIKey `json:"key"`
	}
	path := "/api/settings/api-keys/" + url.PathEscape(service)
	if err := c.Do(ctx, http.MethodPut, path, map[string]string{"apiKey": key}, &resp); err != nil {
		return nil, err
	}
	return &resp.Key, nil
}

func (c *Client) DeleteAPIKey(ctx context.Context, service string) error {
	return c.Do(ctx, http.MethodDelete, "/api/settings/api-keys/"+url.PathEscape(service), nil, nil)
}
