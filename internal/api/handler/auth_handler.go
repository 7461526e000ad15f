package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediastudio/studio-api/internal/api/cookies"
	"github.com/mediastudio/studio-api/internal/api/metrics"
	"github.com/mediastudio/studio-api/internal/api/middleware"
	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	sessions    ports.SessionService
	cookies     *cookies.Issuer
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, sessions ports.SessionService, issuer *cookies.Issuer, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions, cookies: issuer, log: log}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type authResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

type sessionResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type changePasswordResponse struct {
	Success         bool  `json:"success"`
	RevokedSessions int64 `json:"revokedSessions"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// Login authenticates a user and starts a session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		} else {
			metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	if err := h.startSession(c, user, "login"); err != nil {
		return err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, authResponse{Success: true, User: toUserResponse(user)})
}

// startSession issues a session for user and sets the session and CSRF cookies.
func (h *AuthHandler) startSession(c echo.Context, user *domain.User, source string) error {
	token, _, err := h.sessions.CreateSession(c.Request().Context(), user.ID, sessionMeta(c))
	if err != nil {
		return err
	}
	h.cookies.SetSession(c, token)
	if _, err := h.cookies.IssueCSRF(c); err != nil {
		return err
	}
	metrics.SessionsCreatedTotal.WithLabelValues(source).Inc()
	return nil
}

// Logout invalidates the current session. It always succeeds and always
// clears the cookies.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  successResponse
// @Failure      403  {object}  map[string]string
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if token := cookies.SessionToken(c); token != "" {
		if err := h.sessions.InvalidateSession(c.Request().Context(), token); err != nil {
			h.log.Warn().Err(err).Msg("logout: session invalidation failed")
		} else {
			metrics.SessionsRevokedTotal.Inc()
		}
	}
	h.cookies.Clear(c)
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

// Session returns the authenticated user and session expiry.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	sess := middleware.SessionFrom(c)
	if sess == nil {
		return domain.ErrUnauthenticated
	}
	return c.JSON(http.StatusOK, sessionResponse{User: toUserResponse(user), ExpiresAt: sess.ExpiresAt})
}

// CSRF re-issues the CSRF cookie.
//
// @Summary      Issue CSRF token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  csrfResponse
// @Router       /api/auth/csrf [get]
func (h *AuthHandler) CSRF(c echo.Context) error {
	token, err := h.cookies.IssueCSRF(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, csrfResponse{CSRFToken: token})
}

// ChangePassword replaces the password and revokes every other session.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  changePasswordResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/auth/password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.authService.ChangePassword(ctx, user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}

	var keep string
	if sess := middleware.SessionFrom(c); sess != nil {
		keep = sess.ID
	}
	revoked, err := h.sessions.InvalidateUserSessions(ctx, user.ID, keep)
	if err != nil {
		return err
	}
	metrics.SessionsRevokedTotal.Add(float64(revoked))
	return c.JSON(http.StatusOK, changePasswordResponse{Success: true, RevokedSessions: revoked})
}
