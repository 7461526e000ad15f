package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediastudio/studio-api/internal/core/ports"
)

type SetupHandler struct {
	setup ports.SetupService
	auth  *AuthHandler
}

// NewSetupHandler shares session issuance with auth so that the new admin is
// signed in right away.
func NewSetupHandler(setup ports.SetupService, auth *AuthHandler) *SetupHandler {
	return &SetupHandler{setup: setup, auth: auth}
}

type setupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=100"`
}

type setupStatusResponse struct {
	SetupRequired bool `json:"setupRequired"`
}

// Status reports whether the initial administrator still has to be created.
//
// @Summary      Setup status
// @Tags         setup
// @Produce      json
// @Success      200  {object}  setupStatusResponse
// @Router       /api/setup [get]
func (h *SetupHandler) Status(c echo.Context) error {
	required, err := h.setup.SetupRequired(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, setupStatusResponse{SetupRequired: required})
}

// Create creates the initial administrator and signs them in.
//
// @Summary      Create initial admin
// @Tags         setup
// @Accept       json
// @Produce      json
// @Param        body  body      setupRequest  true  "Administrator account"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/setup [post]
func (h *SetupHandler) Create(c echo.Context) error {
	var req setupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.setup.CreateInitialAdmin(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	if err := h.auth.startSession(c, user, "setup"); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResponse{Success: true, User: toUserResponse(user)})
}
