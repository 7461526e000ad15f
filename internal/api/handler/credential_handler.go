package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediastudio/studio-api/internal/api/metrics"
	"github.com/mediastudio/studio-api/internal/core/domain"
	"github.com/mediastudio/studio-api/internal/core/ports"
)

type CredentialHandler struct {
	credentials ports.CredentialService
}

func NewCredentialHandler(credentials ports.CredentialService) *CredentialHandler {
	return &CredentialHandler{credentials: credentials}
}

type serviceParam struct {
	Service string `json:"service" validate:"required,service"`
}

type saveAPIKeyRequest struct {
	APIKey string `json:"apiKey" validate:"required,max=4096"`
}

type apiKeysResponse struct {
	Keys []domain.CredentialView `json:"keys"`
}

type apiKeyResponse struct {
	Success bool                   `json:"success"`
	Key     *domain.CredentialView `json:"key"`
}

// List returns the caller's active API keys in masked form.
//
// @Summary      List API keys
// @Tags         settings
// @Produce      json
// @Success      200  {object}  apiKeysResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/settings/api-keys [get]
func (h *CredentialHandler) List(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	keys, err := h.credentials.ListAPIKeys(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, apiKeysResponse{Keys: keys})
}

// Save stores a new API key for a provider, replacing the active one.
//
// @Summary      Save API key
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        service  path      string             true  "Provider"
// @Param        body     body      saveAPIKeyRequest  true  "API key"
// @Success      200      {object}  apiKeyResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Router       /api/settings/api-keys/{service} [put]
func (h *CredentialHandler) Save(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	service, err := serviceFromPath(c)
	if err != nil {
		return err
	}
	var req saveAPIKeyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	view, err := h.credentials.SaveAPIKey(c.Request().Context(), user.ID, service, req.APIKey)
	if err != nil {
		return err
	}
	metrics.CredentialOperationsTotal.WithLabelValues("save", service).Inc()
	return c.JSON(http.StatusOK, apiKeyResponse{Success: true, Key: view})
}

// Delete deactivates the active API key of a provider.
//
// @Summary      Remove API key
// @Tags         settings
// @Produce      json
// @Param        service  path      string  true  "Provider"
// @Success      200      {object}  successResponse
// @Failure      401      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Router       /api/settings/api-keys/{service} [delete]
func (h *CredentialHandler) Delete(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	service, err := serviceFromPath(c)
	if err != nil {
		return err
	}

	if err := h.credentials.DeactivateAPIKey(c.Request().Context(), user.ID, service); err != nil {
		return err
	}
	metrics.CredentialOperationsTotal.WithLabelValues("deactivate", service).Inc()
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func serviceFromPath(c echo.Context) (string, error) {
	p := serviceParam{Service: c.Param("service")}
	if err := c.Validate(&p); err != nil {
		return "", err
	}
	return p.Service, nil
}
