package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediastudio/studio-api/internal/api/metrics"
	"github.com/mediastudio/studio-api/internal/core/ports"
)

type CronHandler struct {
	sessions    ports.SessionService
	credentials ports.CredentialService
}

func NewCronHandler(sessions ports.SessionService, credentials ports.CredentialService) *CronHandler {
	return &CronHandler{sessions: sessions, credentials: credentials}
}

type cleanupResponse struct {
	Success      bool  `json:"success"`
	DeletedCount int64 `json:"deletedCount"`
}

type migrateResponse struct {
	Success       bool `json:"success"`
	MigratedCount int  `json:"migratedCount"`
}

// CleanupSessions deletes expired and long-invalidated sessions.
//
// @Summary      Session cleanup
// @Tags         cron
// @Produce      json
// @Security     CronSecret
// @Success      200  {object}  cleanupResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/cron/cleanup-sessions [get]
func (h *CronHandler) CleanupSessions(c echo.Context) error {
	n, err := h.sessions.CleanupExpiredSessions(c.Request().Context())
	if err != nil {
		return err
	}
	metrics.SessionsCleanedTotal.Add(float64(n))
	return c.JSON(http.StatusOK, cleanupResponse{Success: true, DeletedCount: n})
}

// MigrateCredentials encrypts API keys still stored in plaintext.
//
// @Summary      Credential migration
// @Tags         cron
// @Produce      json
// @Security     CronSecret
// @Success      200  {object}  migrateResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/cron/migrate-credentials [get]
func (h *CronHandler) MigrateCredentials(c echo.Context) error {
	n, err := h.credentials.MigrateLegacyKeys(c.Request().Context())
	if err != nil {
		return err
	}
	metrics.CredentialOperationsTotal.WithLabelValues("migrate", "all").Add(float64(n))
	return c.JSON(http.StatusOK, migrateResponse{Success: true, MigratedCount: n})
}
