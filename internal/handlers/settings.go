package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dubforge-backend/internal/services"
)

// Only provider credentials live in settings; arbitrary keys are refused.
var allowedSettingKeys = map[string]bool{
	services.SettingTranscriberAPIKey: true,
	services.SettingAzureTTSKey:       true,
}

type SettingsHandler struct {
	settings services.SettingsService
}

func NewSettingsHandler(settings services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GET /api/v1/settings
// Values are write-only; only presence is reported.
func (h *SettingsHandler) List(c *gin.Context) {
	configured := map[string]bool{}
	for key := range allowedSettingKeys {
		value, err := h.settings.Get(c.Request.Context(), key)
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "internal_error", err)
			return
		}
		configured[key] = value != ""
	}
	RespondOK(c, gin.H{"settings": configured})
}

type putSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

// PUT /api/v1/settings/:key
func (h *SettingsHandler) Put(c *gin.Context) {
	key := c.Param("key")
	if !allowedSettingKeys[key] {
		RespondError(c, http.StatusNotFound, "unknown_setting", fmt.Errorf("unknown setting %q", key))
		return
	}
	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.settings.Set(c.Request.Context(), key, req.Value); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondOK(c, gin.H{"key": key})
}

// DELETE /api/v1/settings/:key
func (h *SettingsHandler) Delete(c *gin.Context) {
	key := c.Param("key")
	if !allowedSettingKeys[key] {
		RespondError(c, http.StatusNotFound, "unknown_setting", fmt.Errorf("unknown setting %q", key))
		return
	}
	if err := h.settings.Delete(c.Request.Context(), key); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	c.Status(http.StatusNoContent)
}
