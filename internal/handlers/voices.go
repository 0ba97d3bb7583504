package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/dubforge-backend/internal/services"
)

type VoicesHandler struct {
	catalog services.VoiceCatalog
}

func NewVoicesHandler(catalog services.VoiceCatalog) *VoicesHandler {
	return &VoicesHandler{catalog: catalog}
}

// GET /api/v1/voices
func (h *VoicesHandler) List(c *gin.Context) {
	RespondOK(c, gin.H{
		"voices":  h.catalog.List(),
		"default": h.catalog.Default().Name,
	})
}
