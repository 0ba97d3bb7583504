package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/middleware"
	"github.com/yungbote/dubforge-backend/internal/services"
)

type NarrationsHandler struct {
	narrations services.NarrationService
}

func NewNarrationsHandler(narrations services.NarrationService) *NarrationsHandler {
	return &NarrationsHandler{narrations: narrations}
}

type createNarrationRequest struct {
	JobID *uuid.UUID `json:"job_id"`
	Text  string     `json:"text"`
	Voice string     `json:"voice"`
}

// POST /api/v1/narrations
func (h *NarrationsHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	var req createNarrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	n, err := h.narrations.Create(c.Request.Context(), services.CreateNarrationInput{
		UserID: userID,
		JobID:  req.JobID,
		Text:   req.Text,
		Voice:  req.Voice,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"narration": n})
}

// GET /api/v1/narrations
func (h *NarrationsHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	narrations, err := h.narrations.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"narrations": narrations})
}

// GET /api/v1/narrations/:id
func (h *NarrationsHandler) Get(c *gin.Context) {
	userID, narrationID, ok := h.ids(c)
	if !ok {
		return
	}
	n, err := h.narrations.Get(c.Request.Context(), userID, narrationID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"narration": n})
}

// POST /api/v1/narrations/:id/cancel
func (h *NarrationsHandler) Cancel(c *gin.Context) {
	h.mutate(c, h.narrations.Cancel)
}

// POST /api/v1/narrations/:id/retry
func (h *NarrationsHandler) Retry(c *gin.Context) {
	h.mutate(c, h.narrations.Retry)
}

// DELETE /api/v1/narrations/:id
func (h *NarrationsHandler) Delete(c *gin.Context) {
	userID, narrationID, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.narrations.Delete(c.Request.Context(), userID, narrationID); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/narrations/:id/audio
func (h *NarrationsHandler) DownloadAudio(c *gin.Context) {
	userID, narrationID, ok := h.ids(c)
	if !ok {
		return
	}
	rc, err := h.narrations.FetchAudio(c.Request.Context(), userID, narrationID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	defer rc.Close()
	streamDownload(c, rc, fmt.Sprintf("%s.mp3", narrationID), "audio/mpeg")
}

// POST /api/v1/narrations/:id/merge
func (h *NarrationsHandler) RequestMerge(c *gin.Context) {
	h.mutate(c, h.narrations.RequestMerge)
}

// POST /api/v1/narrations/:id/merge/cancel
func (h *NarrationsHandler) CancelMerge(c *gin.Context) {
	h.mutate(c, h.narrations.CancelMerge)
}

// POST /api/v1/narrations/:id/merge/retry
func (h *NarrationsHandler) RetryMerge(c *gin.Context) {
	h.mutate(c, h.narrations.RetryMerge)
}

// GET /api/v1/narrations/:id/video
func (h *NarrationsHandler) DownloadVideo(c *gin.Context) {
	userID, narrationID, ok := h.ids(c)
	if !ok {
		return
	}
	rc, err := h.narrations.FetchVideo(c.Request.Context(), userID, narrationID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	defer rc.Close()
	streamDownload(c, rc, fmt.Sprintf("%s.mp4", narrationID), "video/mp4")
}

func (h *NarrationsHandler) mutate(c *gin.Context, op func(context.Context, uuid.UUID, uuid.UUID) (*domain.Narration, error)) {
	userID, narrationID, ok := h.ids(c)
	if !ok {
		return
	}
	n, err := op(c.Request.Context(), userID, narrationID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"narration": n})
}

func (h *NarrationsHandler) ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return uuid.Nil, uuid.Nil, false
	}
	narrationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_narration_id", err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, narrationID, true
}
