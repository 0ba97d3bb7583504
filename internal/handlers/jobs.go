package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/middleware"
	"github.com/yungbote/dubforge-backend/internal/services"
)

type JobsHandler struct {
	jobs services.JobService
}

func NewJobsHandler(jobs services.JobService) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// POST /api/v1/transcriptions
func (h *JobsHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "validation_failed", fmt.Errorf("file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	defer file.Close()

	priority := 0
	if raw := strings.TrimSpace(c.PostForm("priority")); raw != "" {
		if priority, err = strconv.Atoi(raw); err != nil {
			RespondError(c, http.StatusUnprocessableEntity, "validation_failed", fmt.Errorf("priority must be an integer"))
			return
		}
	}

	job, err := h.jobs.Create(c.Request.Context(), services.CreateJobInput{
		UserID:           userID,
		OriginalFilename: fileHeader.Filename,
		Language:         strings.TrimSpace(c.PostForm("language")),
		CallbackURL:      strings.TrimSpace(c.PostForm("callback_url")),
		Priority:         priority,
		File:             file,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job": job})
}

// GET /api/v1/transcriptions
func (h *JobsHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}

	var statuses []domain.JobStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, domain.JobStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.jobs.List(c.Request.Context(), userID, statuses, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"jobs": jobs})
}

// GET /api/v1/transcriptions/:id
func (h *JobsHandler) Get(c *gin.Context) {
	userID, jobID, ok := h.ids(c)
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), userID, jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /api/v1/transcriptions/:id/cancel
func (h *JobsHandler) Cancel(c *gin.Context) {
	userID, jobID, ok := h.ids(c)
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(c.Request.Context(), userID, jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /api/v1/transcriptions/:id/retry
func (h *JobsHandler) Retry(c *gin.Context) {
	userID, jobID, ok := h.ids(c)
	if !ok {
		return
	}
	job, err := h.jobs.Retry(c.Request.Context(), userID, jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// DELETE /api/v1/transcriptions/:id
func (h *JobsHandler) Delete(c *gin.Context) {
	userID, jobID, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.jobs.Delete(c.Request.Context(), userID, jobID); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/transcriptions/:id/result
func (h *JobsHandler) DownloadResult(c *gin.Context) {
	userID, jobID, ok := h.ids(c)
	if !ok {
		return
	}
	rc, err := h.jobs.FetchResult(c.Request.Context(), userID, jobID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	defer rc.Close()
	streamDownload(c, rc, fmt.Sprintf("%s.srt", jobID), "application/x-subrip")
}

func (h *JobsHandler) ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return uuid.Nil, uuid.Nil, false
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_job_id", err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, jobID, true
}

func streamDownload(c *gin.Context, r io.Reader, filename, contentType string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, r)
}
