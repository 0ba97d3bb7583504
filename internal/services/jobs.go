package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dubforge-backend/internal/data/repos"
	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// Dispatcher hands pipeline work to the task queue. It lives behind an
// interface so services never import the queue client directly.
type Dispatcher interface {
	DispatchTranscribe(ctx context.Context, jobID uuid.UUID) error
	DispatchNarrate(ctx context.Context, narrationID uuid.UUID) error
	DispatchDirectTTS(ctx context.Context, narrationID uuid.UUID) error
	DispatchMerge(ctx context.Context, narrationID uuid.UUID) error

	CancelTranscribe(ctx context.Context, jobID uuid.UUID) error
	CancelNarrate(ctx context.Context, narrationID uuid.UUID) error
	CancelMerge(ctx context.Context, narrationID uuid.UUID) error
}

var (
	ErrNotFound       = fmt.Errorf("not found")
	ErrInvalidState   = fmt.Errorf("operation not allowed in current state")
	ErrRetryExhausted = fmt.Errorf("retry limit reached")
	ErrValidation     = fmt.Errorf("validation failed")
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".flac": true, ".ogg": true, ".aac": true,
}

// MediaKindForFilename classifies an upload by extension.
func MediaKindForFilename(name string) (domain.MediaKind, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case videoExtensions[ext]:
		return domain.MediaVideo, nil
	case audioExtensions[ext]:
		return domain.MediaAudio, nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", ErrValidation, ext)
	}
}

type CreateJobInput struct {
	UserID           uuid.UUID
	OriginalFilename string
	Language         string
	CallbackURL      string
	Priority         int
	File             io.Reader
}

type JobService interface {
	Create(ctx context.Context, in CreateJobInput) (*domain.Job, error)
	Get(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, userID uuid.UUID, statuses []domain.JobStatus, limit, offset int) ([]*domain.Job, error)
	Cancel(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error)
	Retry(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error)
	Delete(ctx context.Context, userID, jobID uuid.UUID) error
	FetchResult(ctx context.Context, userID, jobID uuid.UUID) (io.ReadCloser, error)
}

type jobService struct {
	log        *logger.Logger
	jobRepo    repos.JobRepo
	narrRepo   repos.NarrationRepo
	storage    Storage
	dispatcher Dispatcher
}

func NewJobService(log *logger.Logger, jobRepo repos.JobRepo, narrRepo repos.NarrationRepo, storage Storage, dispatcher Dispatcher) JobService {
	return &jobService{
		log:        log.With("service", "JobService"),
		jobRepo:    jobRepo,
		narrRepo:   narrRepo,
		storage:    storage,
		dispatcher: dispatcher,
	}
}

func (js *jobService) Create(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	if in.File == nil {
		return nil, fmt.Errorf("%w: file required", ErrValidation)
	}
	kind, err := MediaKindForFilename(in.OriginalFilename)
	if err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority <= 0 {
		priority = 5
	}

	id := uuid.New()
	key := fmt.Sprintf("uploads/%s%s", id, strings.ToLower(filepath.Ext(in.OriginalFilename)))
	if err := js.storage.Save(ctx, key, in.File); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	job := &domain.Job{
		ID:               id,
		UserID:           in.UserID,
		OriginalFilename: in.OriginalFilename,
		StorageKey:       key,
		MediaKind:        kind,
		Status:           domain.JobPending,
		Priority:         priority,
		Language:         in.Language,
		CallbackURL:      in.CallbackURL,
	}
	if _, err := js.jobRepo.Create(dbctx.Context{Ctx: ctx}, job); err != nil {
		_ = js.storage.Delete(ctx, key)
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := js.dispatcher.DispatchTranscribe(ctx, job.ID); err != nil {
		js.log.Error("dispatch transcription failed", "job_id", job.ID, "error", err)
		_ = js.jobRepo.UpdateFields(dbctx.Context{Ctx: ctx}, job.ID, map[string]interface{}{
			"status":        domain.JobFailed,
			"error_details": fmt.Sprintf("dispatch failed: %v", err),
		})
		job.Status = domain.JobFailed
	}
	return job, nil
}

func (js *jobService) Get(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error) {
	job, err := js.jobRepo.GetByIDForUser(dbctx.Context{Ctx: ctx}, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

func (js *jobService) List(ctx context.Context, userID uuid.UUID, statuses []domain.JobStatus, limit, offset int) ([]*domain.Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return js.jobRepo.ListByUser(dbctx.Context{Ctx: ctx}, userID, statuses, limit, offset)
}

// Cancel flips the job to CANCELED from the request path and revokes any
// queued or running task. The pipeline's guarded writes keep a racing
// worker from overwriting the cancel.
func (js *jobService) Cancel(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error) {
	job, err := js.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Cancelable() {
		return nil, fmt.Errorf("%w: job is %s", ErrInvalidState, job.Status)
	}

	now := time.Now()
	if err := js.jobRepo.UpdateFields(dbctx.Context{Ctx: ctx}, job.ID, map[string]interface{}{
		"status":              domain.JobCanceled,
		"processing_ended_at": now,
	}); err != nil {
		return nil, err
	}
	if err := js.dispatcher.CancelTranscribe(ctx, job.ID); err != nil {
		js.log.Warn("task revoke failed", "job_id", job.ID, "error", err)
	}
	job.Status = domain.JobCanceled
	job.ProcessingEndedAt = &now
	return job, nil
}

// Retry requeues a FAILED job. The retry counter caps user-driven
// retries the same way the queue caps automatic ones.
func (js *jobService) Retry(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error) {
	job, err := js.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobFailed {
		return nil, fmt.Errorf("%w: only failed jobs can be retried, job is %s", ErrInvalidState, job.Status)
	}
	if job.RetryCount >= domain.MaxRetries {
		return nil, ErrRetryExhausted
	}

	if err := js.jobRepo.UpdateFields(dbctx.Context{Ctx: ctx}, job.ID, map[string]interface{}{
		"status":              domain.JobPending,
		"error_details":       "",
		"retry_count":         job.RetryCount + 1,
		"processing_ended_at": nil,
	}); err != nil {
		return nil, err
	}
	job.Status = domain.JobPending
	job.ErrorDetails = ""
	job.RetryCount++

	if err := js.dispatcher.DispatchTranscribe(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("dispatch retry: %w", err)
	}
	return job, nil
}

// Delete removes the job, its narration rows and every stored artifact.
// Active jobs must be canceled first.
func (js *jobService) Delete(ctx context.Context, userID, jobID uuid.UUID) error {
	job, err := js.Get(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if job.Status == domain.JobPreparing || job.Status == domain.JobProcessing {
		return fmt.Errorf("%w: cancel the job before deleting it", ErrInvalidState)
	}

	keys := []string{job.StorageKey}
	if job.ResultSRTKey != "" {
		keys = append(keys, job.ResultSRTKey)
	}
	if job.Narration != nil {
		if job.Narration.ResultAudioKey != "" {
			keys = append(keys, job.Narration.ResultAudioKey)
		}
		if job.Narration.ResultVideoKey != "" {
			keys = append(keys, job.Narration.ResultVideoKey)
		}
	}

	if err := js.jobRepo.Delete(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
		return err
	}
	for _, key := range keys {
		if err := js.storage.Delete(ctx, key); err != nil {
			js.log.Warn("orphaned storage object", "key", key, "error", err)
		}
	}
	return nil
}

func (js *jobService) FetchResult(ctx context.Context, userID, jobID uuid.UUID) (io.ReadCloser, error) {
	job, err := js.Get(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobCompleted || job.ResultSRTKey == "" {
		return nil, fmt.Errorf("%w: no subtitle result available", ErrInvalidState)
	}
	return js.storage.Fetch(ctx, job.ResultSRTKey)
}
