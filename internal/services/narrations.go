package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dubforge-backend/internal/data/repos"
	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// MaxNarrationTextLen caps standalone synthesis input.
const MaxNarrationTextLen = 10000

// CreateNarrationInput accepts exactly one source: a completed job whose
// subtitles will be narrated, or raw text for standalone synthesis.
type CreateNarrationInput struct {
	UserID uuid.UUID
	JobID  *uuid.UUID
	Text   string
	Voice  string
}

type NarrationService interface {
	Create(ctx context.Context, in CreateNarrationInput) (*domain.Narration, error)
	Get(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Narration, error)
	Cancel(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error)
	Retry(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error)
	Delete(ctx context.Context, userID, narrationID uuid.UUID) error
	FetchAudio(ctx context.Context, userID, narrationID uuid.UUID) (io.ReadCloser, error)

	RequestMerge(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error)
	CancelMerge(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error)
	RetryMerge(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error)
	FetchVideo(ctx context.Context, userID, narrationID uuid.UUID) (io.ReadCloser, error)
}

type narrationService struct {
	log        *logger.Logger
	narrRepo   repos.NarrationRepo
	jobRepo    repos.JobRepo
	storage    Storage
	tts        TTSService
	dispatcher Dispatcher
}

func NewNarrationService(log *logger.Logger, narrRepo repos.NarrationRepo, jobRepo repos.JobRepo, storage Storage, tts TTSService, dispatcher Dispatcher) NarrationService {
	return &narrationService{
		log:        log.With("service", "NarrationService"),
		narrRepo:   narrRepo,
		jobRepo:    jobRepo,
		storage:    storage,
		tts:        tts,
		dispatcher: dispatcher,
	}
}

func (ns *narrationService) Create(ctx context.Context, in CreateNarrationInput) (*domain.Narration, error) {
	hasJob := in.JobID != nil && *in.JobID != uuid.Nil
	hasText := strings.TrimSpace(in.Text) != ""
	if hasJob == hasText {
		return nil, fmt.Errorf("%w: exactly one of job_id or text is required", ErrValidation)
	}
	if hasText && len(strings.TrimSpace(in.Text)) > MaxNarrationTextLen {
		return nil, fmt.Errorf("%w: text exceeds %d characters", ErrValidation, MaxNarrationTextLen)
	}

	voice, err := ns.tts.Resolve(in.Voice)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	n := &domain.Narration{
		ID:     uuid.New(),
		UserID: in.UserID,
		Voice:  voice.Name,
		Status: domain.NarrationPending,
	}

	if hasJob {
		job, err := ns.jobRepo.GetByIDForUser(dbc, *in.JobID, in.UserID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, ErrNotFound
		}
		if job.Status != domain.JobCompleted || job.ResultSRTKey == "" {
			return nil, fmt.Errorf("%w: job has no completed subtitle result", ErrInvalidState)
		}
		if existing, err := ns.narrRepo.GetByJobID(dbc, job.ID); err != nil {
			return nil, err
		} else if existing != nil && !existing.Status.Terminal() {
			return nil, fmt.Errorf("%w: a narration for this job is already in progress", ErrInvalidState)
		}
		n.JobID = &job.ID
	} else {
		n.TextContent = strings.TrimSpace(in.Text)
	}

	if _, err := ns.narrRepo.Create(dbc, n); err != nil {
		return nil, fmt.Errorf("create narration: %w", err)
	}

	var dispatchErr error
	if hasJob {
		dispatchErr = ns.dispatcher.DispatchNarrate(ctx, n.ID)
	} else {
		dispatchErr = ns.dispatcher.DispatchDirectTTS(ctx, n.ID)
	}
	if dispatchErr != nil {
		ns.log.Error("dispatch narration failed", "narration_id", n.ID, "error", dispatchErr)
		_ = ns.narrRepo.UpdateFields(dbc, n.ID, map[string]interface{}{
			"status":        domain.NarrationFailed,
			"error_details": fmt.Sprintf("dispatch failed: %v", dispatchErr),
		})
		n.Status = domain.NarrationFailed
	}
	return n, nil
}

func (ns *narrationService) Get(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error) {
	n, err := ns.narrRepo.GetByIDForUser(dbctx.Context{Ctx: ctx}, narrationID, userID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNotFound
	}
	return n, nil
}

func (ns *narrationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Narration, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return ns.narrRepo.ListByUser(dbctx.Context{Ctx: ctx}, userID, limit, offset)
}

func (ns *narrationService) Cancel(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error) {
	n, err := ns.Get(ctx, userID, narrationID)
	if err != nil {
		return nil, err
	}
	if !n.Status.Cancelable() {
		return nil, fmt.Errorf("%w: narration is %s", ErrInvalidState, n.Status)
	}

	now := time.Now()
	if err := ns.narrRepo.UpdateFields(dbctx.Context{Ctx: ctx}, n.ID, map[string]interface{}{
		"status":              domain.NarrationCanceled,
		"processing_ended_at": now,
	}); err != nil {
		return nil, err
	}
	if err := ns.dispatcher.CancelNarrate(ctx, n.ID); err != nil {
		ns.log.Warn("task revoke failed", "narration_id", n.ID, "error", err)
	}
	n.Status = domain.NarrationCanceled
	n.ProcessingEndedAt = &now
	return n, nil
}

func (ns *narrationService) Retry(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error) {
	n, err := ns.Get(ctx, userID, narrationID)
	if err != nil {
		return nil, err
	}
	if n.Status != domain.NarrationFailed {
		return nil, fmt.Errorf("%w: only failed narrations can be retried, narration is %s", ErrInvalidState, n.Status)
	}
	if n.RetryCount >= domain.MaxRetries {
		return nil, ErrRetryExhausted
	}

	if err := ns.narrRepo.UpdateFields(dbctx.Context{Ctx: ctx}, n.ID, map[string]interface{}{
		"status":              domain.NarrationPending,
		"error_details":       "",
		"retry_count":         n.RetryCount + 1,
		"processing_ended_at": nil,
	}); err != nil {
		return nil, err
	}
	n.Status = domain.NarrationPending
	n.ErrorDetails = ""
	n.RetryCount++

	var dispatchErr error
	if n.JobBacked() {
		dispatchErr = ns.dispatcher.DispatchNarrate(ctx, n.ID)
	} else {
		dispatchErr = ns.dispatcher.DispatchDirectTTS(ctx, n.ID)
	}
	if dispatchErr != nil {
		return nil, fmt.Errorf("dispatch retry: %w", dispatchErr)
	}
	return n, nil
}

func (ns *narrationService) Delete(ctx context.Context, userID, narrationID uuid.UUID) error {
	n, err := ns.Get(ctx, userID, narrationID)
	if err != nil {
		return err
	}
	if n.Status == domain.NarrationProcessing || n.MergeStatus == domain.MergeProcessing {
		return fmt.Errorf("%w: cancel the narration before deleting it", ErrInvalidState)
	}

	if err := ns.narrRepo.Delete(dbctx.Context{Ctx: ctx}, n.ID); err != nil {
		return err
	}
	for _, key := range []string{n.ResultAudioKey, n.ResultVideoKey} {
		if key == "" {
			continue
		}
		if err := ns.storage.Delete(ctx, key); err != nil {
			ns.log.Warn("orphaned storage object", "key", key, "error", err)
		}
	}
	return nil
}

func (ns *narrationService) FetchAudio(ctx context.Context, userID, narrationID uuid.UUID) (io.ReadCloser, error) {
	n, err := ns.Get(ctx, userID, narrationID)
	if err != nil {
		return nil, err
	}
	if n.Status != domain.NarrationCompleted || n.ResultAudioKey == "" {
		return nil, fmt.Errorf("%w: no narration audio available", ErrInvalidState)
	}
	return ns.storage.Fetch(ctx, n.ResultAudioKey)
}

// RequestMerge starts muxing a finished narration back onto its source
// video. Only job-backed narrations of video uploads qualify.
func (ns *narrationService) RequestMerge(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error) {
	n, err := ns.Get(ctx, userID, narrationID)
	if err != nil {
		return nil, err
	}
	if n.Status != domain.NarrationCompleted || !n.JobBacked() {
		return nil, fmt.Errorf("%w: merge needs a completed job-backed narration", ErrInvalidState)
	}
	if n.MergeStatus == domain.MergePending || n.MergeStatus == domain.MergeProcessing {
		return nil, fmt.Errorf("%w: merge already in progress", ErrInvalidState)
	}

	job, err := ns.jobRepo.GetByID(dbctx.Context{Ctx: ctx}, *n.JobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	if job.MediaKind != domain.MediaVideo {
		return nil, fmt.Errorf("%w: source upload is not a video", ErrInvalidState)
	}

	if err := ns.narrRepo.UpdateFields(dbctx.Context{Ctx: ctx}, n.ID, map[string]interface{}{
		"merge_status":        domain.MergePending,
		"merge_error_details": "",
	}); err != nil {
		return nil, err
	}
	n.MergeStatus = domain.MergePending
	n.MergeErrorDetails = ""

	if err := ns.dispatcher.DispatchMerge(ctx, n.ID); err != nil {
		return nil, fmt.Errorf("dispatch merge: %w", err)
	}
	return n, nil
}

func (ns *narrationService) CancelMerge(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error) {
	n, err := ns.Get(ctx, userID, narrationID)
	if err != nil {
		return nil, err
	}
	if !n.MergeStatus.Cancelable() {
		return nil, fmt.Errorf("%w: merge is %q", ErrInvalidState, n.MergeStatus)
	}

	if err := ns.narrRepo.UpdateFields(dbctx.Context{Ctx: ctx}, n.ID, map[string]interface{}{
		"merge_status": domain.MergeCanceled,
	}); err != nil {
		return nil, err
	}
	if err := ns.dispatcher.CancelMerge(ctx, n.ID); err != nil {
		ns.log.Warn("task revoke failed", "narration_id", n.ID, "error", err)
	}
	n.MergeStatus = domain.MergeCanceled
	return n, nil
}

func (ns *narrationService) RetryMerge(ctx context.Context, userID, narrationID uuid.UUID) (*domain.Narration, error) {
	n, err := ns.Get(ctx, userID, narrationID)
	if err != nil {
		return nil, err
	}
	if n.MergeStatus != domain.MergeFailed {
		return nil, fmt.Errorf("%w: only failed merges can be retried, merge is %q", ErrInvalidState, n.MergeStatus)
	}
	if n.MergeRetryCount >= domain.MaxRetries {
		return nil, ErrRetryExhausted
	}

	if err := ns.narrRepo.UpdateFields(dbctx.Context{Ctx: ctx}, n.ID, map[string]interface{}{
		"merge_status":        domain.MergePending,
		"merge_error_details": "",
		"merge_retry_count":   n.MergeRetryCount + 1,
	}); err != nil {
		return nil, err
	}
	n.MergeStatus = domain.MergePending
	n.MergeErrorDetails = ""
	n.MergeRetryCount++

	if err := ns.dispatcher.DispatchMerge(ctx, n.ID); err != nil {
		return nil, fmt.Errorf("dispatch merge retry: %w", err)
	}
	return n, nil
}

func (ns *narrationService) FetchVideo(ctx context.Context, userID, narrationID uuid.UUID) (io.ReadCloser, error) {
	n, err := ns.Get(ctx, userID, narrationID)
	if err != nil {
		return nil, err
	}
	if n.MergeStatus != domain.MergeCompleted || n.ResultVideoKey == "" {
		return nil, fmt.Errorf("%w: no merged video available", ErrInvalidState)
	}
	return ns.storage.Fetch(ctx, n.ResultVideoKey)
}
