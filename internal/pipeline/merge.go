package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
)

// Merge muxes a completed narration over its job's original video. The
// video stream is copied untouched; only the audio is re-encoded.
func (s *Stages) Merge(ctx context.Context, narrationID uuid.UUID, attempt int) error {
	release, err := s.lease.Acquire(ctx, "merge:"+narrationID.String(), s.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("merge %s: %w", narrationID, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	dbc := dbctx.Context{Ctx: ctx}
	n, err := s.narrations.GetByID(dbc, narrationID)
	if err != nil {
		return err
	}
	if n == nil {
		return permanent("narration %s not found", narrationID)
	}
	if n.MergeStatus == domain.MergeCanceled {
		s.log.Info("skipping canceled merge", "narration_id", narrationID)
		return nil
	}
	if n.Status != domain.NarrationCompleted || n.ResultAudioKey == "" {
		return permanent("narration %s has no audio to merge", narrationID)
	}
	if !n.JobBacked() {
		return permanent("narration %s has no source video", narrationID)
	}

	job, err := s.jobs.GetByID(dbc, *n.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		return permanent("source job for narration %s not found", narrationID)
	}
	if job.MediaKind != domain.MediaVideo {
		return permanent("source upload %s is not a video", job.ID)
	}

	touched, err := s.narrations.UpdateFieldsUnlessMergeStatus(dbc, narrationID,
		[]domain.MergeStatus{domain.MergeCanceled},
		map[string]interface{}{
			"merge_status":        domain.MergeProcessing,
			"merge_error_details": "",
		})
	if err != nil {
		return err
	}
	if !touched {
		return nil
	}

	if err := s.mergeNarration(ctx, n, job); err != nil {
		s.failMerge(ctx, n, attempt, err)
		return err
	}
	return nil
}

func (s *Stages) failMerge(ctx context.Context, n *domain.Narration, attempt int, cause error) {
	if !lastAttempt(attempt) && !IsPermanent(cause) {
		return
	}
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	if _, err := s.narrations.UpdateFieldsUnlessMergeStatus(dbc, n.ID,
		[]domain.MergeStatus{domain.MergeCanceled},
		map[string]interface{}{
			"merge_status":        domain.MergeFailed,
			"merge_error_details": cause.Error(),
		}); err != nil {
		s.log.Error("failed to record merge failure", "narration_id", n.ID, "error", err)
	}
}

func (s *Stages) mergeNarration(ctx context.Context, n *domain.Narration, job *domain.Job) error {
	dir, cleanup, err := s.tools.WorkDir("merge")
	if err != nil {
		return err
	}
	defer cleanup()

	videoPath := filepath.Join(dir, "video"+filepath.Ext(job.StorageKey))
	if err := s.storage.FetchToFile(ctx, job.StorageKey, videoPath); err != nil {
		return fmt.Errorf("fetch video: %w", err)
	}
	audioPath := filepath.Join(dir, "narration"+filepath.Ext(n.ResultAudioKey))
	if err := s.storage.FetchToFile(ctx, n.ResultAudioKey, audioPath); err != nil {
		return fmt.Errorf("fetch narration audio: %w", err)
	}

	outPath := filepath.Join(dir, "merged.mp4")
	if err := s.tools.Merge(ctx, videoPath, audioPath, outPath); err != nil {
		return err
	}

	resultKey := fmt.Sprintf("results/merged/%s.mp4", n.ID)
	if err := s.storage.SaveFromFile(ctx, resultKey, outPath); err != nil {
		return fmt.Errorf("store merged video: %w", err)
	}

	touched, err := s.narrations.UpdateFieldsUnlessMergeStatus(dbctx.Context{Ctx: ctx}, n.ID,
		[]domain.MergeStatus{domain.MergeCanceled},
		map[string]interface{}{
			"merge_status":     domain.MergeCompleted,
			"result_video_key": resultKey,
			"updated_at":       time.Now(),
		})
	if err != nil {
		return err
	}
	if !touched {
		_ = s.storage.Delete(context.WithoutCancel(ctx), resultKey)
	}
	return nil
}
