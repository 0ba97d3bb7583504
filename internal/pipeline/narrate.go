package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/media/pcm"
	"github.com/yungbote/dubforge-backend/internal/media/srt"
	"github.com/yungbote/dubforge-backend/internal/media/timeline"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
)

// Narrate synthesizes speech for every cue of the job's subtitle track
// and lays it onto a track exactly as long as the source video, so the
// narration can later be muxed over the original video in place.
func (s *Stages) Narrate(ctx context.Context, narrationID uuid.UUID, attempt int) error {
	release, err := s.lease.Acquire(ctx, "narration:"+narrationID.String(), s.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("narration %s: %w", narrationID, err)
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
	if n.Status == domain.NarrationCanceled {
		s.log.Info("skipping canceled narration", "narration_id", narrationID)
		return nil
	}
	if !n.JobBacked() {
		return permanent("narration %s has no source job", narrationID)
	}

	job, err := s.jobs.GetByID(dbc, *n.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		return permanent("source job for narration %s not found", narrationID)
	}
	if job.Status != domain.JobCompleted || job.ResultSRTKey == "" {
		return permanent("source job %s has no subtitle result", job.ID)
	}
	if job.AudioDurationSeconds == nil || *job.AudioDurationSeconds <= 0 {
		return permanent("source job %s has no measured duration", job.ID)
	}

	touched, err := s.markNarrationProcessing(dbc, narrationID)
	if err != nil || !touched {
		return err
	}

	if err := s.narrateJob(ctx, n, job); err != nil {
		s.failNarration(ctx, n, attempt, err)
		return err
	}
	return nil
}

func (s *Stages) markNarrationProcessing(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	return s.narrations.UpdateFieldsUnlessStatus(dbc, id,
		[]domain.NarrationStatus{domain.NarrationCanceled},
		map[string]interface{}{
			"status":                domain.NarrationProcessing,
			"processing_started_at": time.Now(),
			"error_details":         "",
		})
}

func (s *Stages) failNarration(ctx context.Context, n *domain.Narration, attempt int, cause error) {
	if !lastAttempt(attempt) && !IsPermanent(cause) {
		return
	}
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	if _, err := s.narrations.UpdateFieldsUnlessStatus(dbc, n.ID,
		[]domain.NarrationStatus{domain.NarrationCanceled},
		map[string]interface{}{
			"status":              domain.NarrationFailed,
			"error_details":       cause.Error(),
			"processing_ended_at": time.Now(),
		}); err != nil {
		s.log.Error("failed to record narration failure", "narration_id", n.ID, "error", err)
	}
}

func (s *Stages) narrateJob(ctx context.Context, n *domain.Narration, job *domain.Job) error {
	r, err := s.storage.Fetch(ctx, job.ResultSRTKey)
	if err != nil {
		return fmt.Errorf("fetch subtitles: %w", err)
	}
	raw, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return fmt.Errorf("read subtitles: %w", err)
	}

	cues := srt.Parse(string(raw))
	if len(cues) == 0 {
		return permanent("subtitle track has no cues")
	}

	clips := make([]*pcm.Buffer, len(cues))
	speechMS := make([]int64, len(cues))
	sampleRate := 0
	for i, cue := range cues {
		if cue.Text == "" {
			continue
		}
		clip, err := s.tts.Synthesize(ctx, n.Voice, cue.Text)
		if err != nil {
			return fmt.Errorf("synthesize cue %d: %w", cue.Index, err)
		}
		clips[i] = clip
		speechMS[i] = clip.DurationMS()
		if sampleRate == 0 {
			sampleRate = clip.SampleRate
		}
	}
	if sampleRate == 0 {
		return permanent("subtitle track has no speakable text")
	}

	targetMS := int64(*job.AudioDurationSeconds * 1000)
	plan, err := timeline.BuildPlan(cues, speechMS, targetMS)
	if err != nil {
		return permanent("plan narration timeline: %v", err)
	}
	if plan.Speedup > 1 {
		s.log.Info("narration overflow resolved by speedup",
			"narration_id", n.ID, "speedup", plan.Speedup)
	}

	track, err := timeline.Assemble(plan, clips, sampleRate)
	if err != nil {
		return fmt.Errorf("assemble narration track: %w", err)
	}

	return s.storeNarrationAudio(ctx, n, track)
}

// storeNarrationAudio encodes the finished track to MP3, uploads it and
// completes the narration with a guarded write.
func (s *Stages) storeNarrationAudio(ctx context.Context, n *domain.Narration, track *pcm.Buffer) error {
	dir, cleanup, err := s.tools.WorkDir("narration")
	if err != nil {
		return err
	}
	defer cleanup()

	wavPath := filepath.Join(dir, "narration.wav")
	if err := pcm.WriteWAVFile(wavPath, track); err != nil {
		return fmt.Errorf("write narration wav: %w", err)
	}
	mp3Path := filepath.Join(dir, "narration.mp3")
	if err := s.tools.EncodeMP3(ctx, wavPath, mp3Path); err != nil {
		return err
	}

	resultKey := fmt.Sprintf("results/narrations/%s.mp3", n.ID)
	if err := s.storage.SaveFromFile(ctx, resultKey, mp3Path); err != nil {
		return fmt.Errorf("store narration audio: %w", err)
	}

	touched, err := s.narrations.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, n.ID,
		[]domain.NarrationStatus{domain.NarrationCanceled},
		map[string]interface{}{
			"status":              domain.NarrationCompleted,
			"result_audio_key":    resultKey,
			"processing_ended_at": time.Now(),
		})
	if err != nil {
		return err
	}
	if !touched {
		_ = s.storage.Delete(context.WithoutCancel(ctx), resultKey)
	}
	return nil
}

// DirectTTS synthesizes a standalone text narration. No timeline fitting
// applies; the track is as long as the speech.
func (s *Stages) DirectTTS(ctx context.Context, narrationID uuid.UUID, attempt int) error {
	release, err := s.lease.Acquire(ctx, "narration:"+narrationID.String(), s.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("narration %s: %w", narrationID, err)
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
	if n.Status == domain.NarrationCanceled {
		return nil
	}
	if n.TextContent == "" {
		return permanent("narration %s has no text", narrationID)
	}

	touched, err := s.markNarrationProcessing(dbc, narrationID)
	if err != nil || !touched {
		return err
	}

	track, err := s.tts.Synthesize(ctx, n.Voice, n.TextContent)
	if err != nil {
		err = fmt.Errorf("synthesize text: %w", err)
		s.failNarration(ctx, n, attempt, err)
		return err
	}
	if err := s.storeNarrationAudio(ctx, n, track); err != nil {
		s.failNarration(ctx, n, attempt, err)
		return err
	}
	return nil
}
