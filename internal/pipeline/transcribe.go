package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/media/pcm"
	"github.com/yungbote/dubforge-backend/internal/media/segment"
	"github.com/yungbote/dubforge-backend/internal/media/srt"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
)

// Transcribe runs the full subtitle stage for one job: fetch the upload,
// extract or decode its audio, split it at silence when it exceeds the
// provider budget, transcribe the chunks, and reassemble one SRT track.
func (s *Stages) Transcribe(ctx context.Context, jobID uuid.UUID, attempt int) error {
	release, err := s.lease.Acquire(ctx, "job:"+jobID.String(), s.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("job %s: %w", jobID, err)
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	dbc := dbctx.Context{Ctx: ctx}
	job, err := s.jobs.GetByID(dbc, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return permanent("job %s not found", jobID)
	}
	if job.Status == domain.JobCanceled {
		s.log.Info("skipping canceled job", "job_id", jobID)
		return nil
	}

	now := time.Now()
	touched, err := s.jobs.UpdateFieldsUnlessStatus(dbc, jobID,
		[]domain.JobStatus{domain.JobCanceled},
		map[string]interface{}{
			"status":                domain.JobPreparing,
			"processing_started_at": now,
			"error_details":         "",
		})
	if err != nil {
		return err
	}
	if !touched {
		return nil
	}

	if err := s.transcribeJob(ctx, job); err != nil {
		s.failJob(ctx, job, attempt, err)
		return err
	}
	return nil
}

func (s *Stages) failJob(ctx context.Context, job *domain.Job, attempt int, cause error) {
	if !lastAttempt(attempt) && !IsPermanent(cause) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	dbc := dbctx.Context{Ctx: ctx}
	now := time.Now()
	touched, err := s.jobs.UpdateFieldsUnlessStatus(dbc, job.ID,
		[]domain.JobStatus{domain.JobCanceled},
		map[string]interface{}{
			"status":              domain.JobFailed,
			"error_details":       cause.Error(),
			"processing_ended_at": now,
		})
	if err != nil {
		s.log.Error("failed to record job failure", "job_id", job.ID, "error", err)
		return
	}
	if touched {
		s.notifier.NotifyJob(ctx, job.CallbackURL, job.ID, string(domain.JobFailed), cause.Error())
	}
}

func (s *Stages) transcribeJob(ctx context.Context, job *domain.Job) error {
	dbc := dbctx.Context{Ctx: ctx}

	dir, cleanup, err := s.tools.WorkDir("transcribe")
	if err != nil {
		return err
	}
	defer cleanup()

	inputPath := filepath.Join(dir, "input"+filepath.Ext(job.StorageKey))
	if err := s.storage.FetchToFile(ctx, job.StorageKey, inputPath); err != nil {
		return fmt.Errorf("fetch upload: %w", err)
	}

	wavPath := filepath.Join(dir, "audio.wav")
	if err := s.tools.ExtractAudio(ctx, inputPath, wavPath); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}

	audio, err := pcm.ReadWAVFile(wavPath)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	if len(audio.Samples) == 0 {
		return permanent("upload contains no audio")
	}

	// The container duration is the narration target later on; a video
	// track can outlast its audio, so prefer the probe over the decoded
	// length.
	durationSec := float64(audio.DurationMS()) / 1000
	if ms, perr := s.tools.ProbeDurationMS(ctx, inputPath); perr == nil && ms > 0 {
		durationSec = float64(ms) / 1000
	} else if perr != nil {
		s.log.Warn("probe container duration failed", "job_id", job.ID, "error", perr)
	}

	touched, err := s.jobs.UpdateFieldsUnlessStatus(dbc, job.ID,
		[]domain.JobStatus{domain.JobCanceled},
		map[string]interface{}{
			"status":                 domain.JobProcessing,
			"audio_duration_seconds": durationSec,
		})
	if err != nil {
		return err
	}
	if !touched {
		return nil
	}

	chunks, err := segment.Split(audio, s.cfg.Segment)
	if err != nil {
		return fmt.Errorf("segment audio: %w", err)
	}

	fragments, failed, err := s.transcribeChunks(ctx, dir, wavPath, chunks, job.Language)
	if err != nil {
		return err
	}

	cues := srt.Assemble(fragments)
	if len(cues) == 0 && failed == 0 {
		return permanent("no speech detected in audio")
	}

	resultKey := fmt.Sprintf("results/%s.srt", job.ID)
	if err := s.storage.Save(ctx, resultKey, strings.NewReader(srt.Format(cues))); err != nil {
		return fmt.Errorf("store subtitle result: %w", err)
	}

	updates := map[string]interface{}{
		"status":              domain.JobCompleted,
		"result_srt_key":      resultKey,
		"processing_ended_at": time.Now(),
	}
	if failed > 0 {
		meta, _ := json.Marshal(map[string]interface{}{
			"chunks_total":  len(chunks),
			"chunks_failed": failed,
			"note":          "some chunks failed to transcribe; their spans have no cues",
		})
		updates["meta"] = meta
	}

	touched, err = s.jobs.UpdateFieldsUnlessStatus(dbc, job.ID,
		[]domain.JobStatus{domain.JobCanceled}, updates)
	if err != nil {
		return err
	}
	if touched {
		s.notifier.NotifyJob(ctx, job.CallbackURL, job.ID, string(domain.JobCompleted), "")
	} else {
		_ = s.storage.Delete(context.WithoutCancel(ctx), resultKey)
	}
	return nil
}

// transcribeChunks fans the chunks out to the provider with bounded
// concurrency. A failed chunk leaves an empty fragment so the remaining
// cues keep their true positions; only a full wipeout is an error.
func (s *Stages) transcribeChunks(ctx context.Context, dir, wavPath string, chunks []*pcm.Buffer, language string) ([]srt.Fragment, int, error) {
	base := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))

	fragments := make([]srt.Fragment, len(chunks))
	var (
		mu     sync.Mutex
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ChunkConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			chunkPath := wavPath
			if len(chunks) > 1 {
				chunkPath = filepath.Join(dir, fmt.Sprintf("%s_chunk_%04d.wav", base, i))
				if err := pcm.WriteWAVFile(chunkPath, chunk); err != nil {
					return fmt.Errorf("write chunk %d: %w", i, err)
				}
			}

			cues, err := s.transcriber.Transcribe(gctx, chunkPath, language)
			if err != nil {
				s.log.Warn("chunk transcription failed", "chunk", i, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				cues = nil
			}
			fragments[i] = srt.Fragment{Cues: cues, DurationMS: chunk.DurationMS()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if failed == len(chunks) {
		return nil, failed, fmt.Errorf("all %d chunks failed to transcribe", len(chunks))
	}
	return fragments, failed, nil
}
