// Package pipeline holds the worker-side stage implementations:
// transcription, narration synthesis, standalone TTS and the final video
// merge. Stages are plain functions over repos and media tools; queue
// plumbing stays outside.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/dubforge-backend/internal/data/repos"
	"github.com/yungbote/dubforge-backend/internal/media/segment"
	"github.com/yungbote/dubforge-backend/internal/platform/ffmpeg"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
	"github.com/yungbote/dubforge-backend/internal/services"
)

// MaxAttempts is the automatic retry budget per stage: the first run plus
// MaxRetries re-runs.
const MaxAttempts = 4

// PermanentError marks a failure that no retry can fix (bad input,
// canceled entity, unsatisfiable fit). The queue adapter translates it
// into a non-retryable failure.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func permanent(format string, args ...interface{}) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err carries a PermanentError anywhere in
// its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

type Config struct {
	// ChunkConcurrency bounds parallel chunk transcriptions per job.
	ChunkConcurrency int
	// LeaseTTL is how long a worker may hold an entity before a crashed
	// run frees it.
	LeaseTTL time.Duration
	// Segment overrides the chunking budgets; zero fields keep the
	// provider defaults.
	Segment segment.Options
}

func (c Config) withDefaults() Config {
	if c.ChunkConcurrency <= 0 {
		c.ChunkConcurrency = 4
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 30 * time.Minute
	}
	return c
}

// Stages bundles everything the worker needs to run any pipeline stage.
type Stages struct {
	log         *logger.Logger
	jobs        repos.JobRepo
	narrations  repos.NarrationRepo
	storage     services.Storage
	tools       ffmpeg.Tools
	transcriber services.Transcriber
	tts         services.TTSService
	lease       services.LeaseService
	notifier    services.Notifier
	cfg         Config
}

func NewStages(
	log *logger.Logger,
	jobs repos.JobRepo,
	narrations repos.NarrationRepo,
	storage services.Storage,
	tools ffmpeg.Tools,
	transcriber services.Transcriber,
	tts services.TTSService,
	lease services.LeaseService,
	notifier services.Notifier,
	cfg Config,
) *Stages {
	return &Stages{
		log:         log.With("service", "PipelineStages"),
		jobs:        jobs,
		narrations:  narrations,
		storage:     storage,
		tools:       tools,
		transcriber: transcriber,
		tts:         tts,
		lease:       lease,
		notifier:    notifier,
		cfg:         cfg.withDefaults(),
	}
}

// lastAttempt reports whether a failure on this attempt should be written
// as the entity's terminal FAILED state.
func lastAttempt(attempt int) bool {
	return attempt >= MaxAttempts
}
