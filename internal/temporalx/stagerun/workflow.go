// Package stagerun defines one workflow per pipeline stage. Each workflow
// is a thin retry shell around a single activity; the real work and all
// state transitions live in the pipeline package, so a workflow replay
// never touches the database.
package stagerun

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/dubforge-backend/internal/pipeline"
)

// Fixed retry delays per stage. BackoffCoefficient stays at 1 so a flaky
// provider gets the same breathing room on every attempt.
const (
	transcribeRetryDelay = 2 * time.Minute
	narrateRetryDelay    = 3 * time.Minute
	mergeRetryDelay      = 5 * time.Minute
)

func stageOptions(retryDelay time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        retryDelay,
			BackoffCoefficient:     1.0,
			MaximumAttempts:        int32(pipeline.MaxAttempts),
			NonRetryableErrorTypes: []string{PermanentFailure},
		},
	}
}

func TranscribeWorkflow(ctx workflow.Context, jobID string) error {
	ctx = workflow.WithActivityOptions(ctx, stageOptions(transcribeRetryDelay))
	return workflow.ExecuteActivity(ctx, ActivityTranscribe, jobID).Get(ctx, nil)
}

func NarrateWorkflow(ctx workflow.Context, narrationID string) error {
	ctx = workflow.WithActivityOptions(ctx, stageOptions(narrateRetryDelay))
	return workflow.ExecuteActivity(ctx, ActivityNarrate, narrationID).Get(ctx, nil)
}

func DirectTTSWorkflow(ctx workflow.Context, narrationID string) error {
	ctx = workflow.WithActivityOptions(ctx, stageOptions(narrateRetryDelay))
	return workflow.ExecuteActivity(ctx, ActivityDirectTTS, narrationID).Get(ctx, nil)
}

func MergeWorkflow(ctx workflow.Context, narrationID string) error {
	ctx = workflow.WithActivityOptions(ctx, stageOptions(mergeRetryDelay))
	return workflow.ExecuteActivity(ctx, ActivityMerge, narrationID).Get(ctx, nil)
}
