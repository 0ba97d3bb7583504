package temporalx

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/dubforge-backend/internal/platform/logger"
	"github.com/yungbote/dubforge-backend/internal/services"
	"github.com/yungbote/dubforge-backend/internal/temporalx/stagerun"
)

// Dispatcher starts and cancels stage workflows. Workflow IDs are derived
// from the entity ID, so a duplicate dispatch attaches to the running
// execution instead of spawning a second one.
type Dispatcher struct {
	log *logger.Logger
	tc  temporalsdkclient.Client
	cfg Config
}

var _ services.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(log *logger.Logger, tc temporalsdkclient.Client) (*Dispatcher, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured (set TEMPORAL_ADDRESS)")
	}
	return &Dispatcher{
		log: log.With("service", "TemporalDispatcher"),
		tc:  tc,
		cfg: LoadConfig(),
	}, nil
}

func TranscribeWorkflowID(jobID uuid.UUID) string      { return "transcribe-" + jobID.String() }
func NarrateWorkflowID(narrationID uuid.UUID) string   { return "narrate-" + narrationID.String() }
func DirectTTSWorkflowID(narrationID uuid.UUID) string { return "tts-" + narrationID.String() }
func MergeWorkflowID(narrationID uuid.UUID) string     { return "merge-" + narrationID.String() }

func (d *Dispatcher) DispatchTranscribe(ctx context.Context, jobID uuid.UUID) error {
	return d.start(ctx, TranscribeWorkflowID(jobID), stagerun.TranscribeWorkflowName, jobID)
}

func (d *Dispatcher) DispatchNarrate(ctx context.Context, narrationID uuid.UUID) error {
	return d.start(ctx, NarrateWorkflowID(narrationID), stagerun.NarrateWorkflowName, narrationID)
}

func (d *Dispatcher) DispatchDirectTTS(ctx context.Context, narrationID uuid.UUID) error {
	return d.start(ctx, DirectTTSWorkflowID(narrationID), stagerun.DirectTTSWorkflowName, narrationID)
}

func (d *Dispatcher) DispatchMerge(ctx context.Context, narrationID uuid.UUID) error {
	return d.start(ctx, MergeWorkflowID(narrationID), stagerun.MergeWorkflowName, narrationID)
}

func (d *Dispatcher) CancelTranscribe(ctx context.Context, jobID uuid.UUID) error {
	return d.cancel(ctx, TranscribeWorkflowID(jobID))
}

// CancelNarrate revokes whichever synthesis workflow the narration runs
// under; only one of the two IDs ever exists.
func (d *Dispatcher) CancelNarrate(ctx context.Context, narrationID uuid.UUID) error {
	if err := d.cancel(ctx, NarrateWorkflowID(narrationID)); err != nil {
		return err
	}
	return d.cancel(ctx, DirectTTSWorkflowID(narrationID))
}

func (d *Dispatcher) CancelMerge(ctx context.Context, narrationID uuid.UUID) error {
	return d.cancel(ctx, MergeWorkflowID(narrationID))
}

func (d *Dispatcher) start(ctx context.Context, workflowID, workflowName string, entityID uuid.UUID) error {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: d.cfg.TaskQueue,
	}
	run, err := d.tc.ExecuteWorkflow(ctx, opts, workflowName, entityID.String())
	if err != nil {
		return fmt.Errorf("start %s: %w", workflowID, err)
	}
	d.log.Info("dispatched stage workflow", "workflow_id", workflowID, "run_id", run.GetRunID())
	return nil
}

func (d *Dispatcher) cancel(ctx context.Context, workflowID string) error {
	err := d.tc.CancelWorkflow(ctx, workflowID, "")
	if err == nil {
		return nil
	}
	var nf *serviceerror.NotFound
	if errors.As(err, &nf) {
		return nil
	}
	return fmt.Errorf("cancel %s: %w", workflowID, err)
}
