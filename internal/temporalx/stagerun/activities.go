package stagerun

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/dubforge-backend/internal/pipeline"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

type Activities struct {
	Log    *logger.Logger
	Stages *pipeline.Stages
}

func (a *Activities) Transcribe(ctx context.Context, jobID string) error {
	return a.run(ctx, jobID, a.Stages.Transcribe)
}

func (a *Activities) Narrate(ctx context.Context, narrationID string) error {
	return a.run(ctx, narrationID, a.Stages.Narrate)
}

func (a *Activities) DirectTTS(ctx context.Context, narrationID string) error {
	return a.run(ctx, narrationID, a.Stages.DirectTTS)
}

func (a *Activities) Merge(ctx context.Context, narrationID string) error {
	return a.run(ctx, narrationID, a.Stages.Merge)
}

func (a *Activities) run(ctx context.Context, rawID string, stage func(context.Context, uuid.UUID, int) error) error {
	if a == nil || a.Stages == nil {
		return fmt.Errorf("stagerun: activity not configured")
	}
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil || id == uuid.Nil {
		return temporal.NewNonRetryableApplicationError("invalid entity id", PermanentFailure, err)
	}

	stopHB := startHeartbeat(ctx)
	defer stopHB()

	// The stage decides whether this failure is terminal from the attempt
	// number, so it must match Temporal's own counter.
	attempt := int(activity.GetInfo(ctx).Attempt)
	if err := stage(ctx, id, attempt); err != nil {
		if pipeline.IsPermanent(err) {
			return temporal.NewNonRetryableApplicationError(err.Error(), PermanentFailure, err)
		}
		return err
	}
	return nil
}

func startHeartbeat(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		hb := time.NewTicker(10 * time.Second)
		defer hb.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-hb.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}
