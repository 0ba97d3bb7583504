// Package temporalworker hosts the long-running worker process that polls
// the stage task queue and executes pipeline activities.
package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/dubforge-backend/internal/pipeline"
	"github.com/yungbote/dubforge-backend/internal/platform/envutil"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
	"github.com/yungbote/dubforge-backend/internal/temporalx"
	"github.com/yungbote/dubforge-backend/internal/temporalx/stagerun"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

type Runner struct {
	log    *logger.Logger
	tc     temporalsdkclient.Client
	stages *pipeline.Stages
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, stages *pipeline.Stages) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if stages == nil {
		return nil, fmt.Errorf("temporal worker missing pipeline stages")
	}
	return &Runner{log: log, tc: tc, stages: stages}, nil
}

// Start brings the worker up, retrying while the Temporal server or the
// namespace is still coming online. It returns once the worker polls.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}

	cfg := temporalx.LoadConfig()
	if r.log != nil {
		r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}

	autoRegister := envutil.GetEnvAsBool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false, r.log)
	if autoRegister {
		if err := temporalx.EnsureNamespace(baseCtx(ctx), r.tc, cfg.Namespace, r.log); err != nil && r.log != nil {
			r.log.Warn("Temporal namespace ensure failed; worker will retry on start", "namespace", cfg.Namespace, "error", err)
		}
	}

	maxWait := time.Duration(envutil.GetEnvAsInt("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60, r.log)) * time.Second
	backoff := time.Duration(envutil.GetEnvAsInt("TEMPORAL_WORKER_START_BACKOFF_MS", 250, r.log)) * time.Millisecond

	deadline := time.Now().Add(maxWait)
	for attempt := 1; ; attempt++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		w := r.newWorker(cfg.TaskQueue)
		startErr := w.Start()
		if startErr == nil {
			if ctx != nil {
				go func() {
					<-ctx.Done()
					w.Stop()
				}()
			}
			if r.log != nil {
				r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
			}
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && autoRegister {
			_ = temporalx.EnsureNamespace(baseCtx(ctx), r.tc, cfg.Namespace, r.log)
		}

		if maxWait <= 0 || time.Now().After(deadline) {
			if errors.As(startErr, &nfe) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return startErr
		}
		if r.log != nil {
			r.log.Warn("Temporal worker failed to start; retrying", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempt", attempt, "error", startErr)
		}
		time.Sleep(backoff)
	}
}

func (r *Runner) newWorker(taskQueue string) worker.Worker {
	concurrency := envutil.GetEnvAsInt("WORKER_CONCURRENCY", 4, r.log)
	if concurrency < 1 {
		concurrency = 1
	}

	w := worker.New(r.tc, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	acts := &stagerun.Activities{Log: r.log, Stages: r.stages}

	w.RegisterWorkflowWithOptions(stagerun.TranscribeWorkflow, workflow.RegisterOptions{Name: stagerun.TranscribeWorkflowName})
	w.RegisterWorkflowWithOptions(stagerun.NarrateWorkflow, workflow.RegisterOptions{Name: stagerun.NarrateWorkflowName})
	w.RegisterWorkflowWithOptions(stagerun.DirectTTSWorkflow, workflow.RegisterOptions{Name: stagerun.DirectTTSWorkflowName})
	w.RegisterWorkflowWithOptions(stagerun.MergeWorkflow, workflow.RegisterOptions{Name: stagerun.MergeWorkflowName})

	w.RegisterActivityWithOptions(acts.Transcribe, activity.RegisterOptions{Name: stagerun.ActivityTranscribe})
	w.RegisterActivityWithOptions(acts.Narrate, activity.RegisterOptions{Name: stagerun.ActivityNarrate})
	w.RegisterActivityWithOptions(acts.DirectTTS, activity.RegisterOptions{Name: stagerun.ActivityDirectTTS})
	w.RegisterActivityWithOptions(acts.Merge, activity.RegisterOptions{Name: stagerun.ActivityMerge})
	return w
}

func baseCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
