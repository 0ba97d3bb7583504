package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/dubforge-backend/internal/app"
	"github.com/yungbote/dubforge-backend/internal/observability"
	"github.com/yungbote/dubforge-backend/internal/temporalx/temporalworker"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start worker: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	shutdown := observability.InitOTel(context.Background(), a.Log, observability.OtelConfig{
		ServiceName: "dubforge-worker",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	stages, err := a.BuildStages()
	if err != nil {
		a.Log.Error("Failed to wire pipeline stages", "error", err)
		os.Exit(1)
	}

	runner, err := temporalworker.NewRunner(a.Log, a.TemporalClient, stages)
	if err != nil {
		a.Log.Error("Failed to init Temporal worker", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		a.Log.Error("Temporal worker failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	a.Log.Info("Worker shutting down")
}
