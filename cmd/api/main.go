package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/dubforge-backend/internal/app"
	"github.com/yungbote/dubforge-backend/internal/observability"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start api: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	shutdown := observability.InitOTel(context.Background(), a.Log, observability.OtelConfig{
		ServiceName: "dubforge-api",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if shutdown != nil {
		defer func() { _ = shutdown(context.Background()) }()
	}

	a.Log.Info("API listening", "port", a.Cfg.Port)
	if err := a.Run(); err != nil {
		a.Log.Error("Server failed", "error", err)
	}
}
