// Package app assembles the process graph: database, repositories,
// services, Temporal client and the HTTP router. The api and worker
// binaries share the same core and differ only in what they start.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/dubforge-backend/internal/data/db"
	"github.com/yungbote/dubforge-backend/internal/data/repos"
	"github.com/yungbote/dubforge-backend/internal/handlers"
	"github.com/yungbote/dubforge-backend/internal/middleware"
	"github.com/yungbote/dubforge-backend/internal/pipeline"
	"github.com/yungbote/dubforge-backend/internal/platform/ffmpeg"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
	"github.com/yungbote/dubforge-backend/internal/server"
	"github.com/yungbote/dubforge-backend/internal/services"
	"github.com/yungbote/dubforge-backend/internal/temporalx"
)

type Services struct {
	Auth       services.AuthService
	Settings   services.SettingsService
	Storage    services.Storage
	Voices     services.VoiceCatalog
	TTS        services.TTSService
	Jobs       services.JobService
	Narrations services.NarrationService
}

type App struct {
	Log            *logger.Logger
	DB             *gorm.DB
	Cfg            Config
	Repos          *repos.Set
	Services       Services
	TemporalClient temporalsdkclient.Client
	Router         *gin.Engine
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	dbService, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	theDB := dbService.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	reposet := repos.NewSet(theDB, log)

	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init temporal: %w", err)
	}
	dispatcher, err := temporalx.NewDispatcher(log, tc)
	if err != nil {
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(log, cfg, reposet, dispatcher)
	if err != nil {
		log.Sync()
		return nil, err
	}

	authMW := middleware.NewAuthMiddleware(log, serviceset.Auth)
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:       handlers.NewAuthHandler(serviceset.Auth),
		AuthMiddleware:    authMW,
		JobsHandler:       handlers.NewJobsHandler(serviceset.Jobs),
		NarrationsHandler: handlers.NewNarrationsHandler(serviceset.Narrations),
		VoicesHandler:     handlers.NewVoicesHandler(serviceset.Voices),
		SettingsHandler:   handlers.NewSettingsHandler(serviceset.Settings),
	})

	return &App{
		Log:            log,
		DB:             theDB,
		Cfg:            cfg,
		Repos:          reposet,
		Services:       serviceset,
		TemporalClient: tc,
		Router:         router,
	}, nil
}

func wireServices(log *logger.Logger, cfg Config, reposet *repos.Set, dispatcher services.Dispatcher) (Services, error) {
	storage, err := services.NewStorage(log)
	if err != nil {
		return Services{}, fmt.Errorf("init storage: %w", err)
	}
	authService, err := services.NewAuthService(log, reposet.Users, cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return Services{}, fmt.Errorf("init auth: %w", err)
	}
	settingsService, err := services.NewSettingsService(log, reposet.Settings, cfg.EncryptionKey)
	if err != nil {
		return Services{}, fmt.Errorf("init settings: %w", err)
	}
	catalog, err := services.NewVoiceCatalog(log)
	if err != nil {
		return Services{}, fmt.Errorf("init voice catalog: %w", err)
	}

	tools := ffmpeg.New(log)
	ttsService := services.NewTTSService(log, catalog,
		services.NewPiperSynthesizer(log),
		services.NewAzureSynthesizer(log, settingsService, tools),
	)

	return Services{
		Auth:       authService,
		Settings:   settingsService,
		Storage:    storage,
		Voices:     catalog,
		TTS:        ttsService,
		Jobs:       services.NewJobService(log, reposet.Jobs, reposet.Narrations, storage, dispatcher),
		Narrations: services.NewNarrationService(log, reposet.Narrations, reposet.Jobs, storage, ttsService, dispatcher),
	}, nil
}

// BuildStages wires the worker-side pipeline on top of the shared core.
func (a *App) BuildStages() (*pipeline.Stages, error) {
	tools := ffmpeg.New(a.Log)
	if err := tools.AssertReady(context.Background()); err != nil {
		return nil, err
	}
	transcriber, err := services.NewTranscriber(a.Log, a.Services.Settings)
	if err != nil {
		return nil, fmt.Errorf("init transcriber: %w", err)
	}
	lease, err := services.NewLeaseService(a.Log)
	if err != nil {
		return nil, fmt.Errorf("init lease service: %w", err)
	}
	notifier := services.NewWebhookNotifier(a.Log)

	return pipeline.NewStages(
		a.Log,
		a.Repos.Jobs,
		a.Repos.Narrations,
		a.Services.Storage,
		tools,
		transcriber,
		a.Services.TTS,
		lease,
		notifier,
		pipeline.Config{},
	), nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.TemporalClient != nil {
		a.TemporalClient.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
