package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/dubforge-backend/internal/handlers"
	"github.com/yungbote/dubforge-backend/internal/middleware"
	"github.com/yungbote/dubforge-backend/internal/platform/envutil"
)

type RouterConfig struct {
	AuthHandler       *handlers.AuthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	JobsHandler       *handlers.JobsHandler
	NarrationsHandler *handlers.NarrationsHandler
	VoicesHandler     *handlers.VoicesHandler
	SettingsHandler   *handlers.SettingsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("dubforge-api"))

	origins := envutil.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", nil)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(origins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthz", handlers.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.POST("/auth/register", cfg.AuthHandler.Register)
		api.POST("/auth/login", cfg.AuthHandler.Login)
	}

	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	// Transcription jobs
	protected.POST("/transcriptions", cfg.JobsHandler.Create)
	protected.GET("/transcriptions", cfg.JobsHandler.List)
	protected.GET("/transcriptions/:id", cfg.JobsHandler.Get)
	protected.POST("/transcriptions/:id/cancel", cfg.JobsHandler.Cancel)
	protected.POST("/transcriptions/:id/retry", cfg.JobsHandler.Retry)
	protected.DELETE("/transcriptions/:id", cfg.JobsHandler.Delete)
	protected.GET("/transcriptions/:id/result", cfg.JobsHandler.DownloadResult)

	// Narrations
	protected.POST("/narrations", cfg.NarrationsHandler.Create)
	protected.GET("/narrations", cfg.NarrationsHandler.List)
	protected.GET("/narrations/:id", cfg.NarrationsHandler.Get)
	protected.POST("/narrations/:id/cancel", cfg.NarrationsHandler.Cancel)
	protected.POST("/narrations/:id/retry", cfg.NarrationsHandler.Retry)
	protected.DELETE("/narrations/:id", cfg.NarrationsHandler.Delete)
	protected.GET("/narrations/:id/audio", cfg.NarrationsHandler.DownloadAudio)
	protected.POST("/narrations/:id/merge", cfg.NarrationsHandler.RequestMerge)
	protected.POST("/narrations/:id/merge/cancel", cfg.NarrationsHandler.CancelMerge)
	protected.POST("/narrations/:id/merge/retry", cfg.NarrationsHandler.RetryMerge)
	protected.GET("/narrations/:id/video", cfg.NarrationsHandler.DownloadVideo)

	// Voices and provider settings
	protected.GET("/voices", cfg.VoicesHandler.List)
	protected.GET("/settings", cfg.SettingsHandler.List)
	protected.PUT("/settings/:key", cfg.SettingsHandler.Put)
	protected.DELETE("/settings/:key", cfg.SettingsHandler.Delete)

	return router
}
