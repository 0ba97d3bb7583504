package app

import (
	"time"

	"github.com/yungbote/dubforge-backend/internal/platform/envutil"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

type Config struct {
	JWTSecret     string
	TokenTTL      time.Duration
	EncryptionKey string
	Port          string
}

func LoadConfig(log *logger.Logger) Config {
	tokenTTLSeconds := envutil.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	return Config{
		JWTSecret:     envutil.GetEnv("JWT_SECRET", "", log),
		TokenTTL:      time.Duration(tokenTTLSeconds) * time.Second,
		EncryptionKey: envutil.GetEnv("ENCRYPTION_KEY", "", log),
		Port:          envutil.GetEnv("PORT", "8080", log),
	}
}
