package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/dubforge-backend/internal/platform/envutil"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// ErrLeaseHeld is returned when another worker already owns the entity.
var ErrLeaseHeld = errors.New("lease already held")

// LeaseService hands out per-entity processing leases so two workers never
// run the same job concurrently. Leases expire on their own; a crashed
// worker frees its entity after TTL without any janitor.
type LeaseService interface {
	// Acquire takes the lease for key, returning a release func. The
	// release is token-checked so an expired lease reacquired by another
	// worker is never released by the first one.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type leaseService struct {
	log *logger.Logger
	rdb *redis.Client
}

// releaseScript deletes the lease only while the stored token still
// matches ours.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewLeaseService(log *logger.Logger) (LeaseService, error) {
	serviceLog := log.With("service", "LeaseService")
	addr := envutil.GetEnv("REDIS_ADDR", "localhost:6379", log)
	password := envutil.GetEnv("REDIS_PASSWORD", "", log)
	db := envutil.GetEnvAsInt("REDIS_DB", 0, log)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &leaseService{log: serviceLog, rdb: rdb}, nil
}

func (ls *leaseService) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if key == "" {
		return nil, fmt.Errorf("lease key required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	token := uuid.NewString()
	redisKey := "lease:" + key

	ok, err := ls.rdb.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %q: %w", key, err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	release := func(rctx context.Context) error {
		if _, err := releaseScript.Run(rctx, ls.rdb, []string{redisKey}, token).Result(); err != nil {
			ls.log.Warn("lease release failed", "key", key, "error", err)
			return err
		}
		return nil
	}
	return release, nil
}
