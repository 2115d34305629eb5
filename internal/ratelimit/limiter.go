package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/localnerve/casefile/internal/config"
)

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts hits per key in fixed windows
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// New returns a Redis-backed limiter when REDIS_ADDR is configured, otherwise an in-process one
func New(cfg *config.Config) Limiter {
	if cfg.RedisAddr != "" {
		limiter, err := NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
		if err == nil {
			log.Printf("Rate limiting credential endpoints through redis at %s", cfg.RedisAddr)
			return limiter
		}
		log.Printf("Redis rate limiter unavailable, falling back to memory: %v", err)
	}
	return NewMemoryLimiter(MemoryConfig{})
}
