package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/localnerve/casefile/internal/config"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthTimeout = 1500 * time.Millisecond

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	RateLimiter  string            `json:"rateLimiter"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthCheck pings the database, and Redis when the rate limiter is backed by it
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB) HealthCheckResult {
	result := HealthCheckResult{
		Status:      "healthy",
		RateLimiter: "memory",
		Details:     make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		log.Printf("Health check failed - database connection: %v", err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Status = "unhealthy"
		result.Database = "unreachable"
		result.Details["database_ping_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
		log.Printf("Health check failed - database ping: %v", err)
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	// Check Redis connectivity
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			result.Status = "unhealthy"
			result.RateLimiter = "unreachable"
			result.Details["redis_error"] = err.Error()
			if result.ErrorMessage == "" {
				result.ErrorMessage = fmt.Sprintf("Redis ping failed: %v", err)
			} else {
				result.ErrorMessage += fmt.Sprintf("; Redis ping failed: %v", err)
			}
			log.Printf("Health check failed - redis ping: %v", err)
		} else {
			result.RateLimiter = "redis"
			result.Details["redis_addr"] = cfg.RedisAddr
		}
	}

	return result
}
