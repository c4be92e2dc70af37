package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-results-api/pkg/config"
)

const (
	pingAttempts = 3
	pingBackoff  = 500 * time.Millisecond
)

// NewRedis returns a Redis client once the server answers PING. Startup races
// with the Redis container are absorbed by a short retry loop.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = ping(ctx, client); err == nil {
			return client, nil
		}
		logger.Warn("redis ping failed", zap.String("addr", addr), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == pingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(pingBackoff * time.Duration(attempt)):
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("ping redis %s: %w", addr, err)
}

func ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
