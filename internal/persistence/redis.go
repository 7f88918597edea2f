package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
)

// Redis wraps the go-redis client. Beyond health checks it carries the
// cross-replica tick lock for the compliance pass.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

const tickLockKey = "sla-engine:compliance:tick"

// AcquireTickLock takes the distributed single-flight lock for one
// compliance tick. The TTL bounds how long a crashed holder can block the
// next tick. Returns false when another replica holds the lock.
func (r *Redis) AcquireTickLock(ctx context.Context, ttl time.Duration) (bool, error) {
	if r == nil || r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, tickLockKey, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// ReleaseTickLock releases the tick lock.
func (r *Redis) ReleaseTickLock(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, tickLockKey).Err()
}
