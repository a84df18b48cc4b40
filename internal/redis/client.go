package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"limitedtracker/internal/config"
)

// New returns nil when Redis is disabled. Every helper in this package
// treats a nil client as a no-op.
func New(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
}

func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Ping(ctx).Err()
}
