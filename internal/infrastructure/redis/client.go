package redisinfra

import (
	"github.com/member-auth/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient creates the shared Redis client backing rate windows and the
// revocation list.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
