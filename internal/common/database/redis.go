// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"contact-functions/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client used for short-lived counters.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client. No connection is made until first use.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// IncrWindow increments key and returns the new count together with the
// time left before the key expires. The expiry is set when the window opens
// and repaired if a previous caller died between INCR and EXPIRE.
func (c *RedisClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr %s: %w", key, err)
	}

	if count == 1 {
		if err := c.Client.PExpire(ctx, key, window).Err(); err != nil {
			return count, 0, fmt.Errorf("redis expire %s: %w", key, err)
		}
		return count, window, nil
	}

	ttl, err := c.Client.PTTL(ctx, key).Result()
	if err != nil {
		return count, 0, fmt.Errorf("redis pttl %s: %w", key, err)
	}
	if ttl < 0 {
		if err := c.Client.PExpire(ctx, key, window).Err(); err != nil {
			return count, 0, fmt.Errorf("redis expire %s: %w", key, err)
		}
		ttl = window
	}

	return count, ttl, nil
}
