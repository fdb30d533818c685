package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/screener/pkg/config"
)

// Client wraps the Redis client; a disabled client turns every helper into a no-op
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New connects when REDIS_ENABLED is set, otherwise returns a disabled client
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{enabled: false}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{rdb: rdb, enabled: true}, nil
}

// Wrap uses an existing go-redis client (tests, shared pools)
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, enabled: rdb != nil}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled returns whether Redis is enabled
func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// Redis returns the underlying redis client
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
