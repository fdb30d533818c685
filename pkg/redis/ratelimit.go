package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims, counts and records a request atomically
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, ARGV[5])
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	end
	return {0, 0}
`)

// RateLimiter implements sliding window rate limiting using Redis
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	seq    atomic.Uint64
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // Unique identifier (e.g., "llm")
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed under the rate limit
// Returns (allowed, remaining, error)
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		// If Redis is disabled, allow all requests
		return true, cfg.Limit, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := time.Now().UnixMilli()
	windowStart := now - cfg.Window.Milliseconds()
	// 같은 밀리초의 요청도 구분되도록 멤버에 시퀀스를 붙임
	member := fmt.Sprintf("%d-%d", now, r.seq.Add(1))

	result, err := slidingWindowScript.Run(ctx, r.client.Redis(), []string{key},
		now,
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
		member,
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	if len(result) != 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values", len(result))
	}
	allowed, _ := result[0].(int64)
	remaining, _ := result[1].(int64)

	return allowed == 1, int(remaining), nil
}

// Wait blocks until a request is allowed or context is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		// Wait before retrying
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			// Retry
		}
	}
}

// LLMRateLimit bounds completion requests across all screener instances
func LLMRateLimit(perSecond float64) RateLimitConfig {
	limit := int(perSecond)
	if limit < 1 {
		limit = 1
	}
	return RateLimitConfig{
		Key:    "llm",
		Limit:  limit,
		Window: time.Second,
	}
}
