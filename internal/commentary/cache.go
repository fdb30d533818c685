package commentary

import (
	"context"
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/redis"
)

// CachedCompleter answers repeated identical prompts from Redis within a TTL
type CachedCompleter struct {
	next   contracts.Completer
	cache  *redis.Cache
	model  string
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedCompleter wraps a completer; a nil cache or disabled Redis client makes it a pass-through
func NewCachedCompleter(next contracts.Completer, cache *redis.Cache, model string, ttl time.Duration, logger *logger.Logger) *CachedCompleter {
	return &CachedCompleter{
		next:   next,
		cache:  cache,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

// Complete implements contracts.Completer
func (c *CachedCompleter) Complete(ctx context.Context, messages []contracts.Message) (string, error) {
	if c.cache == nil {
		return c.next.Complete(ctx, messages)
	}

	parts := make([]string, 0, len(messages)*2)
	for _, m := range messages {
		parts = append(parts, m.Role, m.Content)
	}
	key := redis.CompletionKey(c.model, parts...)

	var cached string
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		// 캐시 장애는 요청을 막지 않음
		c.logger.WithError(err).Warn("Completion cache read failed")
	}
	if found {
		c.logger.WithField("key", key).Debug("Completion cache hit")
		return cached, nil
	}

	resp, err := c.next.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, resp, c.ttl); err != nil {
		c.logger.WithError(err).Warn("Completion cache write failed")
	}
	return resp, nil
}
