// Package redis implements the response cache on Redis. Completed
// non-streaming responses are stored as JSON under an exact request hash.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pyre-llm/pyre/internal/domain"
	"github.com/pyre-llm/pyre/internal/observability"
)

const keyPrefix = "pyre:response:"

// ResponseCache implements domain.ResponseCache using Redis.
type ResponseCache struct {
	client *redis.Client
}

// NewResponseCache creates a new Redis response cache adapter.
func NewResponseCache(client *redis.Client) *ResponseCache {
	return &ResponseCache{client: client}
}

// Get retrieves a cached message by request key.
func (c *ResponseCache) Get(ctx context.Context, key string) (*domain.Message, error) {
	logger := observability.FromContext(ctx)

	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		logger.Error("response cache lookup failed", observability.Error(err))
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}

	var msg domain.Message
	if err := msg.UnmarshalJSON(data); err != nil {
		logger.Warn("discarding undecodable cache entry",
			observability.String("key", key),
			observability.Error(err))
		return nil, domain.ErrCacheMiss
	}

	logger.Debug("response cache hit", observability.String("key", key))
	return &msg, nil
}

// Set stores a message under the request key with the given TTL.
func (c *ResponseCache) Set(ctx context.Context, key string, msg *domain.Message, ttl time.Duration) error {
	logger := observability.FromContext(ctx)

	data, err := msg.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		logger.Error("response cache store failed", observability.Error(err))
		return fmt.Errorf("cache store failed: %w", err)
	}

	logger.Debug("response cached",
		observability.String("key", key),
		observability.Duration("ttl", ttl))
	return nil
}
