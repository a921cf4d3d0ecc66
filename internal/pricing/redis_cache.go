package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"memecoin-signal-lab/internal/domain"
)

// DefaultRedisPrefix namespaces cache keys.
const DefaultRedisPrefix = "token_metrics:"

// RedisCache is a Cache backed by Redis string keys with server-side expiry.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a RedisCache. An empty prefix uses DefaultRedisPrefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.TokenMetrics, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %s: %w", c.prefix+key, err)
	}

	var m domain.TokenMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("unmarshal token metrics: %w", err)
	}
	return &m, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, m *domain.TokenMetrics, ttl time.Duration) error {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal token metrics: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", c.prefix+key, err)
	}
	return nil
}

var _ Cache = (*RedisCache)(nil)
