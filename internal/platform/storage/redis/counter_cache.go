package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ridersalliance/petition-likes/internal/domain"
)

// CounterCache keeps short-lived copies of like totals so hot GETs skip a
// store round-trip. The ledger is always the source of truth; anything
// unexpected here reads as a miss.
type CounterCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCounterCache(client *redis.Client, prefix string, ttl time.Duration) *CounterCache {
	if prefix == "" {
		prefix = "likes"
	}
	return &CounterCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *CounterCache) Get(ctx context.Context, slug domain.Slug) (int64, bool, error) {
	val, err := c.client.Get(ctx, c.key(slug)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis cache: get %s: %w", slug, err)
	}
	if val < 0 {
		return 0, false, nil
	}
	return val, true, nil
}

func (c *CounterCache) Set(ctx context.Context, slug domain.Slug, likes int64) error {
	if err := c.client.Set(ctx, c.key(slug), likes, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache: set %s: %w", slug, err)
	}
	return nil
}

func (c *CounterCache) key(slug domain.Slug) string {
	return fmt.Sprintf("%s:%s:total", c.prefix, slug)
}

var _ domain.CounterCache = (*CounterCache)(nil)
