package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CountKeyPrefix is the key prefix for per-post comment counts
	CountKeyPrefix = "comments:count:"

	// CountTTL bounds staleness if an invalidation is ever missed
	CountTTL = 5 * time.Minute
)

// CountCache caches per-post top-level comment counts so the public count
// endpoint doesn't hit Postgres on every page view.
// Using an interface enables testing with mocks.
type CountCache interface {
	// Get returns the cached count. found=false on miss or TTL expiry.
	Get(ctx context.Context, postSlug string) (count int64, found bool, err error)

	// Set stores the count with the standard TTL.
	Set(ctx context.Context, postSlug string, count int64) error

	// Invalidate drops the cached count. Called after a new top-level
	// comment lands so the next read repopulates from the database.
	Invalidate(ctx context.Context, postSlug string) error
}

// RedisCountCache implements CountCache on plain Redis strings.
type RedisCountCache struct {
	client *redis.Client
}

// NewCountCache creates a CountCache backed by Redis.
func NewCountCache(client *redis.Client) CountCache {
	return &RedisCountCache{client: client}
}

func countKey(postSlug string) string {
	return CountKeyPrefix + postSlug
}

func (c *RedisCountCache) Get(ctx context.Context, postSlug string) (int64, bool, error) {
	count, err := c.client.Get(ctx, countKey(postSlug)).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get comment count: %w", err)
	}
	return count, true, nil
}

func (c *RedisCountCache) Set(ctx context.Context, postSlug string, count int64) error {
	if err := c.client.Set(ctx, countKey(postSlug), count, CountTTL).Err(); err != nil {
		return fmt.Errorf("set comment count: %w", err)
	}
	return nil
}

func (c *RedisCountCache) Invalidate(ctx context.Context, postSlug string) error {
	if err := c.client.Del(ctx, countKey(postSlug)).Err(); err != nil {
		return fmt.Errorf("invalidate comment count: %w", err)
	}
	return nil
}
