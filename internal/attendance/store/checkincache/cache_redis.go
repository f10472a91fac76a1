package checkincache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nfcattend/pkg/domain"
)

const keyPrefix = "attendance:checked_in:"

// RedisCache stores one expiring key per (day, user).
type RedisCache struct {
	client redis.UniversalClient
	grace  time.Duration
	now    func() time.Time
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithGrace overrides how long keys outlive their day. Non-positive values
// keep DefaultGrace, since a zero TTL would make the key permanent.
func WithGrace(d time.Duration) RedisOption {
	return func(c *RedisCache) {
		if d > 0 {
			c.grace = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RedisOption {
	return func(c *RedisCache) {
		c.now = now
	}
}

// NewRedis constructs a Redis-backed check-in cache.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client, grace: DefaultGrace, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func key(day domain.Day, userID string) string {
	return keyPrefix + day.String() + ":" + userID
}

// Seen reports whether the user is already marked for day.
func (c *RedisCache) Seen(ctx context.Context, day domain.Day, userID string) (bool, error) {
	n, err := c.client.Exists(ctx, key(day, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("check-in cache lookup: %w", err)
	}
	return n > 0, nil
}

// Remember marks the user for day until shortly after the day ends.
func (c *RedisCache) Remember(ctx context.Context, day domain.Day, userID string) error {
	ttl := ttlUntilEndOfDay(day, c.now().UTC(), c.grace)
	err := c.client.SetArgs(ctx, key(day, userID), "1", redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("check-in cache store: %w", err)
	}
	return nil
}
