package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix  = "clubhouse:catalog:"
	DefaultCacheTTL = 5 * time.Minute
)

// RedisClient is the subset of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache keeps per-scope-owner definition lists in Redis. Concurrent misses
// for the same owner share one store read. Redis failures fall back to the
// source.
type Cache struct {
	source  ScopeReader
	client  RedisClient
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type CacheOption func(*Cache)

func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// NewCache wraps source with a Redis read-through cache.
func NewCache(source ScopeReader, client RedisClient, opts ...CacheOption) *Cache {
	c := &Cache{source: source, client: client, ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func cacheKey(scope domain.Scope, owner *uuid.UUID) string {
	if owner == nil {
		return cacheKeyPrefix + string(scope)
	}
	return cacheKeyPrefix + string(scope) + ":" + owner.String()
}

func (c *Cache) ForScope(ctx context.Context, scope domain.Scope, owner *uuid.UUID) ([]domain.MembershipTypeDefinition, error) {
	key := cacheKey(scope, owner)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var defs []domain.MembershipTypeDefinition
		if jsonErr := json.Unmarshal(raw, &defs); jsonErr == nil {
			c.metrics.IncrementCacheLookup("hit")
			return defs, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable catalog cache entry", "key", key)
	case errors.Is(err, redis.Nil):
		c.metrics.IncrementCacheLookup("miss")
	default:
		c.metrics.IncrementCacheLookup("error")
		c.logger.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		defs, err := c.source.ForScope(ctx, scope, owner)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, defs)
		return defs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.MembershipTypeDefinition), nil
}

func (c *Cache) store(ctx context.Context, key string, defs []domain.MembershipTypeDefinition) {
	encoded, err := json.Marshal(defs)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to encode catalog cache entry", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed", "key", key, "error", err)
	}
}

func (c *Cache) Invalidate(ctx context.Context, scope domain.Scope, owner *uuid.UUID) error {
	key := cacheKey(scope, owner)
	c.group.Forget(key)
	return c.client.Del(ctx, key).Err()
}
