// Package cache provides a Redis-backed read-through cache for published
// prompt versions. Published versions are immutable, so cached entries never
// go stale; TTL only bounds memory. The cache is optional: a nil *VersionCache
// is valid and degrades every operation to a no-op or miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HyxiaoGe/prompthub/metrics"
	"github.com/HyxiaoGe/prompthub/types"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultPrefix = "prompthub"

	// metricLabel identifies this cache in hit/miss counters.
	metricLabel = "version"
)

// VersionCache caches published prompt versions in Redis.
type VersionCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// Option configures a VersionCache.
type Option func(*VersionCache)

// WithTTL sets the time-to-live for cached versions.
// Default is 24 hours. Set to 0 for no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(c *VersionCache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys.
// Default is "prompthub".
func WithPrefix(prefix string) Option {
	return func(c *VersionCache) {
		c.prefix = prefix
	}
}

// NewVersionCache creates a Redis-backed version cache.
//
// Example:
//
//	cache := NewVersionCache(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(time.Hour),
//	)
func NewVersionCache(client *redis.Client, opts ...Option) *VersionCache {
	c := &VersionCache{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Enabled reports whether the cache is backed by a live client.
func (c *VersionCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached version, if present. Infrastructure failures degrade
// to a miss so the caller falls through to the store.
func (c *VersionCache) Get(ctx context.Context, promptID, version string) (*types.PromptVersion, bool) {
	if !c.Enabled() {
		return nil, false
	}

	data, err := c.client.Get(ctx, c.versionKey(promptID, version)).Bytes()
	if err != nil {
		// redis.Nil and transport errors both degrade to a miss.
		metrics.RecordCacheMiss(metricLabel)
		return nil, false
	}

	var v types.PromptVersion
	if err := json.Unmarshal(data, &v); err != nil {
		metrics.RecordCacheMiss(metricLabel)
		return nil, false
	}

	metrics.RecordCacheHit(metricLabel)
	return &v, true
}

// Put stores a published version. Best effort: write failures are dropped,
// the store remains the source of truth.
func (c *VersionCache) Put(ctx context.Context, v *types.PromptVersion) {
	if !c.Enabled() || v == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	c.client.Set(ctx, c.versionKey(v.PromptID, v.Version), data, c.ttl)
}

// Invalidate removes every cached version of a prompt. Used when a prompt is
// deleted; published versions themselves never change.
func (c *VersionCache) Invalidate(ctx context.Context, promptID string) error {
	if !c.Enabled() {
		return nil
	}

	pattern := c.versionKey(promptID, "*")
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// versionKey generates the Redis key for a prompt version.
func (c *VersionCache) versionKey(promptID, version string) string {
	return fmt.Sprintf("%s:version:%s:%s", c.prefix, promptID, version)
}
