// Package cache provides a Redis-backed query-result cache for the search
// service. Concurrent identical queries collapse into one index lookup via
// singleflight. The core engine stays cache-free; this layer only wraps it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/rdejong/sitesearch/pkg/config"
	pkgredis "github.com/rdejong/sitesearch/pkg/redis"
)

const keyPrefix = "search:"

type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, limit int) ([]string, bool) {
	key := c.buildKey(query, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			c.misses.Add(1)
			return nil, false
		}
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	var urls []string
	if err := json.Unmarshal([]byte(data), &urls); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return urls, true
}

func (c *QueryCache) Set(ctx context.Context, query string, limit int, urls []string) {
	key := c.buildKey(query, limit)
	data, err := json.Marshal(urls)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for (query, limit) or computes,
// caches, and returns it. The second return value reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	computeFn func() ([]string, error),
) ([]string, bool, error) {
	if urls, ok := c.Get(ctx, query, limit); ok {
		return urls, true, nil
	}
	key := c.buildKey(query, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if urls, ok := c.Get(ctx, query, limit); ok {
			return urls, nil
		}
		urls, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, limit, urls)
		return urls, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]string), false, nil
}

// Invalidate drops every cached query result, e.g. after a rebuild swapped
// in a new index file.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(query string, limit int) string {
	normalized := strings.Join(strings.Fields(query), " ")
	raw := fmt.Sprintf("%s:limit=%d", normalized, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
