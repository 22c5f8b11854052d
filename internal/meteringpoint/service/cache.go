package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ean_lookup_backend/internal/meteringpoint/transport"
	"ean_lookup_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const redisCachePrefix = "eanlookup:registry:"

// Cache stores registry answers per address. A hit with zero points is a
// cached "nothing registered here", distinct from a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]transport.MeteringPoint, bool)
	Set(ctx context.Context, key string, points []transport.MeteringPoint)
}

// cacheEntry holds cached metering points with expiration.
type cacheEntry struct {
	points    []transport.MeteringPoint
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-process cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]transport.MeteringPoint, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return entry.points, true
}

func (c *MemoryCache) Set(_ context.Context, key string, points []transport.MeteringPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		points:    points,
		expiresAt: c.now().Add(c.ttl),
	}
}

// RedisCache shares registry answers between processes through Redis.
// Redis failures degrade to cache misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache creates a Redis-backed cache with the given TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]transport.MeteringPoint, bool) {
	data, err := c.client.Get(ctx, redisCachePrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("registry cache read failed", "error", err)
		}
		return nil, false
	}

	var points []transport.MeteringPoint
	if err := json.Unmarshal(data, &points); err != nil {
		c.log.Warn("registry cache entry unreadable", "key", key, "error", err)
		return nil, false
	}
	return points, true
}

func (c *RedisCache) Set(ctx context.Context, key string, points []transport.MeteringPoint) {
	if points == nil {
		points = []transport.MeteringPoint{}
	}
	data, err := json.Marshal(points)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisCachePrefix+key, data, c.ttl).Err(); err != nil {
		c.log.Warn("registry cache write failed", "error", err)
	}
}
