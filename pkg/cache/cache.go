package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tourhub/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// TagCache is a redis-backed read cache with per-entity-type version
// tags. Every cached payload key embeds the current tag version, and
// every mutation bumps the tag, so readers can never observe a stale
// entry under the old version. Misses and redis failures degrade to the
// underlying read path; the cache is never authoritative.
type TagCache struct {
	rdb *redis.Client
	log *logger.Logger
	ttl time.Duration
}

func NewTagCache(rdb *redis.Client, log *logger.Logger, ttl time.Duration) *TagCache {
	return &TagCache{
		rdb: rdb,
		log: log,
		ttl: ttl,
	}
}

func tagKey(entity string) string {
	return "cache:tag:" + entity
}

// Version returns the current tag version for an entity type. A missing
// tag reads as version 0.
func (c *TagCache) Version(ctx context.Context, entity string) int64 {
	v, err := c.rdb.Get(ctx, tagKey(entity)).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		c.log.Warn("Cache tag read failed", "entity", entity, "error", err)
		return 0
	}
	return v
}

// Bump invalidates every cached payload of the entity type by moving
// its tag forward.
func (c *TagCache) Bump(ctx context.Context, entity string) {
	if err := c.rdb.Incr(ctx, tagKey(entity)).Err(); err != nil {
		c.log.Warn("Cache tag bump failed", "entity", entity, "error", err)
	}
}

func (c *TagCache) payloadKey(ctx context.Context, entity, key string) string {
	return fmt.Sprintf("cache:%s:v%d:%s", entity, c.Version(ctx, entity), key)
}

// GetJSON loads a cached payload into dest. Returns false on miss or
// any redis/decode failure.
func (c *TagCache) GetJSON(ctx context.Context, entity, key string, dest any) bool {
	val, err := c.rdb.Get(ctx, c.payloadKey(ctx, entity, key)).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.log.Warn("Cache read failed", "entity", entity, "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.log.Warn("Cache payload decode failed", "entity", entity, "key", key, "error", err)
		return false
	}
	return true
}

// SetJSON stores a payload under the entity's current tag version.
func (c *TagCache) SetJSON(ctx context.Context, entity, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("Cache payload encode failed", "entity", entity, "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.payloadKey(ctx, entity, key), data, c.ttl).Err(); err != nil {
		c.log.Warn("Cache write failed", "entity", entity, "key", key, "error", err)
	}
}
