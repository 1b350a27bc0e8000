package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is an L2 cache fronting a shared Redis instance, for sharing
// cached values across processes. It is a standalone type: a store's
// EnableLRUCache option uses only the in-process MRU cache, and nothing in
// this module constructs a RedisCache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an already-configured *redis.Client. ttl of zero
// means entries never expire on their own (eviction is Redis's own
// maxmemory policy's job).
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get looks up key, JSON-decoding the stored value into a new any. It
// reports false on a cache miss or decode failure (treated as a miss so a
// corrupt cache entry can't wedge a read path).
func (r *RedisCache) Get(ctx context.Context, key string) (any, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return v, true
}

// Set JSON-encodes value and stores it under key.
func (r *RedisCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

// Delete removes key from the cache.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
