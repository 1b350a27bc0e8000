package store

import (
	"context"
	"fmt"

	"github.com/sharedcode/jungledb"
	"github.com/sharedcode/jungledb/cache"
)

const defaultCacheCapacity = 2000

// cachedBackend fronts a jungledb.Backend's Get calls with an in-process
// MRU cache (spec's optional "read-through LRU cache fronting a persistent
// backend"), keyed by the string form of the backend key since cache.Cache
// requires a comparable key type and arbitrary key values aren't always
// directly comparable (e.g. a slice-valued key). Writes invalidate rather
// than update, keeping the cache strictly a read accelerator.
type cachedBackend struct {
	jungledb.Backend
	cache cache.Cache[string, any]
}

func newCachedBackend(inner jungledb.Backend) *cachedBackend {
	return &cachedBackend{
		Backend: inner,
		cache:   cache.NewCache[string, any](defaultCacheCapacity),
	}
}

func cacheKey(key any) string {
	return fmt.Sprintf("%#v", key)
}

func (c *cachedBackend) Get(ctx context.Context, key any) (any, bool, error) {
	ck := cacheKey(key)
	if v, ok := c.cache.Get(ck); ok {
		return v, true, nil
	}
	v, found, err := c.Backend.Get(ctx, key)
	if err != nil || !found {
		return v, found, err
	}
	c.cache.Set(ck, v)
	return v, found, nil
}

func (c *cachedBackend) Put(ctx context.Context, key, value any) error {
	c.cache.Delete(cacheKey(key))
	return c.Backend.Put(ctx, key, value)
}

func (c *cachedBackend) Remove(ctx context.Context, key any) error {
	c.cache.Delete(cacheKey(key))
	return c.Backend.Remove(ctx, key)
}

func (c *cachedBackend) Truncate(ctx context.Context) error {
	c.cache.Clear()
	return c.Backend.Truncate(ctx)
}

// ApplyCombined invalidates every key the batch touches (the whole cache on
// truncate) before delegating, since committed states reach the backend
// through here rather than through Put/Remove.
func (c *cachedBackend) ApplyCombined(ctx context.Context, tx jungledb.CombinedMember) (jungledb.CombinedApply, error) {
	if tx.CombinedTruncated() {
		c.cache.Clear()
	}
	for k := range tx.CombinedPuts() {
		c.cache.Delete(cacheKey(k))
	}
	for _, k := range tx.CombinedRemovals() {
		c.cache.Delete(cacheKey(k))
	}
	return c.Backend.ApplyCombined(ctx, tx)
}
