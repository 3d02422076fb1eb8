package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "LevelWatch/pkg/cache"
)

// memoryCache adapts the shared in-process LRU cache to the BytesCache
// surface the response caches use.
type memoryCache struct {
	svc pkgcache.Service
}

// NewMemoryCache returns an in-process BytesCache with LRU eviction,
// backing API response caching when no Redis is configured.
func NewMemoryCache() BytesCache {
	return &memoryCache{svc: pkgcache.NewMemoryCache()}
}

func (c *memoryCache) GetBytes(key string) ([]byte, bool, error) {
	var s string
	if err := c.svc.Get(context.Background(), key, &s); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(s), true, nil
}

func (c *memoryCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	return c.svc.Set(context.Background(), key, string(value), ttl)
}
