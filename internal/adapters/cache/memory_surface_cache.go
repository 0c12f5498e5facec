package cache

import (
	"context"
	"errors"
	"fmt"
	"isochrone-explorer/internal/ports"
	"time"

	"github.com/bluele/gcache"
)

// MemorySurfaceCache keeps recently fetched surfaces in an in-process LRU.
type MemorySurfaceCache struct {
	lru gcache.Cache
}

func NewMemorySurfaceCache(size int, ttl time.Duration) *MemorySurfaceCache {
	return &MemorySurfaceCache{
		lru: gcache.New(size).
			LRU().
			Expiration(ttl).
			Build(),
	}
}

func (c *MemorySurfaceCache) Get(_ context.Context, key ports.SurfaceKey) ([]byte, bool, error) {
	v, err := c.lru.Get(key.String())
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get surface cache: %w", err)
	}

	data, ok := v.([]byte)
	if !ok {
		return nil, false, fmt.Errorf("get surface cache: unexpected value type %T", v)
	}
	return data, true, nil
}

func (c *MemorySurfaceCache) Put(_ context.Context, key ports.SurfaceKey, data []byte) error {
	if err := c.lru.Set(key.String(), data); err != nil {
		return fmt.Errorf("put surface cache: %w", err)
	}
	return nil
}
