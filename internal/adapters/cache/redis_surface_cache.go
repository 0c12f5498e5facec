package cache

import (
	"context"
	"errors"
	"fmt"
	"isochrone-explorer/internal/platform/obs"
	"isochrone-explorer/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSurfaceCache shares fetched surfaces between server instances.
type RedisSurfaceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSurfaceCache(client *redis.Client, ttl time.Duration) *RedisSurfaceCache {
	return &RedisSurfaceCache{client: client, ttl: ttl}
}

// OpenRedis parses a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("open redis: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open redis: ping: %w", err)
	}

	return client, nil
}

func (c *RedisSurfaceCache) Get(ctx context.Context, key ports.SurfaceKey) (_ []byte, _ bool, err error) {
	defer obs.Time(ctx, "surface.cache.Get")(&err)

	data, err := c.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get surface cache: %w", err)
	}
	return data, true, nil
}

func (c *RedisSurfaceCache) Put(ctx context.Context, key ports.SurfaceKey, data []byte) error {
	if err := c.client.Set(ctx, key.String(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("put surface cache: %w", err)
	}
	return nil
}
