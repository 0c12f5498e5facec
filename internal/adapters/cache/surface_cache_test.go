package cache

import (
	"context"
	"isochrone-explorer/internal/ports"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySurfaceCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemorySurfaceCache(2, time.Minute)

	a := ports.SurfaceKey{Fingerprint: "fp", X: 1, Y: 2}
	b := ports.SurfaceKey{Fingerprint: "fp", X: 3, Y: 4}
	d := ports.SurfaceKey{Fingerprint: "fp", X: 5, Y: 6}

	_, ok, err := c.Get(ctx, a)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, a, []byte("surface-a")))
	require.NoError(t, c.Put(ctx, b, []byte("surface-b")))

	data, ok, err := c.Get(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "surface-a", string(data))

	// a was just used, so b is evicted.
	require.NoError(t, c.Put(ctx, d, []byte("surface-d")))
	_, ok, _ = c.Get(ctx, b)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, a)
	assert.True(t, ok)
}

func TestRedisSurfaceCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	client, err := OpenRedis(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisSurfaceCache(client, 10*time.Minute)
	key := ports.SurfaceKey{Fingerprint: "abc", X: 161, Y: 181}

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, key, []byte{0x00, 0xff, 0x10}))

	data, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0xff, 0x10}, data)
	assert.True(t, mr.Exists("surface:abc:161:181"))

	mr.FastForward(11 * time.Minute)
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSurfaceCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	c := NewRedisSurfaceCache(client, time.Minute)
	_, _, err := c.Get(context.Background(), ports.SurfaceKey{Fingerprint: "x"})
	assert.Error(t, err)
}
