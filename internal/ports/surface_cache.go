package ports

import (
	"context"
	"fmt"
)

// Identifies a cached per-origin surface payload.
type SurfaceKey struct {
	Fingerprint string
	X, Y        int
}

func (k SurfaceKey) String() string {
	return fmt.Sprintf("surface:%s:%d:%d", k.Fingerprint, k.X, k.Y)
}

// Short-lived store for surface payloads. Get reports ok=false on a miss.
type SurfaceCache interface {
	Get(ctx context.Context, key SurfaceKey) (data []byte, ok bool, err error)
	Put(ctx context.Context, key SurfaceKey, data []byte) error
}
