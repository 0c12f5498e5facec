package ports

import (
	"context"
	"isochrone-explorer/internal/domain"
)

// Contract for the remote routing/isochrone compute endpoint.
type ComputeClient interface {
	// Return the static query metadata, including transit network data.
	FetchMetadata(ctx context.Context) (*domain.QueryMetadata, error)
	// Return the opaque stop-trees payload.
	FetchStopTrees(ctx context.Context) ([]byte, error)
	// Return the opaque travel-time surface payload for one origin cell.
	FetchSurface(ctx context.Context, origin domain.GridPoint) ([]byte, error)
	// Return the opaque accessibility grid, or nil when none is configured.
	FetchGrid(ctx context.Context) ([]byte, error)
}
