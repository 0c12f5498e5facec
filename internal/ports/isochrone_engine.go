package ports

import (
	"context"
	"encoding/json"
	"isochrone-explorer/internal/domain"

	"github.com/paulmach/orb/geojson"
)

// Contract for the external isochrone engine. One instance serves one
// session. Ingestion calls replace any previously held value. Implementations
// are not required to support concurrent mutation; callers sequence them.
type IsochroneEngine interface {
	// Map a coordinate onto the origin grid of the loaded metadata.
	LatLonToOriginPoint(c domain.LatLon) (domain.GridPoint, error)

	SetQuery(ctx context.Context, md *domain.QueryMetadata) error
	SetStopTrees(ctx context.Context, stopTrees []byte) error
	SetTransitiveNetwork(ctx context.Context, network json.RawMessage) error
	PutGrid(ctx context.Context, name string, grid []byte) error

	// Ingest the surface payload fetched for origin.
	SetOrigin(ctx context.Context, surface []byte, origin domain.GridPoint) error
	// Build the travel-time surface up to cutoffMinutes.
	GenerateSurface(ctx context.Context, cutoffMinutes int) error
	// Return the isochrone polygon for cutoffMinutes.
	Isochrone(ctx context.Context, cutoffMinutes int) (*geojson.Feature, error)
	// Return how much of the named grid is reachable within cutoffMinutes.
	Accessibility(ctx context.Context, gridName string, cutoffMinutes int) (float64, error)
	// Return the route breakdown from the current origin to destination.
	DestinationData(ctx context.Context, destination domain.GridPoint) (domain.DestinationRoute, error)
}
