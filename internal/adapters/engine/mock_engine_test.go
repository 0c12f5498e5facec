package engine

import (
	"context"
	"isochrone-explorer/internal/domain"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEngineIsochroneContainsOrigin(t *testing.T) {
	ctx := context.Background()
	m := NewMockEngine()
	md := &domain.QueryMetadata{Zoom: 9, West: 39500, North: 48300, Width: 400, Height: 400}

	require.NoError(t, m.SetQuery(ctx, md))
	require.NoError(t, m.SetStopTrees(ctx, []byte("trees")))

	origin := domain.LatLon{Lat: 42.3551, Lon: -71.0656}
	p, err := m.LatLonToOriginPoint(origin)
	require.NoError(t, err)

	require.NoError(t, m.SetOrigin(ctx, []byte("surface"), p))
	require.NoError(t, m.GenerateSurface(ctx, 60))

	iso, err := m.Isochrone(ctx, 60)
	require.NoError(t, err)

	poly, ok := iso.Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.True(t, poly.Bound().Contains(origin.Point()))

	route, err := m.DestinationData(ctx, domain.GridPoint{X: p.X + 3, Y: p.Y - 4})
	require.NoError(t, err)
	assert.Equal(t, 7, route.TravelTime)
	assert.NotEmpty(t, route.Transitive)
}

func TestMockEngineRequiresGeneratedSurface(t *testing.T) {
	m := NewMockEngine()
	_, err := m.Isochrone(context.Background(), 60)
	assert.Error(t, err)
	_, err = m.DestinationData(context.Background(), domain.GridPoint{})
	assert.Error(t, err)
}
