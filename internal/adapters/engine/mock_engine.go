package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"isochrone-explorer/internal/domain"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MockEngine is an in-memory IsochroneEngine with deterministic answers. It
// is used by tests and when no engine sidecar is configured.
//
// The isochrone is a square of cutoff/5 cells around the origin cell, the
// accessibility is the grid size scaled by cutoff/60, and routes are a
// single walk leg whose time is the manhattan cell distance.
type MockEngine struct {
	mu sync.Mutex

	Metadata   *domain.QueryMetadata
	StopTrees  []byte
	Transitive json.RawMessage
	Grids      map[string][]byte

	Origin    *domain.GridPoint
	Surface   []byte
	Generated int

	// Calls records the mutating calls in order, e.g. "SetOrigin".
	Calls []string
	// Fail makes the named call return an error.
	Fail map[string]error
}

func NewMockEngine() *MockEngine {
	return &MockEngine{Grids: map[string][]byte{}, Fail: map[string]error{}}
}

func (m *MockEngine) record(call string) error {
	m.Calls = append(m.Calls, call)
	if err := m.Fail[call]; err != nil {
		return err
	}
	return nil
}

func (m *MockEngine) LatLonToOriginPoint(c domain.LatLon) (domain.GridPoint, error) {
	m.mu.Lock()
	md := m.Metadata
	m.mu.Unlock()

	return md.OriginPoint(c)
}

func (m *MockEngine) SetQuery(_ context.Context, md *domain.QueryMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetQuery"); err != nil {
		return err
	}
	m.Metadata = md
	return nil
}

func (m *MockEngine) SetStopTrees(_ context.Context, stopTrees []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetStopTrees"); err != nil {
		return err
	}
	m.StopTrees = stopTrees
	return nil
}

func (m *MockEngine) SetTransitiveNetwork(_ context.Context, network json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetTransitiveNetwork"); err != nil {
		return err
	}
	m.Transitive = network
	return nil
}

func (m *MockEngine) PutGrid(_ context.Context, name string, grid []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("PutGrid"); err != nil {
		return err
	}
	m.Grids[name] = grid
	return nil
}

func (m *MockEngine) SetOrigin(_ context.Context, surface []byte, origin domain.GridPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetOrigin"); err != nil {
		return err
	}
	if m.StopTrees == nil {
		return errors.New("mock engine: stop trees not loaded")
	}
	m.Origin = &origin
	m.Surface = surface
	m.Generated = 0
	return nil
}

func (m *MockEngine) GenerateSurface(_ context.Context, cutoffMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GenerateSurface"); err != nil {
		return err
	}
	if m.Origin == nil {
		return errors.New("mock engine: origin not set")
	}
	m.Generated = cutoffMinutes
	return nil
}

func (m *MockEngine) Isochrone(_ context.Context, cutoffMinutes int) (*geojson.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Isochrone"); err != nil {
		return nil, err
	}
	if m.Generated == 0 {
		return nil, errors.New("mock engine: surface not generated")
	}

	r := cutoffMinutes / 5
	o := *m.Origin
	corners := []domain.GridPoint{
		{X: o.X - r, Y: o.Y - r},
		{X: o.X + r, Y: o.Y - r},
		{X: o.X + r, Y: o.Y + r},
		{X: o.X - r, Y: o.Y + r},
		{X: o.X - r, Y: o.Y - r},
	}
	ring := make(orb.Ring, 0, len(corners))
	for _, c := range corners {
		ring = append(ring, m.Metadata.CellCenter(c).Point())
	}

	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["time"] = cutoffMinutes * 60
	return f, nil
}

func (m *MockEngine) Accessibility(_ context.Context, gridName string, cutoffMinutes int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Accessibility"); err != nil {
		return 0, err
	}
	grid, ok := m.Grids[gridName]
	if !ok {
		return 0, fmt.Errorf("mock engine: grid %q not loaded", gridName)
	}
	if m.Generated == 0 {
		return 0, errors.New("mock engine: surface not generated")
	}
	return float64(len(grid)) * float64(cutoffMinutes) / 60, nil
}

func (m *MockEngine) DestinationData(_ context.Context, destination domain.GridPoint) (domain.DestinationRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DestinationData"); err != nil {
		return domain.DestinationRoute{}, err
	}
	if m.Generated == 0 {
		return domain.DestinationRoute{}, errors.New("mock engine: surface not generated")
	}

	o := *m.Origin
	minutes := abs(destination.X-o.X) + abs(destination.Y-o.Y)

	from := m.Metadata.CellCenter(o)
	to := m.Metadata.CellCenter(destination)
	transitive, err := json.Marshal(map[string]any{
		"places": []map[string]any{
			{"place_id": "from", "place_lat": from.Lat, "place_lon": from.Lon},
			{"place_id": "to", "place_lat": to.Lat, "place_lon": to.Lon},
		},
		"journeys": []map[string]any{{
			"journey_id": "0",
			"segments": []map[string]any{{
				"type": "WALK",
				"from": map[string]string{"type": "PLACE", "place_id": "from"},
				"to":   map[string]string{"type": "PLACE", "place_id": "to"},
			}},
		}},
	})
	if err != nil {
		return domain.DestinationRoute{}, fmt.Errorf("mock engine: %w", err)
	}

	return domain.DestinationRoute{
		TravelTime:          minutes,
		InVehicleTravelTime: 0,
		WaitTime:            0,
		Transitive:          transitive,
	}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
