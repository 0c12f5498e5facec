package domain

import "github.com/paulmach/orb"

// Immutable geographic coordinates (latitude, longitude).
type LatLon struct {
	Lat float64
	Lon float64
}

// Return coordinates as an orb point, which is [lon, lat].
func (c LatLon) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// A cell in the engine's origin grid.
type GridPoint struct {
	X int
	Y int
}

// A draggable map marker: where it was dropped and which grid cell that is.
type Marker struct {
	Position LatLon
	Cell     GridPoint
}

var (
	// Initial map center.
	Boston = LatLon{Lat: 42.358056, Lon: -71.063611}
	// Initial origin marker.
	BostonCommon = LatLon{Lat: 42.355, Lon: -71.065556}
	// Initial destination marker.
	LifeAlive = LatLon{Lat: 42.366639, Lon: -71.105435}
)
