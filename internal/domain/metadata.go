package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoMetadata  = errors.New("query metadata not loaded")
	ErrOutsideGrid = errors.New("point is outside the origin grid")
)

// QueryMetadata is the static-metadata job response. Only the grid
// geometry is interpreted here; the raw document is passed to the engine
// unmodified.
type QueryMetadata struct {
	Zoom           int             `json:"zoom"`
	West           int             `json:"west"`
	North          int             `json:"north"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	TransitiveData json.RawMessage `json:"transitiveData"`

	Raw json.RawMessage `json:"-"`
}

// ParseQueryMetadata decodes a static-metadata payload and keeps a copy of
// the original bytes.
func ParseQueryMetadata(data []byte) (*QueryMetadata, error) {
	var md QueryMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse query metadata: %w", err)
	}
	if md.Zoom <= 0 {
		return nil, fmt.Errorf("parse query metadata: invalid zoom %d", md.Zoom)
	}

	md.Raw = append(json.RawMessage(nil), data...)
	return &md, nil
}

// OriginPoint maps a coordinate to its origin grid cell: the web mercator
// pixel at the metadata zoom, offset by the grid's west/north edge.
func (m *QueryMetadata) OriginPoint(c LatLon) (GridPoint, error) {
	if m == nil {
		return GridPoint{}, ErrNoMetadata
	}

	p := GridPoint{
		X: int(math.Floor(LonToPixel(c.Lon, m.Zoom))) - m.West,
		Y: int(math.Floor(LatToPixel(c.Lat, m.Zoom))) - m.North,
	}

	if m.Width > 0 && m.Height > 0 {
		if p.X < 0 || p.Y < 0 || p.X >= m.Width || p.Y >= m.Height {
			return GridPoint{}, fmt.Errorf("origin point (%f, %f) -> (%d, %d): %w", c.Lat, c.Lon, p.X, p.Y, ErrOutsideGrid)
		}
	}

	return p, nil
}

// LonToPixel returns the fractional web mercator x pixel for 256px tiles.
func LonToPixel(lon float64, zoom int) float64 {
	return (lon + 180) / 360 * worldSize(zoom)
}

// LatToPixel returns the fractional web mercator y pixel for 256px tiles.
func LatToPixel(lat float64, zoom int) float64 {
	rad := lat * math.Pi / 180
	return (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * worldSize(zoom)
}

func worldSize(zoom int) float64 {
	return 256 * math.Exp2(float64(zoom))
}

// CellCenter is the inverse of OriginPoint: the coordinate at the center of
// grid cell p.
func (m *QueryMetadata) CellCenter(p GridPoint) LatLon {
	x := float64(p.X+m.West) + 0.5
	y := float64(p.Y+m.North) + 0.5
	return LatLon{Lat: PixelToLat(y, m.Zoom), Lon: PixelToLon(x, m.Zoom)}
}

func PixelToLon(x float64, zoom int) float64 {
	return x/worldSize(zoom)*360 - 180
}

func PixelToLat(y float64, zoom int) float64 {
	n := math.Pi - 2*math.Pi*y/worldSize(zoom)
	return 180 / math.Pi * math.Atan(math.Sinh(n))
}
