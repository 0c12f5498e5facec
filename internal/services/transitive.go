package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type transitiveStop struct {
	ID   string  `json:"stop_id"`
	Name string  `json:"stop_name"`
	Lat  float64 `json:"stop_lat"`
	Lon  float64 `json:"stop_lon"`
}

type transitivePlace struct {
	ID   string  `json:"place_id"`
	Name string  `json:"place_name"`
	Lat  float64 `json:"place_lat"`
	Lon  float64 `json:"place_lon"`
}

type transitivePattern struct {
	ID      string `json:"pattern_id"`
	RouteID string `json:"route_id"`
	Stops   []struct {
		StopID string `json:"stop_id"`
	} `json:"stops"`
}

type transitiveRoute struct {
	ID        string `json:"route_id"`
	ShortName string `json:"route_short_name"`
	LongName  string `json:"route_long_name"`
	Color     string `json:"route_color"`
}

type transitiveEndpoint struct {
	Type    string `json:"type"`
	PlaceID string `json:"place_id"`
	StopID  string `json:"stop_id"`
}

type patternRange struct {
	PatternID     string `json:"pattern_id"`
	FromStopIndex int    `json:"from_stop_index"`
	ToStopIndex   int    `json:"to_stop_index"`
}

type transitiveSegment struct {
	Type string              `json:"type"`
	From *transitiveEndpoint `json:"from"`
	To   *transitiveEndpoint `json:"to"`

	// Transit segments name their pattern either inline or as a list of
	// alternatives, of which the first is drawn.
	patternRange
	Patterns []patternRange `json:"patterns"`
}

type transitiveJourney struct {
	ID       string              `json:"journey_id"`
	Name     string              `json:"journey_name"`
	Segments []transitiveSegment `json:"segments"`
}

type transitiveData struct {
	Stops    []transitiveStop    `json:"stops"`
	Places   []transitivePlace   `json:"places"`
	Patterns []transitivePattern `json:"patterns"`
	Routes   []transitiveRoute   `json:"routes"`
	Journeys []transitiveJourney `json:"journeys"`
}

// TransitiveToGeoJSON converts a transit route description into drawable
// features: one LineString per journey segment and one Point per stop or
// place a journey touches. Empty input yields an empty collection.
func TransitiveToGeoJSON(raw json.RawMessage) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	if len(raw) == 0 || string(raw) == "null" {
		return fc, nil
	}

	var data transitiveData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode transitive data: %w", err)
	}

	stops := make(map[string]transitiveStop, len(data.Stops))
	for _, s := range data.Stops {
		stops[s.ID] = s
	}
	places := make(map[string]transitivePlace, len(data.Places))
	for _, p := range data.Places {
		places[p.ID] = p
	}
	patterns := make(map[string]transitivePattern, len(data.Patterns))
	for _, p := range data.Patterns {
		patterns[p.ID] = p
	}
	routes := make(map[string]transitiveRoute, len(data.Routes))
	for _, r := range data.Routes {
		routes[r.ID] = r
	}

	touchedStops := map[string]bool{}
	touchedPlaces := map[string]bool{}
	var stopOrder, placeOrder []string

	touchStop := func(id string) {
		if !touchedStops[id] {
			touchedStops[id] = true
			stopOrder = append(stopOrder, id)
		}
	}
	touchPlace := func(id string) {
		if !touchedPlaces[id] {
			touchedPlaces[id] = true
			placeOrder = append(placeOrder, id)
		}
	}

	endpoint := func(e *transitiveEndpoint) (orb.Point, error) {
		if e == nil {
			return orb.Point{}, errors.New("segment endpoint missing")
		}
		switch e.Type {
		case "PLACE":
			p, ok := places[e.PlaceID]
			if !ok {
				return orb.Point{}, fmt.Errorf("unknown place %q", e.PlaceID)
			}
			touchPlace(p.ID)
			return orb.Point{p.Lon, p.Lat}, nil
		case "STOP":
			s, ok := stops[e.StopID]
			if !ok {
				return orb.Point{}, fmt.Errorf("unknown stop %q", e.StopID)
			}
			touchStop(s.ID)
			return orb.Point{s.Lon, s.Lat}, nil
		default:
			return orb.Point{}, fmt.Errorf("unknown endpoint type %q", e.Type)
		}
	}

	for _, j := range data.Journeys {
		for i, seg := range j.Segments {
			var (
				line  orb.LineString
				props = geojson.Properties{
					"journey_id": j.ID,
					"segment":    i,
					"type":       seg.Type,
				}
			)

			switch seg.Type {
			case "TRANSIT":
				pr := seg.patternRange
				if pr.PatternID == "" && len(seg.Patterns) > 0 {
					pr = seg.Patterns[0]
				}
				pat, ok := patterns[pr.PatternID]
				if !ok {
					return nil, fmt.Errorf("journey %s segment %d: unknown pattern %q", j.ID, i, pr.PatternID)
				}
				if pr.FromStopIndex < 0 || pr.ToStopIndex >= len(pat.Stops) || pr.FromStopIndex > pr.ToStopIndex {
					return nil, fmt.Errorf("journey %s segment %d: stop range %d..%d outside pattern %q",
						j.ID, i, pr.FromStopIndex, pr.ToStopIndex, pat.ID)
				}
				for _, ps := range pat.Stops[pr.FromStopIndex : pr.ToStopIndex+1] {
					s, ok := stops[ps.StopID]
					if !ok {
						return nil, fmt.Errorf("journey %s segment %d: unknown stop %q", j.ID, i, ps.StopID)
					}
					touchStop(s.ID)
					line = append(line, orb.Point{s.Lon, s.Lat})
				}
				props["pattern_id"] = pat.ID
				if r, ok := routes[pat.RouteID]; ok {
					props["route_id"] = r.ID
					props["route_short_name"] = r.ShortName
					if r.Color != "" {
						props["route_color"] = "#" + r.Color
					}
				}

			case "WALK", "BICYCLE", "CAR":
				from, err := endpoint(seg.From)
				if err != nil {
					return nil, fmt.Errorf("journey %s segment %d: %w", j.ID, i, err)
				}
				to, err := endpoint(seg.To)
				if err != nil {
					return nil, fmt.Errorf("journey %s segment %d: %w", j.ID, i, err)
				}
				line = orb.LineString{from, to}

			default:
				return nil, fmt.Errorf("journey %s segment %d: unknown segment type %q", j.ID, i, seg.Type)
			}

			f := geojson.NewFeature(line)
			f.Properties = props
			fc.Append(f)
		}
	}

	for _, id := range placeOrder {
		p := places[id]
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.Properties["place_id"] = p.ID
		f.Properties["name"] = p.Name
		fc.Append(f)
	}
	for _, id := range stopOrder {
		s := stops[id]
		f := geojson.NewFeature(orb.Point{s.Lon, s.Lat})
		f.Properties["stop_id"] = s.ID
		f.Properties["name"] = s.Name
		fc.Append(f)
	}

	return fc, nil
}
