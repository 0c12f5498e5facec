package dto

import "isochrone-explorer/internal/domain"

type PointRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type MarkerResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	X   int     `json:"x"`
	Y   int     `json:"y"`
}

type RouteResponse struct {
	TravelTime          int `json:"travel_time"`
	InVehicleTravelTime int `json:"in_vehicle_travel_time"`
	WaitTime            int `json:"wait_time"`
}

// SessionResponse is the state the map view renders. Key changes whenever
// the overlays need redrawing.
type SessionResponse struct {
	Status        string         `json:"status"`
	Error         string         `json:"error,omitempty"`
	Key           string         `json:"key"`
	Origin        MarkerResponse `json:"origin"`
	Destination   MarkerResponse `json:"destination"`
	HasIsochrone  bool           `json:"has_isochrone"`
	Accessibility *float64       `json:"accessibility"`
	Route         *RouteResponse `json:"route"`
}

func NewSessionResponse(st domain.State) SessionResponse {
	res := SessionResponse{
		Status:        string(st.Status),
		Error:         st.Error,
		Key:           st.Key,
		Origin:        newMarker(st.Origin),
		Destination:   newMarker(st.Destination),
		HasIsochrone:  st.Isochrone != nil,
		Accessibility: st.Accessibility,
	}
	if st.Route != nil {
		res.Route = &RouteResponse{
			TravelTime:          st.Route.TravelTime,
			InVehicleTravelTime: st.Route.InVehicleTravelTime,
			WaitTime:            st.Route.WaitTime,
		}
	}
	return res
}

func newMarker(m domain.Marker) MarkerResponse {
	return MarkerResponse{
		Lat: m.Position.Lat,
		Lon: m.Position.Lon,
		X:   m.Cell.X,
		Y:   m.Cell.Y,
	}
}
