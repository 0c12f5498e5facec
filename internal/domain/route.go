package domain

import "encoding/json"

// Breakdown of the trip from the current origin to the current destination.
// Times are minutes. Transitive is the route-diagram document produced by the
// engine and is only interpreted by the diagram layer.
type DestinationRoute struct {
	TravelTime          int             `json:"travelTime"`
	InVehicleTravelTime int             `json:"inVehicleTravelTime"`
	WaitTime            int             `json:"waitTime"`
	Transitive          json.RawMessage `json:"transitive"`
}
