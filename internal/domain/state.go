package domain

import "github.com/paulmach/orb/geojson"

type Status string

const (
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// State is everything the map view draws. It is only ever changed by Reduce.
//
// Isochrone and Accessibility belong to the origin recorded under OriginGen;
// Route belongs to the (OriginGen, DestinationGen) pair. Key changes on every
// accepted update so the view rebuilds its overlay layers.
type State struct {
	Status        Status
	Error         string
	Origin        Marker
	Destination   Marker
	Isochrone     *geojson.Feature
	Accessibility *float64
	Route         *DestinationRoute

	OriginGen      uint64
	DestinationGen uint64
	Key            string
}

// InitialState is the state before any artifact has been fetched.
func InitialState(origin, destination LatLon) State {
	return State{
		Status:      StatusLoading,
		Origin:      Marker{Position: origin},
		Destination: Marker{Position: destination},
	}
}

// Event is one of the state transitions below. Key is the render key the
// state takes when the event is accepted.
type Event interface {
	renderKey() string
}

type LoadSucceeded struct {
	Key string
}

type LoadFailed struct {
	Err error
	Key string
}

// OriginMoved is dispatched before the surface for the new origin is requested.
type OriginMoved struct {
	Gen    uint64
	Marker Marker
	Key    string
}

type OriginComputed struct {
	Gen           uint64
	Isochrone     *geojson.Feature
	Accessibility *float64
	Key           string
}

type OriginFailed struct {
	Gen uint64
	Err error
	Key string
}

// DestinationMoved is dispatched before the route for the new destination is requested.
type DestinationMoved struct {
	Gen    uint64
	Marker Marker
	Key    string
}

// DestinationComputed carries the origin generation the route was computed
// against as well as its own.
type DestinationComputed struct {
	OriginGen uint64
	Gen       uint64
	Route     DestinationRoute
	Key       string
}

type DestinationFailed struct {
	Gen uint64
	Err error
	Key string
}

func (e LoadSucceeded) renderKey() string       { return e.Key }
func (e LoadFailed) renderKey() string          { return e.Key }
func (e OriginMoved) renderKey() string         { return e.Key }
func (e OriginComputed) renderKey() string      { return e.Key }
func (e OriginFailed) renderKey() string        { return e.Key }
func (e DestinationMoved) renderKey() string    { return e.Key }
func (e DestinationComputed) renderKey() string { return e.Key }
func (e DestinationFailed) renderKey() string   { return e.Key }

// Reduce applies ev to s and returns the next state. Events that are out of
// order (a second load completion, a move older than the recorded one) or
// stale (a completion for a marker position that has since moved) leave s
// unchanged.
func Reduce(s State, ev Event) State {
	next := s

	switch e := ev.(type) {
	case LoadSucceeded:
		if s.Status != StatusLoading {
			return s
		}
		next.Status = StatusLoaded
		next.Error = ""

	case LoadFailed:
		if s.Status != StatusLoading {
			return s
		}
		next.Status = StatusFailed
		next.Error = errString(e.Err)

	case OriginMoved:
		if e.Gen < s.OriginGen {
			return s
		}
		next.Origin = e.Marker
		next.OriginGen = e.Gen
		next.Isochrone = nil
		next.Accessibility = nil
		next.Route = nil
		next.Error = ""

	case OriginComputed:
		if e.Gen != s.OriginGen {
			return s
		}
		next.Isochrone = e.Isochrone
		next.Accessibility = e.Accessibility

	case OriginFailed:
		if e.Gen != s.OriginGen {
			return s
		}
		next.Error = errString(e.Err)

	case DestinationMoved:
		if e.Gen < s.DestinationGen {
			return s
		}
		next.Destination = e.Marker
		next.DestinationGen = e.Gen
		next.Route = nil
		next.Error = ""

	case DestinationComputed:
		if e.Gen != s.DestinationGen || e.OriginGen != s.OriginGen {
			return s
		}
		route := e.Route
		next.Route = &route

	case DestinationFailed:
		if e.Gen != s.DestinationGen {
			return s
		}
		next.Error = errString(e.Err)

	default:
		return s
	}

	next.Key = ev.renderKey()
	return next
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
