package services

import (
	"context"
	"errors"
	"fmt"
	"isochrone-explorer/internal/domain"
	"isochrone-explorer/internal/ports"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// Travel-time budget for surfaces, isochrones and accessibility.
const CutoffMinutes = 60

var (
	ErrNotLoaded = errors.New("session artifacts not loaded")
	ErrNoSurface = errors.New("no surface computed for the current origin")
)

// Session is the single source of truth for one map session. It sequences
// compute fetches and engine calls and records every outcome through
// domain.Reduce.
//
// Each marker move takes a fresh generation number before anything is
// requested; completions for a generation that has since been superseded are
// dropped, so the last drag wins regardless of response order.
type Session struct {
	client   ports.ComputeClient
	engine   ports.IsochroneEngine
	gridName string
	newKey   func() string

	mu    sync.RWMutex
	state domain.State
	gen   uint64

	// engineMu serializes every engine call chain. The fields below it are
	// only touched while it is held.
	engineMu   sync.Mutex
	hasGrid    bool
	surfaceGen uint64
}

func NewSession(
	client ports.ComputeClient,
	engine ports.IsochroneEngine,
	gridName string,
	origin domain.LatLon,
	destination domain.LatLon,
) *Session {
	return &Session{
		client:   client,
		engine:   engine,
		gridName: gridName,
		newKey:   uuid.NewString,
		state:    domain.InitialState(origin, destination),
	}
}

// State returns a snapshot of the current session state.
func (s *Session) State() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) dispatch(ev domain.Event) domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.Reduce(s.state, ev)
	return s.state
}

func (s *Session) nextGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// Load fetches the static artifacts concurrently, hands them to the engine
// and moves the session from loading to loaded. Any failure moves it to
// failed instead.
func (s *Session) Load(ctx context.Context) error {
	if st := s.State().Status; st != domain.StatusLoading {
		return fmt.Errorf("load session: status is %s", st)
	}

	if err := s.load(ctx); err != nil {
		s.dispatch(domain.LoadFailed{Err: err, Key: s.newKey()})
		return fmt.Errorf("load session: %w", err)
	}

	s.dispatch(domain.LoadSucceeded{Key: s.newKey()})
	return nil
}

func (s *Session) load(ctx context.Context) error {
	var (
		md        *domain.QueryMetadata
		stopTrees []byte
		grid      []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		md, err = s.client.FetchMetadata(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stopTrees, err = s.client.FetchStopTrees(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		grid, err = s.client.FetchGrid(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	if err := s.engine.SetQuery(ctx, md); err != nil {
		return fmt.Errorf("ingest metadata: %w", err)
	}
	if err := s.engine.SetStopTrees(ctx, stopTrees); err != nil {
		return fmt.Errorf("ingest stop trees: %w", err)
	}
	if len(md.TransitiveData) > 0 {
		if err := s.engine.SetTransitiveNetwork(ctx, md.TransitiveData); err != nil {
			return fmt.Errorf("ingest transitive network: %w", err)
		}
	}
	if grid != nil {
		if err := s.engine.PutGrid(ctx, s.gridName, grid); err != nil {
			return fmt.Errorf("ingest grid %q: %w", s.gridName, err)
		}
		s.hasGrid = true
	}

	return nil
}

// MoveOrigin records the new origin, clearing every result derived from the
// previous one, then fetches its surface and computes the isochrone and
// accessibility. The returned state is the one after this move completed, or
// the current state if a later move superseded it.
func (s *Session) MoveOrigin(ctx context.Context, c domain.LatLon) (domain.State, error) {
	if s.State().Status != domain.StatusLoaded {
		return s.State(), ErrNotLoaded
	}

	cell, err := s.engine.LatLonToOriginPoint(c)
	if err != nil {
		return s.State(), fmt.Errorf("move origin: %w", err)
	}

	gen := s.nextGen()
	s.dispatch(domain.OriginMoved{
		Gen:    gen,
		Marker: domain.Marker{Position: c, Cell: cell},
		Key:    s.newKey(),
	})

	iso, acc, err := s.computeOrigin(ctx, gen, cell)
	if errors.Is(err, errSuperseded) {
		return s.State(), nil
	}
	if err != nil {
		err = fmt.Errorf("move origin: %w", err)
		return s.dispatch(domain.OriginFailed{Gen: gen, Err: err, Key: s.newKey()}), err
	}

	return s.dispatch(domain.OriginComputed{
		Gen:           gen,
		Isochrone:     iso,
		Accessibility: acc,
		Key:           s.newKey(),
	}), nil
}

var errSuperseded = errors.New("superseded by a later move")

func (s *Session) computeOrigin(ctx context.Context, gen uint64, cell domain.GridPoint) (*geojson.Feature, *float64, error) {
	surface, err := s.client.FetchSurface(ctx, cell)
	if err != nil {
		return nil, nil, err
	}

	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	// Skip engine work for a surface nobody will see.
	if s.State().OriginGen != gen {
		return nil, nil, errSuperseded
	}

	// The engine no longer holds a usable surface until generation succeeds.
	s.surfaceGen = 0
	if err := s.engine.SetOrigin(ctx, surface, cell); err != nil {
		return nil, nil, fmt.Errorf("set origin: %w", err)
	}
	if err := s.engine.GenerateSurface(ctx, CutoffMinutes); err != nil {
		return nil, nil, fmt.Errorf("generate surface: %w", err)
	}
	s.surfaceGen = gen

	iso, err := s.engine.Isochrone(ctx, CutoffMinutes)
	if err != nil {
		return nil, nil, fmt.Errorf("isochrone: %w", err)
	}

	var acc *float64
	if s.hasGrid {
		v, err := s.engine.Accessibility(ctx, s.gridName, CutoffMinutes)
		if err != nil {
			return nil, nil, fmt.Errorf("accessibility: %w", err)
		}
		acc = &v
	}

	return iso, acc, nil
}

// MoveDestination records the new destination, clearing the previous route,
// then decomposes the trip from the surface the engine currently holds.
func (s *Session) MoveDestination(ctx context.Context, c domain.LatLon) (domain.State, error) {
	if s.State().Status != domain.StatusLoaded {
		return s.State(), ErrNotLoaded
	}

	cell, err := s.engine.LatLonToOriginPoint(c)
	if err != nil {
		return s.State(), fmt.Errorf("move destination: %w", err)
	}

	gen := s.nextGen()
	s.dispatch(domain.DestinationMoved{
		Gen:    gen,
		Marker: domain.Marker{Position: c, Cell: cell},
		Key:    s.newKey(),
	})

	originGen, route, err := s.computeDestination(ctx, cell)
	if err != nil {
		err = fmt.Errorf("move destination: %w", err)
		return s.dispatch(domain.DestinationFailed{Gen: gen, Err: err, Key: s.newKey()}), err
	}

	next := s.dispatch(domain.DestinationComputed{
		OriginGen: originGen,
		Gen:       gen,
		Route:     route,
		Key:       s.newKey(),
	})
	if next.Route == nil && next.DestinationGen == gen {
		log.Printf("destination route dropped: origin moved during computation gen=%d", gen)
	}
	return next, nil
}

func (s *Session) computeDestination(ctx context.Context, cell domain.GridPoint) (uint64, domain.DestinationRoute, error) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()

	// A surface left over from an earlier origin would only yield a route
	// the reducer drops.
	if s.surfaceGen == 0 || s.surfaceGen != s.State().OriginGen {
		return 0, domain.DestinationRoute{}, ErrNoSurface
	}

	route, err := s.engine.DestinationData(ctx, cell)
	if err != nil {
		return 0, domain.DestinationRoute{}, fmt.Errorf("destination data: %w", err)
	}
	return s.surfaceGen, route, nil
}
