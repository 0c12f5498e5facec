package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"isochrone-explorer/internal/domain"
	"isochrone-explorer/internal/platform/obs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
)

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// HTTPEngine implements IsochroneEngine by forwarding every call to an engine
// sidecar that holds the session's artifacts.
//
// The grid mapping is answered locally from the last metadata passed to
// SetQuery, so it never costs a round trip.
type HTTPEngine struct {
	session *http.Client
	baseURL string

	mu       sync.RWMutex
	metadata *domain.QueryMetadata
}

func NewHTTPEngine(baseURL string) (*HTTPEngine, error) {
	if baseURL == "" {
		return nil, errors.New("engine url is empty")
	}

	return &HTTPEngine{
		session: &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (e *HTTPEngine) LatLonToOriginPoint(c domain.LatLon) (domain.GridPoint, error) {
	e.mu.RLock()
	md := e.metadata
	e.mu.RUnlock()

	return md.OriginPoint(c)
}

func (e *HTTPEngine) SetQuery(ctx context.Context, md *domain.QueryMetadata) (err error) {
	defer obs.Time(ctx, "engine.SetQuery")(&err)

	if md == nil {
		return errors.New("set query: metadata is nil")
	}
	if err := e.call(ctx, http.MethodPut, "/query", nil, md.Raw, "application/json", nil); err != nil {
		return fmt.Errorf("set query: %w", err)
	}

	e.mu.Lock()
	e.metadata = md
	e.mu.Unlock()
	return nil
}

func (e *HTTPEngine) SetStopTrees(ctx context.Context, stopTrees []byte) (err error) {
	defer obs.Time(ctx, "engine.SetStopTrees")(&err)

	if err := e.call(ctx, http.MethodPut, "/stop-trees", nil, stopTrees, "application/octet-stream", nil); err != nil {
		return fmt.Errorf("set stop trees: %w", err)
	}
	return nil
}

func (e *HTTPEngine) SetTransitiveNetwork(ctx context.Context, network json.RawMessage) error {
	if err := e.call(ctx, http.MethodPut, "/transitive-network", nil, network, "application/json", nil); err != nil {
		return fmt.Errorf("set transitive network: %w", err)
	}
	return nil
}

func (e *HTTPEngine) PutGrid(ctx context.Context, name string, grid []byte) error {
	if name == "" {
		return errors.New("put grid: name is empty")
	}
	if err := e.call(ctx, http.MethodPut, "/grids/"+url.PathEscape(name), nil, grid, "application/octet-stream", nil); err != nil {
		return fmt.Errorf("put grid %q: %w", name, err)
	}
	return nil
}

func (e *HTTPEngine) SetOrigin(ctx context.Context, surface []byte, origin domain.GridPoint) (err error) {
	defer obs.Time(ctx, "engine.SetOrigin")(&err)

	q := url.Values{}
	q.Set("x", strconv.Itoa(origin.X))
	q.Set("y", strconv.Itoa(origin.Y))
	if err := e.call(ctx, http.MethodPut, "/origin", q, surface, "application/octet-stream", nil); err != nil {
		return fmt.Errorf("set origin (%d, %d): %w", origin.X, origin.Y, err)
	}
	return nil
}

func (e *HTTPEngine) GenerateSurface(ctx context.Context, cutoffMinutes int) (err error) {
	defer obs.Time(ctx, "engine.GenerateSurface")(&err)

	if err := e.call(ctx, http.MethodPost, "/surface", cutoffQuery(cutoffMinutes), nil, "", nil); err != nil {
		return fmt.Errorf("generate surface: %w", err)
	}
	return nil
}

func (e *HTTPEngine) Isochrone(ctx context.Context, cutoffMinutes int) (_ *geojson.Feature, err error) {
	defer obs.Time(ctx, "engine.Isochrone")(&err)

	var raw json.RawMessage
	if err := e.call(ctx, http.MethodGet, "/isochrone", cutoffQuery(cutoffMinutes), nil, "", &raw); err != nil {
		return nil, fmt.Errorf("isochrone: %w", err)
	}

	f, err := decodeFeature(raw)
	if err != nil {
		return nil, fmt.Errorf("isochrone: %w", err)
	}
	return f, nil
}

func (e *HTTPEngine) Accessibility(ctx context.Context, gridName string, cutoffMinutes int) (float64, error) {
	q := cutoffQuery(cutoffMinutes)
	q.Set("grid", gridName)

	var out struct {
		Accessibility float64 `json:"accessibility"`
	}
	if err := e.call(ctx, http.MethodGet, "/accessibility", q, nil, "", &out); err != nil {
		return 0, fmt.Errorf("accessibility %q: %w", gridName, err)
	}
	return out.Accessibility, nil
}

func (e *HTTPEngine) DestinationData(ctx context.Context, destination domain.GridPoint) (_ domain.DestinationRoute, err error) {
	defer obs.Time(ctx, "engine.DestinationData")(&err)

	body, err := json.Marshal(map[string]int{"x": destination.X, "y": destination.Y})
	if err != nil {
		return domain.DestinationRoute{}, fmt.Errorf("destination data: marshal: %w", err)
	}

	var route domain.DestinationRoute
	if err := e.call(ctx, http.MethodPost, "/destination", nil, body, "application/json", &route); err != nil {
		return domain.DestinationRoute{}, fmt.Errorf("destination data (%d, %d): %w", destination.X, destination.Y, err)
	}
	return route, nil
}

// call issues one request to the sidecar and decodes a JSON response into out
// when out is non-nil.
func (e *HTTPEngine) call(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body []byte,
	contentType string,
	out any,
) error {
	endpoint := e.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.session.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func cutoffQuery(cutoffMinutes int) url.Values {
	q := url.Values{}
	q.Set("cutoff", strconv.Itoa(cutoffMinutes))
	return q
}

// decodeFeature accepts either a GeoJSON Feature or a bare geometry.
func decodeFeature(raw json.RawMessage) (*geojson.Feature, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	switch probe.Type {
	case "Feature":
		return geojson.UnmarshalFeature(raw)
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, err
		}
		if len(fc.Features) == 0 {
			return nil, errors.New("decode geojson: empty feature collection")
		}
		return fc.Features[0], nil
	default:
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, err
		}
		return geojson.NewFeature(g.Geometry()), nil
	}
}
