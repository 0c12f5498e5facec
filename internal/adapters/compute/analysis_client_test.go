package compute

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"isochrone-explorer/internal/domain"
	"isochrone-explorer/internal/ports"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metadataJSON = `{"zoom":9,"west":39500,"north":48300,"width":400,"height":400,"transitiveData":{"stops":[]}}`

type memArtifacts struct {
	mu sync.Mutex
	m  map[ports.ArtifactKey][]byte
}

func (c *memArtifacts) Get(_ context.Context, key ports.ArtifactKey) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *memArtifacts) Put(_ context.Context, key ports.ArtifactKey, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[ports.ArtifactKey][]byte{}
	}
	c.m[key] = data
	return nil
}

func newTestClient(t *testing.T, computeURL string, mutate func(*Options)) *AnalysisClient {
	t.Helper()

	opts := Options{
		ComputeURL:    computeURL,
		NetworkID:     "net-1",
		WorkerVersion: "v1.5.0",
		Request:       domain.NewStaticRequest("net-1", domain.DefaultTripRequest()),
	}
	if mutate != nil {
		mutate(&opts)
	}

	c, err := NewAnalysisClient(opts)
	require.NoError(t, err)
	c.backoff = time.Millisecond
	return c
}

func decodeJob(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestAnalysisClientFetchMetadata(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		got = decodeJob(t, r)
		_, _ = io.WriteString(w, metadataJSON)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	md, err := c.FetchMetadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9, md.Zoom)
	assert.JSONEq(t, `{"stops":[]}`, string(md.TransitiveData))

	assert.Equal(t, "static-metadata", got["type"])
	assert.Equal(t, "net-1", got["graphId"])
	assert.Equal(t, "v1.5.0", got["workerVersion"])
	assert.NotContains(t, got, "x")

	req := got["request"].(map[string]any)
	assert.Equal(t, "net-1", req["transportNetworkId"])
	assert.NotEmpty(t, req["jobId"])
	bag := req["request"].(map[string]any)
	assert.Equal(t, float64(220), bag["monteCarloDraws"])
	assert.Equal(t, "WALK,TRANSIT", bag["transitModes"])
}

func TestAnalysisClientFetchSurfaceSendsGridPoint(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = decodeJob(t, r)
		_, _ = w.Write([]byte{0x01, 0x02, 0x03})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	data, err := c.FetchSurface(context.Background(), domain.GridPoint{X: 0, Y: 181})
	require.NoError(t, err)

	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)
	assert.Equal(t, "static", got["type"])
	assert.Equal(t, float64(0), got["x"])
	assert.Equal(t, float64(181), got["y"])
}

func TestAnalysisClientAcceptedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.FetchStopTrees(context.Background())

	require.ErrorIs(t, err, ErrJobAccepted)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestAnalysisClientRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("trees"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	data, err := c.FetchStopTrees(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "trees", string(data))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestAnalysisClientClientErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown graph", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.FetchStopTrees(context.Background())

	var he *HTTPStatusError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusNotFound, he.Code)
	assert.Equal(t, "unknown graph", he.Body)
}

func TestAnalysisClientCredentialExchange(t *testing.T) {
	var exchanges int32
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-id", r.URL.Query().Get("key"))
		assert.Equal(t, "key-secret", r.URL.Query().Get("secret"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = io.WriteString(w, `{"access_token":"tok-123","expires_in":3600}`)
	}))
	defer auth.Close()

	var tokens []string
	var mu sync.Mutex
	compute := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokens = append(tokens, r.URL.Query().Get("accessToken"))
		mu.Unlock()
		_, _ = w.Write([]byte("payload"))
	}))
	defer compute.Close()

	c := newTestClient(t, compute.URL, func(o *Options) {
		o.AuthURL = auth.URL
		o.APIKeyID = "key-id"
		o.APIKeySecret = "key-secret"
		o.GridURL = compute.URL + "/grids/jobs.grid"
	})

	_, err := c.FetchStopTrees(context.Background())
	require.NoError(t, err)
	_, err = c.FetchGrid(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"tok-123", "tok-123"}, tokens)
	assert.EqualValues(t, 1, atomic.LoadInt32(&exchanges))
}

func TestAnalysisClientFetchGridWithoutURL(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0", nil)
	data, err := c.FetchGrid(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestAnalysisClientReadsThroughArtifactCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, metadataJSON)
	}))
	defer srv.Close()

	cache := &memArtifacts{}
	c := newTestClient(t, srv.URL, func(o *Options) { o.Artifacts = cache })

	_, err := c.FetchMetadata(context.Background())
	require.NoError(t, err)
	md, err := c.FetchMetadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 400, md.Width)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Len(t, cache.m, 1)
}

func TestAnalysisClientDoesNotCacheBadMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"zoom":0}`)
	}))
	defer srv.Close()

	cache := &memArtifacts{}
	c := newTestClient(t, srv.URL, func(o *Options) { o.Artifacts = cache })

	_, err := c.FetchMetadata(context.Background())
	require.Error(t, err)
	assert.Empty(t, cache.m)
}

func TestAnalysisClientGridCacheKeyedByURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.URL.Path)
	}))
	defer srv.Close()

	cache := &memArtifacts{}
	jobs := newTestClient(t, srv.URL, func(o *Options) {
		o.Artifacts = cache
		o.GridURL = srv.URL + "/jobs.grid"
	})
	workers := newTestClient(t, srv.URL, func(o *Options) {
		o.Artifacts = cache
		o.GridURL = srv.URL + "/workers.grid"
	})

	a, err := jobs.FetchGrid(context.Background())
	require.NoError(t, err)
	b, err := workers.FetchGrid(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/jobs.grid", string(a))
	assert.Equal(t, "/workers.grid", string(b))
	assert.Len(t, cache.m, 2)

	again, err := jobs.FetchGrid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/jobs.grid", string(again))
}

func TestAnalysisClientCredentialExchangeHonoursDeadline(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer auth.Close()

	var computeCalls int32
	compute := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&computeCalls, 1)
	}))
	defer compute.Close()

	c := newTestClient(t, compute.URL, func(o *Options) {
		o.AuthURL = auth.URL
		o.APIKeyID = "key-id"
		o.APIKeySecret = "key-secret"
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.FetchStopTrees(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 0, atomic.LoadInt32(&computeCalls))
}
