package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"isochrone-explorer/internal/domain"
	"isochrone-explorer/internal/platform/obs"
	"isochrone-explorer/internal/ports"
	"log"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	jobStaticMetadata  = "static-metadata"
	jobStaticStopTrees = "static-stop-trees"
	jobStatic          = "static"
)

// jobRequest is the descriptor POSTed to the compute endpoint. X and Y are
// only present on per-origin surface jobs.
type jobRequest struct {
	Type          string               `json:"type"`
	GraphID       string               `json:"graphId"`
	WorkerVersion string               `json:"workerVersion"`
	Request       domain.StaticRequest `json:"request"`
	X             *int                 `json:"x,omitempty"`
	Y             *int                 `json:"y,omitempty"`
}

type Options struct {
	ComputeURL    string
	GridURL       string
	NetworkID     string
	WorkerVersion string
	Request       domain.StaticRequest

	// Credential exchange; all three or none.
	AuthURL      string
	APIKeyID     string
	APIKeySecret string

	Artifacts ports.ArtifactCache
	Surfaces  ports.SurfaceCache

	HTTPClient *http.Client
}

// AnalysisClient implements ComputeClient against a single-point analysis
// job endpoint.
//
// Static artifacts are read through the artifact cache and surfaces through
// the surface cache when those are configured. The client is safe for
// concurrent use.
type AnalysisClient struct {
	session       *http.Client
	computeURL    string
	gridURL       string
	networkID     string
	workerVersion string
	static        domain.StaticRequest
	fingerprint   string
	tokens        *tokenCache
	artifacts     ports.ArtifactCache
	surfaces      ports.SurfaceCache
	backoff       time.Duration
}

func NewAnalysisClient(opts Options) (*AnalysisClient, error) {
	if opts.ComputeURL == "" {
		return nil, errors.New("compute url is empty")
	}
	if opts.NetworkID == "" {
		return nil, errors.New("network id is empty")
	}

	fp, err := opts.Request.Fingerprint(opts.WorkerVersion)
	if err != nil {
		return nil, fmt.Errorf("new analysis client: %w", err)
	}

	session := opts.HTTPClient
	if session == nil {
		session = &http.Client{Timeout: 60 * time.Second}
	}

	c := &AnalysisClient{
		session:       session,
		computeURL:    opts.ComputeURL,
		gridURL:       opts.GridURL,
		networkID:     opts.NetworkID,
		workerVersion: opts.WorkerVersion,
		static:        opts.Request,
		fingerprint:   fp,
		artifacts:     opts.Artifacts,
		surfaces:      opts.Surfaces,
		backoff:       200 * time.Millisecond,
	}

	if opts.AuthURL != "" && opts.APIKeyID != "" && opts.APIKeySecret != "" {
		c.tokens = newTokenCache(session, opts.AuthURL, opts.APIKeyID, opts.APIKeySecret)
	}

	return c, nil
}

// Fingerprint identifies the trip parameters, network and worker version the
// client requests artifacts for.
func (c *AnalysisClient) Fingerprint() string { return c.fingerprint }

func (c *AnalysisClient) FetchMetadata(ctx context.Context) (_ *domain.QueryMetadata, err error) {
	defer obs.Time(ctx, "compute.FetchMetadata")(&err)

	data, err := c.cachedArtifact(ctx, ports.ArtifactMetadata, func() ([]byte, error) {
		b, err := c.postJob(ctx, jobRequest{Type: jobStaticMetadata})
		if err != nil {
			return nil, err
		}
		// Never cache a document the engine cannot use.
		if _, err := domain.ParseQueryMetadata(b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}

	md, err := domain.ParseQueryMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	return md, nil
}

func (c *AnalysisClient) FetchStopTrees(ctx context.Context) (_ []byte, err error) {
	defer obs.Time(ctx, "compute.FetchStopTrees")(&err)

	data, err := c.cachedArtifact(ctx, ports.ArtifactStopTrees, func() ([]byte, error) {
		return c.postJob(ctx, jobRequest{Type: jobStaticStopTrees})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch stop trees: %w", err)
	}
	return data, nil
}

func (c *AnalysisClient) FetchSurface(ctx context.Context, origin domain.GridPoint) (_ []byte, err error) {
	defer obs.Time(ctx, "compute.FetchSurface")(&err)

	key := ports.SurfaceKey{Fingerprint: c.fingerprint, X: origin.X, Y: origin.Y}
	if c.surfaces != nil {
		data, ok, err := c.surfaces.Get(ctx, key)
		if err != nil {
			log.Printf("surface cache read failed: key=%s err=%v", key, err)
		} else if ok {
			return data, nil
		}
	}

	x, y := origin.X, origin.Y
	data, err := c.postJob(ctx, jobRequest{Type: jobStatic, X: &x, Y: &y})
	if err != nil {
		return nil, fmt.Errorf("fetch surface (%d, %d): %w", origin.X, origin.Y, err)
	}

	if c.surfaces != nil {
		if err := c.surfaces.Put(ctx, key, data); err != nil {
			log.Printf("surface cache write failed: key=%s err=%v", key, err)
		}
	}

	return data, nil
}

func (c *AnalysisClient) FetchGrid(ctx context.Context) (_ []byte, err error) {
	if c.gridURL == "" {
		return nil, nil
	}
	defer obs.Time(ctx, "compute.FetchGrid")(&err)

	data, err := c.cachedArtifact(ctx, gridKind(c.gridURL), func() ([]byte, error) {
		resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
			return c.newRequest(ctx, http.MethodGet, c.gridURL, nil)
		})
		if err != nil {
			return nil, err
		}
		return readAll(resp)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch grid: %w", err)
	}
	return data, nil
}

// gridKind keys a cached grid by its source URL.
func gridKind(gridURL string) string {
	return fmt.Sprintf("%s:%016x", ports.ArtifactGrid, xxhash.Sum64String(gridURL))
}

// postJob fills in the session fields of job and returns the raw response body.
func (c *AnalysisClient) postJob(ctx context.Context, job jobRequest) ([]byte, error) {
	job.GraphID = c.networkID
	job.WorkerVersion = c.workerVersion
	job.Request = c.static

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal %s job: %w", job.Type, err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, c.computeURL, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("%s job: %w", job.Type, err)
	}

	return readAll(resp)
}

// cachedArtifact checks the artifact cache before calling fetch and writes
// fresh results back. Cache failures only cost a refetch.
func (c *AnalysisClient) cachedArtifact(ctx context.Context, kind string, fetch func() ([]byte, error)) ([]byte, error) {
	key := ports.ArtifactKey{
		NetworkID:     c.networkID,
		WorkerVersion: c.workerVersion,
		Fingerprint:   c.fingerprint,
		Kind:          kind,
	}

	if c.artifacts != nil {
		data, ok, err := c.artifacts.Get(ctx, key)
		if err != nil {
			log.Printf("artifact cache read failed: kind=%s err=%v", kind, err)
		} else if ok {
			return data, nil
		}
	}

	data, err := fetch()
	if err != nil {
		return nil, err
	}

	if c.artifacts != nil {
		if err := c.artifacts.Put(ctx, key, data); err != nil {
			log.Printf("artifact cache write failed: kind=%s err=%v", kind, err)
		}
	}

	return data, nil
}
