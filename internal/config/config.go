package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultNetworkID     = "523c1aa4d0104e4eaeb1b6dab4e14e80"
	DefaultWorkerVersion = "v1.5.0"
)

// Isochrone engine backends selected by ENGINE.
const (
	EngineHTTP = "http"
	EngineMock = "mock"
)

// Config is the environment-supplied configuration for the server and the
// cache warmer. Nothing here is exposed to the browser.
type Config struct {
	Port string `validate:"required,numeric"`

	ComputeURL    string `validate:"required,url"`
	NetworkID     string `validate:"required"`
	WorkerVersion string `validate:"required"`

	AuthURL      string `validate:"required_with=APIKeyID APIKeySecret,omitempty,url"`
	APIKeyID     string `validate:"required_with=AuthURL APIKeySecret"`
	APIKeySecret string `validate:"required_with=AuthURL APIKeyID"`

	GridURL  string `validate:"omitempty,url"`
	GridName string `validate:"required"`

	Engine         string `validate:"oneof=http mock"`
	EngineURL      string `validate:"omitempty,url"`
	TripParamsPath string

	DatabaseURL string
	DBPath      string
	RedisURL    string

	SurfaceCacheSize int           `validate:"gt=0"`
	SurfaceCacheTTL  time.Duration `validate:"gt=0"`
}

// UsesAuth reports whether job requests need a bearer token first.
func (c Config) UsesAuth() bool {
	return c.AuthURL != "" && c.APIKeyID != "" && c.APIKeySecret != ""
}

// CheckEngine reports an error unless the selected engine can be built: the
// sidecar needs ENGINE_URL, and the mock must be asked for by name.
func (c Config) CheckEngine() error {
	if c.Engine == EngineHTTP && c.EngineURL == "" {
		return errors.New("ENGINE_URL is required (set ENGINE=mock to run the mock engine)")
	}
	return nil
}

// Load reads the configuration from the process environment. Callers are
// expected to have run godotenv.Load beforehand.
func Load() (Config, error) {
	cacheSize, err := strconv.Atoi(Get("SURFACE_CACHE_SIZE", "256"))
	if err != nil {
		return Config{}, fmt.Errorf("load config: SURFACE_CACHE_SIZE: %w", err)
	}

	cacheTTL, err := time.ParseDuration(Get("SURFACE_CACHE_TTL", "10m"))
	if err != nil {
		return Config{}, fmt.Errorf("load config: SURFACE_CACHE_TTL: %w", err)
	}

	cfg := Config{
		Port:             Get("PORT", "8080"),
		ComputeURL:       strings.TrimSpace(os.Getenv("COMPUTE_URL")),
		NetworkID:        Get("NETWORK_ID", DefaultNetworkID),
		WorkerVersion:    Get("WORKER_VERSION", DefaultWorkerVersion),
		AuthURL:          strings.TrimSpace(os.Getenv("AUTH_URL")),
		APIKeyID:         strings.TrimSpace(os.Getenv("API_KEY_ID")),
		APIKeySecret:     strings.TrimSpace(os.Getenv("API_KEY_SECRET")),
		GridURL:          strings.TrimSpace(os.Getenv("GRID_URL")),
		GridName:         Get("GRID_NAME", "jobs"),
		Engine:           strings.ToLower(Get("ENGINE", EngineHTTP)),
		EngineURL:        strings.TrimSpace(os.Getenv("ENGINE_URL")),
		TripParamsPath:   strings.TrimSpace(os.Getenv("TRIP_PARAMS_PATH")),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBPath:           strings.TrimSpace(os.Getenv("DB_PATH")),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		SurfaceCacheSize: cacheSize,
		SurfaceCacheTTL:  cacheTTL,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
