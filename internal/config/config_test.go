package config

import (
	"testing"
	"time"
)

var keys = []string{
	"PORT", "COMPUTE_URL", "NETWORK_ID", "WORKER_VERSION",
	"AUTH_URL", "API_KEY_ID", "API_KEY_SECRET",
	"GRID_URL", "GRID_NAME", "ENGINE", "ENGINE_URL", "TRIP_PARAMS_PATH",
	"DATABASE_URL", "DB_PATH", "REDIS_URL",
	"SURFACE_CACHE_SIZE", "SURFACE_CACHE_TTL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMPUTE_URL", "https://compute.example.com/api/enqueue/single")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.NetworkID != DefaultNetworkID || cfg.WorkerVersion != DefaultWorkerVersion {
		t.Fatalf("unexpected network defaults: %+v", cfg)
	}
	if cfg.GridName != "jobs" {
		t.Fatalf("GridName = %q, want jobs", cfg.GridName)
	}
	if cfg.SurfaceCacheSize != 256 || cfg.SurfaceCacheTTL != 10*time.Minute {
		t.Fatalf("unexpected surface cache bounds: %d %s", cfg.SurfaceCacheSize, cfg.SurfaceCacheTTL)
	}
	if cfg.UsesAuth() {
		t.Fatalf("expected no credential exchange")
	}
}

func TestLoadRequiresComputeURL(t *testing.T) {
	clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatalf("expected error without COMPUTE_URL")
	}
}

func TestLoadCredentialsAllOrNone(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMPUTE_URL", "https://compute.example.com/api/enqueue/single")
	t.Setenv("API_KEY_ID", "key")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for partial credentials")
	}

	t.Setenv("AUTH_URL", "https://auth.example.com/oauth/token")
	t.Setenv("API_KEY_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.UsesAuth() {
		t.Fatalf("expected credential exchange")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"SURFACE_CACHE_SIZE": "many",
		"SURFACE_CACHE_TTL":  "soon",
		"PORT":               "http",
		"ENGINE_URL":         "not a url",
	}

	for key, value := range cases {
		clearEnv(t)
		t.Setenv("COMPUTE_URL", "https://compute.example.com/api/enqueue/single")
		t.Setenv(key, value)

		if _, err := Load(); err == nil {
			t.Fatalf("%s=%q: expected error", key, value)
		}
	}
}

func TestGet(t *testing.T) {
	t.Setenv("CONFIG_TEST_KEY", "  value ")
	if got := Get("CONFIG_TEST_KEY", "fallback"); got != "value" {
		t.Fatalf("Get = %q, want value", got)
	}

	t.Setenv("CONFIG_TEST_KEY", "   ")
	if got := Get("CONFIG_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("Get = %q, want fallback", got)
	}
}

func TestCheckEngine(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMPUTE_URL", "https://compute.example.com/api/enqueue/single")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Engine != EngineHTTP {
		t.Fatalf("Engine = %q, want http", cfg.Engine)
	}
	if err := cfg.CheckEngine(); err == nil {
		t.Fatalf("expected error for sidecar engine without ENGINE_URL")
	}

	t.Setenv("ENGINE_URL", "http://localhost:9000")
	if cfg, err = Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.CheckEngine(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("ENGINE_URL", "")
	t.Setenv("ENGINE", "mock")
	if cfg, err = Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cfg.CheckEngine(); err != nil {
		t.Fatalf("mock engine should need no url: %v", err)
	}

	t.Setenv("ENGINE", "wasm")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown engine")
	}
}
