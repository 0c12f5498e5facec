package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"isochrone-explorer/internal/adapters/cache"
	"isochrone-explorer/internal/adapters/compute"
	"isochrone-explorer/internal/adapters/engine"
	"isochrone-explorer/internal/api"
	"isochrone-explorer/internal/config"
	"isochrone-explorer/internal/domain"
	"isochrone-explorer/internal/platform/db"
	"isochrone-explorer/internal/ports"
	"isochrone-explorer/internal/services"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

// main is the application composition root.
// It wires the compute client, caches and isochrone engine behind ports,
// starts loading the session and serves the map view.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trip := domain.DefaultTripRequest()
	if cfg.TripParamsPath != "" {
		trip, err = domain.LoadTripRequest(cfg.TripParamsPath)
		if err != nil {
			log.Fatal(err)
		}
	}

	artifacts, sqlDB, err := openArtifactCache(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if sqlDB != nil {
		defer sqlDB.Close()
	}

	surfaces, err := openSurfaceCache(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	client, err := compute.NewAnalysisClient(compute.Options{
		ComputeURL:    cfg.ComputeURL,
		GridURL:       cfg.GridURL,
		NetworkID:     cfg.NetworkID,
		WorkerVersion: cfg.WorkerVersion,
		Request:       domain.NewStaticRequest(cfg.NetworkID, trip),
		AuthURL:       cfg.AuthURL,
		APIKeyID:      cfg.APIKeyID,
		APIKeySecret:  cfg.APIKeySecret,
		Artifacts:     artifacts,
		Surfaces:      surfaces,
	})
	if err != nil {
		log.Fatal(err)
	}

	eng, err := newEngine(cfg)
	if err != nil {
		log.Fatal(err)
	}

	session := services.NewSession(client, eng, cfg.GridName, domain.BostonCommon, domain.LifeAlive)
	go func() {
		start := time.Now()
		if err := session.Load(ctx); err != nil {
			log.Printf("session load failed: network=%s err=%v", cfg.NetworkID, err)
			return
		}
		log.Printf("session loaded: network=%s fingerprint=%s dur=%dms",
			cfg.NetworkID, client.Fingerprint(), time.Since(start).Milliseconds())
	}()

	// Write timeout covers a cold surface fetch plus generation.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(session),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown failed: %v", err)
		}
	}()

	log.Printf("Server listening addr=:%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// openArtifactCache prefers Postgres, then SQLite. With neither configured
// artifacts are fetched on every start.
func openArtifactCache(cfg config.Config) (ports.ArtifactCache, *sql.DB, error) {
	switch {
	case cfg.DatabaseURL != "":
		conn, err := db.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := cache.InitSchema(conn, cache.DriverPostgres); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return cache.NewSQLArtifactCache(conn), conn, nil

	case cfg.DBPath != "":
		conn, err := db.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := cache.InitSchema(conn, cache.DriverSQLite); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return cache.NewSqliteArtifactCache(conn), conn, nil

	default:
		log.Println("No artifact cache configured (set DATABASE_URL or DB_PATH)")
		return nil, nil, nil
	}
}

func openSurfaceCache(ctx context.Context, cfg config.Config) (ports.SurfaceCache, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemorySurfaceCache(cfg.SurfaceCacheSize, cfg.SurfaceCacheTTL), nil
	}

	rdb, err := cache.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("open surface cache: %w", err)
	}
	return cache.NewRedisSurfaceCache(rdb, cfg.SurfaceCacheTTL), nil
}

func newEngine(cfg config.Config) (ports.IsochroneEngine, error) {
	if err := cfg.CheckEngine(); err != nil {
		return nil, err
	}
	if cfg.Engine == config.EngineMock {
		log.Println("ENGINE=mock (serving synthetic isochrones)")
		return engine.NewMockEngine(), nil
	}
	return engine.NewHTTPEngine(cfg.EngineURL)
}
