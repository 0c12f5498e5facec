package main

import (
	"context"
	"database/sql"
	"isochrone-explorer/internal/adapters/cache"
	"isochrone-explorer/internal/adapters/compute"
	"isochrone-explorer/internal/config"
	"isochrone-explorer/internal/domain"
	"isochrone-explorer/internal/platform/db"
	"isochrone-explorer/internal/ports"
	"log"

	"github.com/joho/godotenv"
)

// warmcache initializes the artifact cache schema and fetches the static
// session artifacts into it, so the server starts without hitting compute.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	conn, artifacts := openCache(cfg)
	defer conn.Close()

	trip := domain.DefaultTripRequest()
	if cfg.TripParamsPath != "" {
		trip, err = domain.LoadTripRequest(cfg.TripParamsPath)
		if err != nil {
			log.Fatal(err)
		}
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
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	log.Printf("Warming artifacts: network=%s worker=%s fingerprint=%s",
		cfg.NetworkID, cfg.WorkerVersion, client.Fingerprint())

	md, err := client.FetchMetadata(ctx)
	if err != nil {
		log.Fatalf("metadata failed: %v", err)
	}
	log.Printf("Metadata ready: zoom=%d grid=%dx%d", md.Zoom, md.Width, md.Height)

	trees, err := client.FetchStopTrees(ctx)
	if err != nil {
		log.Fatalf("stop trees failed: %v", err)
	}
	log.Printf("Stop trees ready: bytes=%d", len(trees))

	grid, err := client.FetchGrid(ctx)
	if err != nil {
		log.Fatalf("grid failed: %v", err)
	}
	if grid == nil {
		log.Println("No GRID_URL set, skipping grid.")
	} else {
		log.Printf("Grid ready: name=%s bytes=%d", cfg.GridName, len(grid))
	}

	log.Println("Warm complete.")
}

func openCache(cfg config.Config) (*sql.DB, ports.ArtifactCache) {
	switch {
	case cfg.DatabaseURL != "":
		conn, err := db.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		log.Println("Initializing postgres schema...")
		if err := cache.InitSchema(conn, cache.DriverPostgres); err != nil {
			log.Fatalf("schema initialization failed: %v", err)
		}
		return conn, cache.NewSQLArtifactCache(conn)

	case cfg.DBPath != "":
		conn, err := db.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatal(err)
		}
		log.Println("Initializing sqlite schema...")
		if err := cache.InitSchema(conn, cache.DriverSQLite); err != nil {
			log.Fatalf("schema initialization failed: %v", err)
		}
		return conn, cache.NewSqliteArtifactCache(conn)

	default:
		log.Fatal("DATABASE_URL or DB_PATH is required")
		return nil, nil
	}
}
