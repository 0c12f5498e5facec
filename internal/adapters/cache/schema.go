package cache

import (
	"database/sql"
	"errors"
	"fmt"
)

// Driver names accepted by InitSchema and the artifact caches.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Initialize the artifact cache schema for the given driver.
func InitSchema(db *sql.DB, driver string) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	blobType := "BLOB"
	switch driver {
	case DriverSQLite:
	case DriverPostgres:
		blobType = "BYTEA"
	default:
		return fmt.Errorf("init schema: unsupported driver %q", driver)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createArtifactCacheQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS artifact_cache (
		network_id TEXT NOT NULL,
		worker_version TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload %s NOT NULL,
		fetched_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (network_id, worker_version, fingerprint, kind)
	);
	`, blobType)

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_artifact_cache_fetched_at
	ON artifact_cache(fetched_at);
	`

	statements := []string{
		createArtifactCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
