package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"isochrone-explorer/internal/ports"
)

// SQLite backed cache for static session artifacts. Used for local runs
// where no Postgres instance is configured.
type SqliteArtifactCache struct {
	DB *sql.DB
}

func NewSqliteArtifactCache(db *sql.DB) *SqliteArtifactCache {
	return &SqliteArtifactCache{DB: db}
}

// Fetch a cached artifact. ok is false on a miss.
func (s *SqliteArtifactCache) Get(ctx context.Context, key ports.ArtifactKey) ([]byte, bool, error) {
	if s.DB == nil {
		return nil, false, errors.New("artifact cache: db is nil")
	}

	if err := validateKey(key); err != nil {
		return nil, false, fmt.Errorf("get artifact cache: %w", err)
	}

	q := `
	SELECT payload
	FROM artifact_cache
	WHERE network_id = ?
		AND worker_version = ?
		AND fingerprint = ?
		AND kind = ?;
	`

	var payload []byte
	err := s.DB.QueryRowContext(ctx, q, key.NetworkID, key.WorkerVersion, key.Fingerprint, key.Kind).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get artifact cache: query artifact_cache table: %w", err)
	}

	return payload, true, nil
}

// Store an artifact, replacing any previous payload for the same key.
func (s *SqliteArtifactCache) Put(ctx context.Context, key ports.ArtifactKey, data []byte) error {
	if s.DB == nil {
		return errors.New("artifact cache: db is nil")
	}

	if err := validateKey(key); err != nil {
		return fmt.Errorf("insert artifact cache: %w", err)
	}

	q := `
	INSERT OR REPLACE INTO artifact_cache (
		network_id,
		worker_version,
		fingerprint,
		kind,
		payload,
		fetched_at
	)
	VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
	`

	if _, err := s.DB.ExecContext(ctx, q, key.NetworkID, key.WorkerVersion, key.Fingerprint, key.Kind, data); err != nil {
		return fmt.Errorf("insert artifact cache kind=%q: %w", key.Kind, err)
	}

	return nil
}
