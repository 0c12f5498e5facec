package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"isochrone-explorer/internal/platform/obs"
	"isochrone-explorer/internal/ports"
)

// SQLArtifactCache is a Postgres-backed cache for static session artifacts.
type SQLArtifactCache struct {
	DB *sql.DB
}

func NewSQLArtifactCache(db *sql.DB) *SQLArtifactCache {
	return &SQLArtifactCache{DB: db}
}

// Fetch a cached artifact. ok is false on a miss.
func (s *SQLArtifactCache) Get(
	ctx context.Context,
	key ports.ArtifactKey,
) (_ []byte, _ bool, err error) {
	defer obs.Time(ctx, "artifact.cache.Get")(&err)

	if s.DB == nil {
		return nil, false, errors.New("artifact cache: db is nil")
	}

	if err := validateKey(key); err != nil {
		return nil, false, fmt.Errorf("get artifact cache: %w", err)
	}

	q := `
	SELECT payload
	FROM artifact_cache
	WHERE network_id = $1
		AND worker_version = $2
		AND fingerprint = $3
		AND kind = $4;
	`

	var payload []byte
	err = s.DB.QueryRowContext(ctx, q, key.NetworkID, key.WorkerVersion, key.Fingerprint, key.Kind).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get artifact cache: query artifact_cache table: %w", err)
	}

	return payload, true, nil
}

// Store an artifact, replacing any previous payload for the same key.
func (s *SQLArtifactCache) Put(ctx context.Context, key ports.ArtifactKey, data []byte) error {
	if s.DB == nil {
		return errors.New("artifact cache: db is nil")
	}

	if err := validateKey(key); err != nil {
		return fmt.Errorf("insert artifact cache: %w", err)
	}

	q := `
	INSERT INTO artifact_cache (network_id, worker_version, fingerprint, kind, payload, fetched_at)
	VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
	ON CONFLICT (network_id, worker_version, fingerprint, kind) DO UPDATE
	SET payload = EXCLUDED.payload,
		fetched_at = EXCLUDED.fetched_at;
	`

	if _, err := s.DB.ExecContext(ctx, q, key.NetworkID, key.WorkerVersion, key.Fingerprint, key.Kind, data); err != nil {
		return fmt.Errorf("insert artifact cache kind=%q: %w", key.Kind, err)
	}

	return nil
}

func validateKey(key ports.ArtifactKey) error {
	if key.NetworkID == "" || key.Fingerprint == "" || key.Kind == "" {
		return fmt.Errorf("incomplete artifact key %+v", key)
	}
	return nil
}
