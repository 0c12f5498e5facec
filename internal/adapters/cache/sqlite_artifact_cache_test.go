package cache

import (
	"context"
	"database/sql"
	"isochrone-explorer/internal/ports"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := InitSchema(db, DriverSQLite); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return db
}

func TestSqliteArtifactCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewSqliteArtifactCache(openTestDB(t))

	key := ports.ArtifactKey{NetworkID: "net", WorkerVersion: "v1.5.0", Fingerprint: "fp", Kind: ports.ArtifactStopTrees}

	_, ok, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected miss on empty cache")
	}

	if err := c.Put(ctx, key, []byte{1, 2, 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Put(ctx, key, []byte{4, 5}); err != nil {
		t.Fatalf("put replace: %v", err)
	}

	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(data) != string([]byte{4, 5}) {
		t.Fatalf("payload = %v, want [4 5]", data)
	}

	other := key
	other.WorkerVersion = "v2.0.0"
	if _, ok, _ := c.Get(ctx, other); ok {
		t.Fatalf("worker version should be part of the key")
	}
}

func TestSqliteArtifactCacheRejectsIncompleteKey(t *testing.T) {
	c := NewSqliteArtifactCache(openTestDB(t))

	if err := c.Put(context.Background(), ports.ArtifactKey{Kind: ports.ArtifactGrid}, []byte("x")); err == nil {
		t.Fatalf("expected error for incomplete key")
	}
}

func TestInitSchemaUnsupportedDriver(t *testing.T) {
	if err := InitSchema(openTestDB(t), "mysql"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
