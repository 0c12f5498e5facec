package ports

import "context"

// Kinds of static artifacts fetched once per session.
const (
	ArtifactMetadata  = "static-metadata"
	ArtifactStopTrees = "static-stop-trees"
	// Grid kinds are "grid:" plus a hash of the grid URL.
	ArtifactGrid      = "grid"
)

// Identifies a cached static artifact.
type ArtifactKey struct {
	NetworkID     string
	WorkerVersion string
	Fingerprint   string
	Kind          string
}

// Persistent store for static artifacts. Get reports ok=false on a miss.
type ArtifactCache interface {
	Get(ctx context.Context, key ArtifactKey) (data []byte, ok bool, err error)
	Put(ctx context.Context, key ArtifactKey, data []byte) error
}
