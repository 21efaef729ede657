// Package ports defines the core interfaces for the incremental-build engine.
package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// Snapshotter produces point-in-time metadata fingerprints of filesystem
// paths without reading file content.
//
//go:generate go run go.uber.org/mock/mockgen -source=snapshotter.go -destination=mocks/mock_snapshotter.go -package=mocks
type Snapshotter interface {
	// Stat snapshots a single path. It never fails: filesystem errors fold
	// into a Missing snapshot.
	Stat(path string) domain.FileSnapshot

	// SnapshotTree snapshots every source file under the given roots,
	// filtered by the root set's extension. Snapshots are independent point
	// queries and may be gathered in parallel; no ordering is guaranteed.
	SnapshotTree(ctx context.Context, roots domain.SourceRootSet) (map[string]domain.FileSnapshot, error)
}
