package fs

import (
	"context"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

var _ ports.Snapshotter = (*Snapshotter)(nil)

// Snapshotter implements ports.Snapshotter on top of os.Stat. It is purely
// observational and never reads file content; that is what keeps up-to-date
// checking cheap.
type Snapshotter struct {
	walker *Walker
}

// NewSnapshotter creates a new Snapshotter.
func NewSnapshotter(walker *Walker) *Snapshotter {
	return &Snapshotter{walker: walker}
}

// Stat snapshots a single path. Filesystem errors (permission denied, a file
// disappearing mid-stat) fold into a Missing snapshot; so does anything that
// is neither a regular file nor a directory.
func (s *Snapshotter) Stat(path string) domain.FileSnapshot {
	info, err := os.Stat(path)
	if err != nil {
		return domain.FileSnapshot{Path: path, Kind: domain.Missing}
	}
	if info.IsDir() {
		return domain.FileSnapshot{
			Path:          path,
			Kind:          domain.Directory,
			ModTimeMillis: info.ModTime().UnixMilli(),
		}
	}
	if !info.Mode().IsRegular() {
		return domain.FileSnapshot{Path: path, Kind: domain.Missing}
	}
	return domain.FileSnapshot{
		Path:          path,
		Kind:          domain.RegularFile,
		ModTimeMillis: info.ModTime().UnixMilli(),
		Length:        info.Size(),
	}
}

// SnapshotTree walks every root and snapshots all matching source files.
// Stats run concurrently; snapshots are independent point queries so no
// ordering is needed.
func (s *Snapshotter) SnapshotTree(ctx context.Context, roots domain.SourceRootSet) (map[string]domain.FileSnapshot, error) {
	if err := roots.Validate(); err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	var mu sync.Mutex
	snapshots := make(map[string]domain.FileSnapshot)

	for _, root := range roots.Roots {
		for path := range s.walker.WalkSources(root, roots.Extension) {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				snap := s.Stat(path)
				if snap.Kind != domain.RegularFile {
					// Raced away between walk and stat.
					return nil
				}
				mu.Lock()
				snapshots[snap.Path] = snap
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}
