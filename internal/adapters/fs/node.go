package fs

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/kiln/internal/core/ports"
)

const (
	WalkerNodeID      graft.ID = "adapter.fs.walker"
	SnapshotterNodeID graft.ID = "adapter.fs.snapshotter"
	ResolverNodeID    graft.ID = "adapter.fs.resolver"
)

func init() {
	// Walker Node (concrete implementation needed by Snapshotter)
	graft.Register(graft.Node[*Walker]{
		ID:        WalkerNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (*Walker, error) {
			return NewWalker(), nil
		},
	})

	// Snapshotter Node
	graft.Register(graft.Node[ports.Snapshotter]{
		ID:        SnapshotterNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{WalkerNodeID},
		Run: func(ctx context.Context) (ports.Snapshotter, error) {
			walker, err := graft.Dep[*Walker](ctx)
			if err != nil {
				return nil, err
			}
			return NewSnapshotter(walker), nil
		},
	})

	// Resolver Node
	graft.Register(graft.Node[ports.UnitResolver]{
		ID:        ResolverNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.UnitResolver, error) {
			return NewResolver(), nil
		},
	})
}
