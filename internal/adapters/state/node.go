package state

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/kiln/internal/core/ports"
)

const NodeID graft.ID = "adapter.analysis_store"

func init() {
	graft.Register(graft.Node[ports.AnalysisStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.AnalysisStore, error) {
			return NewStore(DefaultDir), nil
		},
	})
}
