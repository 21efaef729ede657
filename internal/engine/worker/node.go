package worker

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/kiln/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// FactoryNodeID is the unique identifier for the pool factory Graft node.
// The pool itself is constructed per build operation because its command
// line and sizing come from the orchestrator's settings.
const FactoryNodeID graft.ID = "engine.worker.factory"

// Factory creates worker pools from orchestrator settings.
type Factory struct {
	logger ports.Logger
}

// NewFactory creates a new Factory.
func NewFactory(logger ports.Logger) *Factory {
	return &Factory{logger: logger}
}

// New creates a pool for the given settings.
func (f *Factory) New(settings domain.WorkerSettings) (*Pool, error) {
	return NewPool(FromSettings(settings), f.logger)
}

func init() {
	graft.Register(graft.Node[*Factory]{
		ID:        FactoryNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Factory, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewFactory(log), nil
		},
	})
}
