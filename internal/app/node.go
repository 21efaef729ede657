package app

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/kiln/internal/adapters/config"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/selector"
	"go.trai.ch/kiln/internal/engine/worker"
)

const (
	// NodeID is the unique identifier for the builder Graft node.
	NodeID graft.ID = "app.builder"

	// ComponentsNodeID is the unique identifier for the components bundle.
	ComponentsNodeID graft.ID = "app.components"
)

// Components bundles the resolved top-level collaborators handed to
// embedders.
type Components struct {
	Builder *Builder
	Loader  ports.ConfigLoader
	Logger  ports.Logger
}

func init() {
	graft.Register(graft.Node[*Builder]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			selector.NodeID,
			worker.FactoryNodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
		},
		Run: func(ctx context.Context) (*Builder, error) {
			sel, err := graft.Dep[*selector.Selector](ctx)
			if err != nil {
				return nil, err
			}

			workers, err := graft.Dep[*worker.Factory](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			return NewBuilder(sel, workers, log, tracer), nil
		},
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			NodeID,
			config.NodeID,
			logger.NodeID,
		},
		Run: buildComponents,
	})
}

func buildComponents(ctx context.Context) (*Components, error) {
	builder, err := graft.Dep[*Builder](ctx)
	if err != nil {
		return nil, err
	}

	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		Builder: builder,
		Loader:  loader,
		Logger:  log,
	}, nil
}
