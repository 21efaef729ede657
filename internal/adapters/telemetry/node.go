package telemetry

import (
	"context"

	"github.com/grindlemire/graft"

	"go.trai.ch/kiln/internal/core/ports"
)

// TracerNodeID resolves the default tracer. Headless builds get the no-op
// tracer; frontends wanting progress rendering construct a Recorder
// explicitly.
const TracerNodeID graft.ID = "adapter.telemetry.tracer"

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.Tracer, error) {
			return NewNoOpTracer(), nil
		},
	})
}
