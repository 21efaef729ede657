// Package kiln exposes the incremental-build engine to embedders: build
// orchestration on the coordinator side and the work protocol loop on the
// worker side. There is deliberately no command-line surface; frontends own
// argument parsing and output rendering.
package kiln

import (
	"context"
	"io"

	"github.com/grindlemire/graft"

	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/worker"
	_ "go.trai.ch/kiln/internal/wiring"
)

// Settings is the full engine configuration.
type Settings = domain.Settings

// Report summarizes one build invocation.
type Report = app.Report

// CompileSpec is the payload a worker receives for one compiled unit.
type CompileSpec = app.CompileSpec

// CompileOutcome is the value a worker returns for a compiled unit.
type CompileOutcome = app.CompileOutcome

// Handler executes one unit of work inside a worker process.
type Handler = worker.Handler

// Fingerprint derives a deterministic configuration fingerprint from
// toolchain configuration values. Builds whose fingerprint changed start
// from a clean analysis.
func Fingerprint(values map[string]string) string {
	return domain.ConfigFingerprint(values)
}

// Build runs one incremental build for the kiln.yaml settings found in cwd.
func Build(ctx context.Context, cwd, fingerprint string) (*Report, error) {
	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		return nil, err
	}

	settings, err := components.Loader.Load(cwd)
	if err != nil {
		return nil, err
	}
	return components.Builder.Build(ctx, *settings, fingerprint)
}

// BuildWithSettings runs one incremental build with explicit settings,
// bypassing the configuration file.
func BuildWithSettings(ctx context.Context, settings Settings, fingerprint string) (*Report, error) {
	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		return nil, err
	}
	return components.Builder.Build(ctx, settings, fingerprint)
}

// ServeWorker runs the worker side of the work protocol. A worker binary
// calls it on its stdin/stdout and returns when the coordinator releases the
// worker by closing its input.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer, handle Handler) error {
	return worker.Serve(ctx, r, w, handle)
}
