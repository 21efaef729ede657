// Package app contains the build orchestrator: it runs the selector, fans
// the resulting plan out to the worker pool, and folds the outcomes back
// into the persisted analysis.
package app

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"go.trai.ch/zerr"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/selector"
	"go.trai.ch/kiln/internal/engine/worker"
)

// CompileSpec is the payload sent to a worker for one unit. The worker
// compiles the source and reports the dependency facts it observed.
type CompileSpec struct {
	Unit   string `json:"unit"`
	Source string `json:"source"`
}

// CompileOutcome is the value a worker returns for a successfully compiled
// unit.
type CompileOutcome struct {
	Dependencies []string          `json:"dependencies,omitempty"`
	Constants    map[string]string `json:"constants,omitempty"`
}

// UnitFailure describes one unit whose compilation failed.
type UnitFailure struct {
	Unit string
	Err  error
}

// Report summarizes one build invocation.
type Report struct {
	Decision selector.Decision
	// Reason explains a full-rebuild decision. Empty for incremental builds.
	Reason string
	// Attempted is how many units the plan scheduled.
	Attempted int
	// Succeeded is how many of them compiled.
	Succeeded int
	// Failures lists the units that did not compile, sorted by unit name.
	Failures []UnitFailure
	// RemovedUnits lists units whose source disappeared. Their analysis
	// entries are purged; deleting their output artifacts is the embedding
	// toolchain's job, driven by this list.
	RemovedUnits []string
}

// UpToDate reports whether the invocation had nothing to do.
func (r *Report) UpToDate() bool {
	return r.Attempted == 0 && len(r.RemovedUnits) == 0
}

// Builder is the top-level build operation.
type Builder struct {
	selector *selector.Selector
	workers  *worker.Factory
	logger   ports.Logger
	tracer   ports.Tracer
}

// NewBuilder creates a new Builder.
func NewBuilder(
	sel *selector.Selector,
	workers *worker.Factory,
	logger ports.Logger,
	tracer ports.Tracer,
) *Builder {
	return &Builder{
		selector: sel,
		workers:  workers,
		logger:   logger,
		tracer:   tracer,
	}
}

// Build runs one incremental build: plan, compile, merge. Per-unit failures
// never abort the invocation; they are recorded in the analysis and retried
// on the next run. Only infrastructure failures (unusable configuration,
// unwritable state) are returned as errors.
func (b *Builder) Build(ctx context.Context, settings domain.Settings, fingerprint string) (*Report, error) {
	ctx, span := b.tracer.Start(ctx, "build")
	defer span.End()

	plan, err := b.selector.Plan(ctx, selector.Request{
		Roots:       settings.Roots,
		Fingerprint: fingerprint,
		Policy:      settings.Policy,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	names := make([]string, len(plan.Units))
	for i, u := range plan.Units {
		names[i] = u.String()
	}
	b.tracer.EmitPlan(ctx, names)

	report := &Report{
		Decision:  plan.Decision,
		Reason:    plan.Reason,
		Attempted: len(plan.Units),
	}
	for _, u := range plan.RemovedUnits {
		report.RemovedUnits = append(report.RemovedUnits, u.String())
	}

	if plan.Empty() {
		b.logger.Info("everything up to date")
		return report, nil
	}

	outcomes, err := b.compile(ctx, settings.Workers, fingerprint, plan)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for _, o := range outcomes {
		if o.Err != nil {
			report.Failures = append(report.Failures, UnitFailure{Unit: o.Unit.String(), Err: o.Err})
			continue
		}
		report.Succeeded++
	}

	if _, err := b.selector.Merge(plan, outcomes); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return report, nil
}

// compile executes the plan on a fresh worker pool and collects one outcome
// per planned unit.
func (b *Builder) compile(
	ctx context.Context,
	settings domain.WorkerSettings,
	fingerprint string,
	plan *selector.Plan,
) ([]selector.UnitOutcome, error) {
	pool, err := b.workers.New(settings)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create worker pool")
	}
	defer pool.Shutdown()

	var (
		mu       sync.Mutex
		outcomes = make([]selector.UnitOutcome, 0, len(plan.Units))
	)

	// The pool bounds admission to size plus queue depth; the group limit
	// keeps submissions below that bound so nothing fails with a full queue.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pool.Capacity())

	for _, unit := range plan.Units {
		g.Go(func() error {
			outcome := b.compileOne(gctx, pool, fingerprint, unit, plan.Sources[unit])
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

// compileOne submits a single unit and interprets the result.
func (b *Builder) compileOne(
	ctx context.Context,
	pool *worker.Pool,
	fingerprint string,
	unit domain.InternedString,
	source string,
) selector.UnitOutcome {
	outcome := selector.UnitOutcome{Unit: unit, Source: source}

	payload, err := json.Marshal(CompileSpec{Unit: unit.String(), Source: source})
	if err != nil {
		outcome.Err = zerr.Wrap(err, "failed to encode compile spec")
		return outcome
	}

	result := pool.Submit(ctx, domain.WorkItem{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Payload:     payload,
	})
	if result.Err != nil {
		b.logger.Error(zerr.With(result.Err, "unit", unit.String()))
		outcome.Err = result.Err
		return outcome
	}

	var compiled CompileOutcome
	if err := json.Unmarshal(result.Value, &compiled); err != nil {
		outcome.Err = zerr.Wrap(err, "malformed compile outcome")
		return outcome
	}

	outcome.Dependencies = make([]domain.InternedString, len(compiled.Dependencies))
	for i, dep := range compiled.Dependencies {
		outcome.Dependencies[i] = domain.NewInternedString(dep)
	}
	outcome.Constants = compiled.Constants
	return outcome
}
