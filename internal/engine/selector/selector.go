// Package selector implements the recompilation selector: it decides, per
// build invocation, which compiled units need reprocessing.
//
// One invocation moves through diffing, then either closure computation or a
// full-rebuild decision, and ends with an emitted plan. The selector holds no
// state across invocations except the persisted analysis record, which it
// owns exclusively.
package selector

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.trai.ch/zerr"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// Decision is the terminal state of one selector invocation.
type Decision string

const (
	// DecisionIncremental means the plan covers the minimal dependency-closed
	// set of units.
	DecisionIncremental Decision = "incremental"
	// DecisionFullRebuild means the prior analysis could not be trusted or
	// incremental compilation was not worthwhile; everything recompiles.
	DecisionFullRebuild Decision = "full-rebuild"
)

// Request carries the invocation parameters supplied by the orchestrator.
type Request struct {
	Roots domain.SourceRootSet
	// Fingerprint is the opaque toolchain/configuration fingerprint. An
	// analysis recorded under a different fingerprint is stale.
	Fingerprint string
	Policy      domain.SelectorPolicy
}

// Plan is the emitted work plan of one invocation.
type Plan struct {
	Decision Decision
	// Reason explains a full-rebuild decision. Empty for incremental plans.
	Reason string
	// Units is the dependency-closed set of units to recompile, sorted.
	Units []domain.InternedString
	// Sources maps each unit in Units to the source path to compile.
	Sources map[domain.InternedString]string
	// RemovedUnits lists units whose source was deleted: their artifacts
	// must be removed and their analysis entries are purged on merge.
	RemovedUnits []domain.InternedString
	// Snapshots is the current snapshot set the plan was computed against.
	Snapshots map[string]domain.FileSnapshot

	key   domain.StateKey
	prior *domain.AnalysisRecord
}

// Empty reports whether the plan requires no work.
func (p *Plan) Empty() bool {
	return p.Decision == DecisionIncremental && len(p.Units) == 0 && len(p.RemovedUnits) == 0
}

// UnitOutcome is the per-unit result of executing the plan: the raw
// dependency facts a worker observed, or the failure that prevented them.
type UnitOutcome struct {
	Unit         domain.InternedString
	Source       string
	Dependencies []domain.InternedString
	Constants    map[string]string
	Err          error
}

// Selector computes recompilation plans and folds execution outcomes back
// into the persisted analysis.
type Selector struct {
	snapshotter ports.Snapshotter
	resolver    ports.UnitResolver
	store       ports.AnalysisStore
	logger      ports.Logger
	tracer      ports.Tracer
}

// NewSelector creates a new Selector.
func NewSelector(
	snapshotter ports.Snapshotter,
	resolver ports.UnitResolver,
	store ports.AnalysisStore,
	logger ports.Logger,
	tracer ports.Tracer,
) *Selector {
	return &Selector{
		snapshotter: snapshotter,
		resolver:    resolver,
		store:       store,
		logger:      logger,
		tracer:      tracer,
	}
}

// Plan computes the work plan for the current filesystem state. Staleness of
// the persisted analysis is never an error: it degrades to a full-rebuild
// plan. Configuration errors (malformed root set, sources outside all roots)
// are fatal to the invocation.
func (s *Selector) Plan(ctx context.Context, req Request) (*Plan, error) {
	if err := req.Roots.Validate(); err != nil {
		return nil, err
	}
	key := domain.StateKey{RootsID: domain.RootsID(req.Roots), Fingerprint: req.Fingerprint}

	ctx, span := s.tracer.Start(ctx, "selector.plan")
	defer span.End()

	current, err := s.snapshotter.SnapshotTree(ctx, req.Roots)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	prior, err := s.store.Load(key)
	if err != nil {
		if !errors.Is(err, domain.ErrStaleAnalysis) {
			// Defensive: the store contract says every load failure is
			// staleness, but degrade on anything unexpected too.
			err = zerr.Wrap(domain.ErrStaleAnalysis, err.Error())
		}
		s.logger.Warn("prior analysis unusable, scheduling full rebuild")
		return s.fullRebuild(req, key, current, err.Error())
	}

	changes := domain.DiffSnapshots(prior.Snapshots, current)

	seeds, removed, err := s.seed(prior, changes, req.Roots)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(seeds) == 0 && len(removed) == 0 {
		return &Plan{
			Decision:  DecisionIncremental,
			Sources:   map[domain.InternedString]string{},
			Snapshots: current,
			key:       key,
			prior:     prior,
		}, nil
	}

	if reason, giveUp := giveUpSignal(prior.Analysis, seeds, removed); giveUp {
		return s.fullRebuild(req, key, current, reason)
	}

	closed := closure(prior.Analysis, union(seeds, removed))

	if total := prior.Analysis.Len(); total > 0 {
		fraction := float64(len(closed)) / float64(total)
		if fraction > req.Policy.Threshold() {
			reason := fmt.Sprintf("closure covers %.0f%% of %d units", fraction*100, total)
			return s.fullRebuild(req, key, current, reason)
		}
	}

	return s.emit(req, key, prior, current, closed, removed)
}

// seed derives the directly-changed unit set from the change set plus the
// units whose previous compilation failed. Removed units are returned
// separately: they participate in closure but are not compiled.
func (s *Selector) seed(
	prior *domain.AnalysisRecord,
	changes domain.ChangeSet,
	roots domain.SourceRootSet,
) (seeds, removed map[domain.InternedString]struct{}, err error) {
	seeds = make(map[domain.InternedString]struct{})
	removed = make(map[domain.InternedString]struct{})

	for _, path := range changes.Modified {
		units := prior.Analysis.UnitsForSource(path)
		if len(units) == 0 {
			units, err = s.resolver.UnitsForSource(path, roots)
			if err != nil {
				return nil, nil, err
			}
		}
		for _, u := range units {
			seeds[u] = struct{}{}
		}
	}

	for _, path := range changes.Added {
		units, err := s.resolver.UnitsForSource(path, roots)
		if err != nil {
			return nil, nil, err
		}
		for _, u := range units {
			seeds[u] = struct{}{}
		}
	}

	for _, path := range changes.Removed {
		for _, u := range prior.Analysis.UnitsForSource(path) {
			removed[u] = struct{}{}
		}
	}

	// Units whose last compilation failed must be attempted again even if
	// their inputs are unchanged.
	for _, u := range prior.Failed {
		if _, gone := removed[u]; !gone {
			seeds[u] = struct{}{}
		}
	}

	return seeds, removed, nil
}

// giveUpSignal checks for dependency facts the analysis cannot track through
// the graph: a changed or removed unit exposing ABI constants (values are
// inlined at use sites), or any unit carrying a wildcard dependency.
func giveUpSignal(
	analysis domain.Analysis,
	seeds, removed map[domain.InternedString]struct{},
) (string, bool) {
	for u := range union(seeds, removed) {
		if ua, known := analysis.Units[u]; known && ua.ExposesConstants() {
			return fmt.Sprintf("unit %s exposes ABI constants", u.String()), true
		}
	}
	for name, ua := range analysis.Units {
		if ua.DependsOnAll() {
			return fmt.Sprintf("unit %s has untrackable dependencies", name.String()), true
		}
	}
	return "", false
}

// emit maps the closed unit set back to source paths and assembles the plan.
// A closed unit whose source can no longer be located is treated as removed.
func (s *Selector) emit(
	req Request,
	key domain.StateKey,
	prior *domain.AnalysisRecord,
	current map[string]domain.FileSnapshot,
	closed map[domain.InternedString]struct{},
	removed map[domain.InternedString]struct{},
) (*Plan, error) {
	plan := &Plan{
		Decision:  DecisionIncremental,
		Sources:   make(map[domain.InternedString]string),
		Snapshots: current,
		key:       key,
		prior:     prior,
	}

	for u := range closed {
		if _, gone := removed[u]; gone {
			continue
		}
		source, err := s.sourceFor(u, prior, current, req.Roots)
		if err != nil {
			removed[u] = struct{}{}
			continue
		}
		plan.Units = append(plan.Units, u)
		plan.Sources[u] = source
	}
	slices.SortFunc(plan.Units, domain.CompareUnitNames)

	for u := range removed {
		plan.RemovedUnits = append(plan.RemovedUnits, u)
	}
	slices.SortFunc(plan.RemovedUnits, domain.CompareUnitNames)

	return plan, nil
}

// sourceFor locates the source path of a unit: the analysis-recorded path if
// it still exists, the convention-derived path otherwise.
func (s *Selector) sourceFor(
	unit domain.InternedString,
	prior *domain.AnalysisRecord,
	current map[string]domain.FileSnapshot,
	roots domain.SourceRootSet,
) (string, error) {
	if ua, known := prior.Analysis.Units[unit]; known && ua.Source != "" {
		if _, exists := current[ua.Source]; exists {
			return ua.Source, nil
		}
	}
	return s.resolver.SourceForUnit(unit, roots)
}

// fullRebuild emits the terminal full-rebuild plan: every current source
// unit recompiles and the old analysis is discarded.
func (s *Selector) fullRebuild(
	req Request,
	key domain.StateKey,
	current map[string]domain.FileSnapshot,
	reason string,
) (*Plan, error) {
	plan := &Plan{
		Decision:  DecisionFullRebuild,
		Reason:    reason,
		Sources:   make(map[domain.InternedString]string),
		Snapshots: current,
		key:       key,
	}

	for path := range current {
		units, err := s.resolver.UnitsForSource(path, req.Roots)
		if err != nil {
			return nil, err
		}
		for _, u := range units {
			plan.Units = append(plan.Units, u)
			plan.Sources[u] = path
		}
	}
	slices.SortFunc(plan.Units, domain.CompareUnitNames)

	s.logger.Info("full rebuild: " + reason)
	return plan, nil
}

// Merge folds execution outcomes into a new analysis record and commits it
// atomically. Entries of failed units are left untouched and the units are
// recorded for forced re-selection on the next invocation. Merge must only
// be called with outcomes that were durably collected; a cancelled run that
// never reaches Merge leaves the prior record intact.
func (s *Selector) Merge(plan *Plan, outcomes []UnitOutcome) (*domain.AnalysisRecord, error) {
	analysis := domain.NewAnalysis()
	if plan.Decision == DecisionIncremental && plan.prior != nil {
		analysis = plan.prior.Analysis.Clone()
	}

	for _, u := range plan.RemovedUnits {
		analysis.Remove(u)
	}

	var failed []domain.InternedString
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o.Unit)
			continue
		}
		analysis.Units[o.Unit] = domain.UnitAnalysis{
			Source:       o.Source,
			Dependencies: o.Dependencies,
			Constants:    o.Constants,
		}
	}
	slices.SortFunc(failed, domain.CompareUnitNames)

	record := &domain.AnalysisRecord{
		Version:     domain.AnalysisRecordVersion,
		Fingerprint: plan.key.Fingerprint,
		RootsID:     plan.key.RootsID,
		Snapshots:   plan.Snapshots,
		Analysis:    analysis,
		Failed:      failed,
	}

	if err := s.store.Save(record); err != nil {
		return nil, zerr.Wrap(err, "failed to persist analysis")
	}
	return record, nil
}

func union(a, b map[domain.InternedString]struct{}) map[domain.InternedString]struct{} {
	out := make(map[domain.InternedString]struct{}, len(a)+len(b))
	for u := range a {
		out[u] = struct{}{}
	}
	for u := range b {
		out[u] = struct{}{}
	}
	return out
}
