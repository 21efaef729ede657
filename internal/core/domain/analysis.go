package domain

import (
	"slices"
)

// WildcardDependency marks a unit whose dependencies cannot be represented
// precisely (reflective or whole-program access). The selector treats its
// presence on a changed path as a signal to give up and rebuild everything.
var WildcardDependency = NewInternedString("*")

// UnitAnalysis holds the per-unit facts observed during the last successful
// compilation of a compiled unit.
type UnitAnalysis struct {
	// Source is the path of the source file that produced this unit.
	Source string `json:"source,omitempty"`
	// Dependencies lists the unit names this unit depends on. May contain
	// WildcardDependency.
	Dependencies []InternedString `json:"dependencies,omitempty"`
	// Constants maps ABI-relevant constant names exposed by this unit to
	// their values. A change to a constant-exposing unit cannot be tracked
	// through the dependency graph (values are inlined at use sites).
	Constants map[string]string `json:"constants,omitempty"`
}

// DependsOnAll reports whether the unit carries a wildcard dependency.
func (u UnitAnalysis) DependsOnAll() bool {
	return slices.Contains(u.Dependencies, WildcardDependency)
}

// ExposesConstants reports whether the unit exposes ABI-relevant constants.
func (u UnitAnalysis) ExposesConstants() bool {
	return len(u.Constants) > 0
}

// Analysis is the dependency analysis persisted across build invocations:
// for every known compiled unit, its source path, its dependencies, and the
// ABI facts it exposes. The graph is directed and may contain cycles.
//
// The analysis is owned exclusively by the recompilation selector. Worker
// results only report raw facts; the selector folds them in via its merge
// step.
type Analysis struct {
	Units map[InternedString]UnitAnalysis `json:"units"`
}

// NewAnalysis creates an empty analysis.
func NewAnalysis() Analysis {
	return Analysis{Units: make(map[InternedString]UnitAnalysis)}
}

// Len returns the number of known units.
func (a Analysis) Len() int {
	return len(a.Units)
}

// UnitsForSource returns the units produced by the given source path, sorted
// by name. A single source file may define several top-level units.
func (a Analysis) UnitsForSource(path string) []InternedString {
	var units []InternedString
	for name, ua := range a.Units {
		if ua.Source == path {
			units = append(units, name)
		}
	}
	slices.SortFunc(units, CompareUnitNames)
	return units
}

// Remove purges a unit from the analysis. Removing an unknown unit is a
// no-op.
func (a Analysis) Remove(unit InternedString) {
	delete(a.Units, unit)
}

// Clone returns a deep copy of the analysis. The merge step works on a copy
// so a cancelled or failed operation leaves the prior analysis intact.
func (a Analysis) Clone() Analysis {
	out := Analysis{Units: make(map[InternedString]UnitAnalysis, len(a.Units))}
	for name, ua := range a.Units {
		cp := UnitAnalysis{Source: ua.Source}
		cp.Dependencies = slices.Clone(ua.Dependencies)
		if ua.Constants != nil {
			cp.Constants = make(map[string]string, len(ua.Constants))
			for k, v := range ua.Constants {
				cp.Constants[k] = v
			}
		}
		out.Units[name] = cp
	}
	return out
}

// CompareUnitNames orders unit names lexicographically by their string value.
func CompareUnitNames(a, b InternedString) int {
	switch {
	case a.String() < b.String():
		return -1
	case a.String() > b.String():
		return 1
	default:
		return 0
	}
}

// AnalysisRecordVersion is the current persisted record format version.
// Records with any other version are treated as stale, never as an error.
const AnalysisRecordVersion = 1

// StateKey identifies one persisted analysis record: the source root set it
// was recorded for and the toolchain configuration fingerprint it was
// recorded under.
type StateKey struct {
	RootsID     string
	Fingerprint string
}

// AnalysisRecord is the single versioned record persisted between build
// invocations: the analysis itself plus the snapshot set it was recorded
// against and the units whose last compilation failed.
type AnalysisRecord struct {
	Version     int    `json:"version"`
	Fingerprint string `json:"fingerprint"`
	RootsID     string `json:"roots_id"`
	// Snapshots is the recorded snapshot set keyed by source path.
	Snapshots map[string]FileSnapshot `json:"snapshots,omitempty"`
	Analysis  Analysis                `json:"analysis"`
	// Failed lists units whose last compilation failed. They must be
	// re-attempted on the next invocation even if their inputs are
	// unchanged.
	Failed []InternedString `json:"failed,omitempty"`
}

// NewAnalysisRecord creates an empty record for the given key.
func NewAnalysisRecord(key StateKey) *AnalysisRecord {
	return &AnalysisRecord{
		Version:     AnalysisRecordVersion,
		Fingerprint: key.Fingerprint,
		RootsID:     key.RootsID,
		Snapshots:   make(map[string]FileSnapshot),
		Analysis:    NewAnalysis(),
	}
}

// Key returns the state key this record belongs to.
func (r *AnalysisRecord) Key() StateKey {
	return StateKey{RootsID: r.RootsID, Fingerprint: r.Fingerprint}
}
