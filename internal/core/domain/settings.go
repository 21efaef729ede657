package domain

import "time"

// DefaultFullRebuildThreshold is the closure-size fraction above which the
// selector abandons incremental compilation. It is policy, not contract.
const DefaultFullRebuildThreshold = 0.8

// SelectorPolicy holds the tunable heuristics of the recompilation selector.
type SelectorPolicy struct {
	// FullRebuildThreshold is the fraction of all known units beyond which
	// a closure triggers a full rebuild instead of an incremental plan.
	// Zero selects DefaultFullRebuildThreshold.
	FullRebuildThreshold float64 `yaml:"full_rebuild_threshold"`
}

// Threshold returns the effective threshold.
func (p SelectorPolicy) Threshold() float64 {
	if p.FullRebuildThreshold <= 0 {
		return DefaultFullRebuildThreshold
	}
	return p.FullRebuildThreshold
}

// WorkerSettings configures the worker pool.
type WorkerSettings struct {
	// Size is the number of worker processes. Zero selects the available
	// parallelism.
	Size int `yaml:"size"`
	// QueueDepth bounds how many items may wait for a free worker beyond
	// the pool size. Submissions past the bound fail with ErrQueueFull.
	QueueDepth int `yaml:"queue"`
	// Timeout bounds a single item's execution. A worker that does not
	// respond in time is killed and the item fails.
	Timeout time.Duration `yaml:"timeout"`
	// RecycleAfter terminates and respawns a worker after it has served
	// this many items, bounding memory growth from toolchain leaks. Zero
	// disables recycling.
	RecycleAfter int `yaml:"recycle_after"`
	// Command is the worker process command line. The spawned process must
	// speak the newline-delimited JSON work protocol on stdin/stdout.
	Command []string `yaml:"command"`
}

// Settings is the full configuration of the incremental-build core as loaded
// from kiln.yaml or assembled by the orchestrator.
type Settings struct {
	Roots   SourceRootSet  `yaml:"roots"`
	Policy  SelectorPolicy `yaml:"policy"`
	Workers WorkerSettings `yaml:"workers"`
}
