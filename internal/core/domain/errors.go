package domain

import "go.trai.ch/zerr"

var (
	// ErrOutsideRoots is returned when a source file does not live under any
	// configured source root. This is a configuration error and is fatal to
	// the calling operation.
	ErrOutsideRoots = zerr.New("source file not under any configured root")

	// ErrInvalidRootSet is returned when a source root set is malformed
	// (empty, relative roots, missing extension).
	ErrInvalidRootSet = zerr.New("invalid source root set")

	// ErrStaleAnalysis signals that the persisted analysis cannot be trusted
	// (missing, corrupt, wrong version, or recorded under a different
	// configuration fingerprint). Callers must fall back to a full rebuild,
	// never fail the build.
	ErrStaleAnalysis = zerr.New("persisted analysis is stale")

	// ErrUnitNotFound is returned when a compiled unit is not present in the
	// analysis.
	ErrUnitNotFound = zerr.New("compiled unit not found in analysis")

	// ErrQueueFull is returned by the worker pool when the bounded submission
	// queue cannot admit another item.
	ErrQueueFull = zerr.New("worker queue is full")

	// ErrPoolClosed is returned when work is submitted after Shutdown.
	ErrPoolClosed = zerr.New("worker pool is shut down")

	// ErrWorkerCrashed is returned as the failure of a work item whose worker
	// process died before producing a response.
	ErrWorkerCrashed = zerr.New("worker process crashed")

	// ErrWorkerTimeout is returned as the failure of a work item whose worker
	// did not respond within the configured timeout.
	ErrWorkerTimeout = zerr.New("worker did not respond within timeout")

	// ErrWorkerSpawnFailed is returned when a worker process could not be
	// started.
	ErrWorkerSpawnFailed = zerr.New("failed to spawn worker process")
)
