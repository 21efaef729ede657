// Package worker implements the worker coordinator: it executes toolchain
// work inside isolated worker processes, manages their lifecycle, and
// returns correlated results to callers.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// Options configures a Pool.
type Options struct {
	// Size is the number of worker slots. Zero selects the available
	// parallelism.
	Size int
	// QueueDepth bounds how many submissions may wait for a free worker
	// beyond Size. Zero selects Size.
	QueueDepth int
	// Timeout bounds one item's execution; zero disables the deadline.
	Timeout time.Duration
	// RecycleAfter respawns a worker after it served this many items.
	// Zero disables recycling.
	RecycleAfter int
	// Command is the worker process command line.
	Command []string
	// Env is appended to the inherited environment of worker processes.
	Env []string
	// Dispatch is applied to every item before dispatch. Defaults to the
	// shared no-op, which is skipped entirely.
	Dispatch Action
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = runtime.NumCPU()
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = o.Size
	}
	if o.Dispatch == nil {
		o.Dispatch = DoNothing()
	}
	return o
}

// FromSettings converts domain worker settings into pool options.
func FromSettings(s domain.WorkerSettings) Options {
	return Options{
		Size:         s.Size,
		QueueDepth:   s.QueueDepth,
		Timeout:      s.Timeout,
		RecycleAfter: s.RecycleAfter,
		Command:      s.Command,
	}
}

// Pool coordinates a fixed set of worker process slots. Submit is a
// blocking one-item-in/one-result-out operation; callers wanting
// parallelism issue concurrent submits. The pool and its queue are the only
// state shared between concurrent submits and are safe under concurrent
// access.
type Pool struct {
	opts   Options
	logger ports.Logger

	// admit bounds admitted work (running + queued); a full channel means
	// the bounded queue is full and submission fails fast.
	admit chan struct{}
	// slots holds idle workers; nil entries are slots without a live
	// process, spawned on demand.
	slots chan *proc

	done         chan struct{}
	shutdownOnce sync.Once
}

// NewPool creates a pool. Workers are spawned lazily on first use of each
// slot.
func NewPool(opts Options, logger ports.Logger) (*Pool, error) {
	opts = opts.withDefaults()
	if len(opts.Command) == 0 {
		return nil, domain.ErrWorkerSpawnFailed
	}

	p := &Pool{
		opts:   opts,
		logger: logger,
		admit:  make(chan struct{}, opts.Size+opts.QueueDepth),
		slots:  make(chan *proc, opts.Size),
		done:   make(chan struct{}),
	}
	for range opts.Size {
		p.slots <- nil
	}
	return p, nil
}

// Capacity is how many items the pool accepts at once: running plus queued.
// Submissions beyond it fail with ErrQueueFull.
func (p *Pool) Capacity() int {
	return cap(p.admit)
}

// Submit executes one work item on an isolated worker and returns its
// result. Every submitted item yields exactly one result; worker crashes
// and timeouts surface as failed results, never as dropped items.
func (p *Pool) Submit(ctx context.Context, item domain.WorkItem) domain.WorkResult {
	select {
	case <-p.done:
		return domain.WorkResult{ID: item.ID, Err: domain.ErrPoolClosed}
	default:
	}

	if !IsNoOp(p.opts.Dispatch) {
		p.opts.Dispatch.Execute(&item)
	}

	select {
	case p.admit <- struct{}{}:
	default:
		return domain.WorkResult{ID: item.ID, Err: domain.ErrQueueFull}
	}
	defer func() { <-p.admit }()

	var w *proc
	select {
	case w = <-p.slots:
	case <-ctx.Done():
		return domain.WorkResult{ID: item.ID, Err: ctx.Err()}
	case <-p.done:
		return domain.WorkResult{ID: item.ID, Err: domain.ErrPoolClosed}
	}

	w, err := p.ensureWorker(w, item.Fingerprint)
	if err != nil {
		p.slots <- nil
		return domain.WorkResult{ID: item.ID, Err: err}
	}

	value, err := w.roundTrip(ctx, p.opts.Timeout, item)
	if err != nil && !workerSurvives(err) {
		// The process state is no longer trustworthy: kill it and leave the
		// slot empty so the next submission spawns a replacement.
		w.kill()
		p.slots <- nil
		return domain.WorkResult{ID: item.ID, Err: err}
	}

	w.served++
	p.slots <- w
	if err != nil {
		return domain.WorkResult{ID: item.ID, Err: err}
	}
	return domain.WorkResult{ID: item.ID, Value: value}
}

// ensureWorker returns a live worker compatible with the fingerprint,
// recycling or spawning as needed.
func (p *Pool) ensureWorker(w *proc, fingerprint string) (*proc, error) {
	if w != nil {
		recycle := p.opts.RecycleAfter > 0 && w.served >= p.opts.RecycleAfter
		if w.fingerprint != fingerprint || recycle {
			w.stop()
			w = nil
		}
	}
	if w == nil {
		return spawn(p.opts.Command, p.opts.Env, fingerprint, p.logger)
	}
	return w, nil
}

// workerSurvives reports whether the error left the worker process in a
// reusable state. Failures reported by the worker itself (a toolchain
// compile error) do; crashes, timeouts, and cancellations do not.
func workerSurvives(err error) bool {
	return !errors.Is(err, domain.ErrWorkerCrashed) &&
		!errors.Is(err, domain.ErrWorkerTimeout) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Shutdown drains in-flight work and releases every worker. Subsequent
// submissions fail with ErrPoolClosed. Shutdown blocks until all in-flight
// items returned their slots.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.done)
		for range cap(p.slots) {
			if w := <-p.slots; w != nil {
				w.stop()
			}
		}
	})
}
