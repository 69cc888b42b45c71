package tangle

import (
	"sync/atomic"
	"time"
)

// Status is an effect's lifecycle state.
type Status int32

const (
	// StatusIdle: created but not yet run.
	StatusIdle Status = iota
	// StatusRunning: the body is executing.
	StatusRunning
	// StatusCompleted: the last run returned normally.
	StatusCompleted
	// StatusError: the last run panicked; the error went to the handler.
	StatusError
	// StatusDisposed: terminal. The effect will never run again.
	StatusDisposed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	case StatusDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Effect is an impure computation run for its side effects. It runs once
// at creation and re-runs whenever a producer it read on its last run
// changes. The body may return a Cleanup that runs before the next run and
// exactly once more on disposal.
type Effect struct {
	id      uint64
	tracker *Tracker
	body    func() Cleanup
	cleanup Cleanup

	// deps is the dependency snapshot from the latest run.
	deps *depSet

	status     atomic.Int32
	disposed   atomic.Bool
	running    atomic.Bool
	cycleGuard atomic.Bool

	errHandler func(error)
	name       string
	owner      *Owner
}

// EffectOption configures an Effect at creation.
type EffectOption interface {
	isEffectOption()
	applyEffect(e *Effect)
}

type effectOptionFunc func(*Effect)

func (f effectOptionFunc) isEffectOption()       {}
func (f effectOptionFunc) applyEffect(e *Effect) { f(e) }

// WithErrorHandler routes body panics to fn instead of the process-wide
// reporter. The handler receives an *ExecutionError.
func WithErrorHandler(fn func(error)) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.errHandler = fn
	})
}

// WithName labels the effect for diagnostics and instrumentation hooks.
func WithName(name string) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.name = name
	})
}

// NewEffect creates an effect on the default tracker and runs it
// immediately (mount semantics).
func NewEffect(body func() Cleanup, opts ...EffectOption) *Effect {
	return NewEffectOn(Default, body, opts...)
}

// NewEffectOn creates an effect bound to an explicit tracker. If an owner
// scope is active on the calling goroutine, the effect is adopted by it.
func NewEffectOn(t *Tracker, body func() Cleanup, opts ...EffectOption) *Effect {
	e := &Effect{
		id:      nextID(),
		tracker: t,
		body:    body,
		deps:    newDepSet(),
	}
	for _, opt := range opts {
		opt.applyEffect(e)
	}
	if o := t.currentOwner(); o != nil {
		o.adopt(e)
		e.owner = o
	}
	e.run()
	return e
}

// ID returns the effect's stable unique identifier. Implements Listener.
func (e *Effect) ID() uint64 {
	return e.id
}

// Name returns the diagnostic label set with WithName, if any.
func (e *Effect) Name() string {
	return e.name
}

// Status returns the effect's current lifecycle state.
func (e *Effect) Status() Status {
	return Status(e.status.Load())
}

// MarkDirty re-runs the effect synchronously. Implements Listener; invoked
// by producers on change.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}
	e.run()
}

// run executes one pass of the re-run protocol:
//
//  1. invoke the previous run's cleanup
//  2. unsubscribe from the previous dependency snapshot
//  3. run the body under a fresh tracking frame
//  4. subscribe to the producers the body read; store the new snapshot
//
// The effect is unsubscribed while the body runs, so its own writes are
// never delivered back to it. Re-entry from elsewhere aborts with one
// CycleError per triggering write. A body panic moves the effect to
// StatusError and goes to the error handler; it never propagates to the
// writer.
func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}
	t := e.tracker
	if e.running.Swap(true) {
		if e.cycleGuard.CompareAndSwap(false, true) {
			report(t, &CycleError{Op: "effect", ID: e.id, Name: e.name})
		}
		return
	}
	defer e.running.Store(false)
	e.cycleGuard.Store(false)

	e.status.Store(int32(StatusRunning))

	e.runCleanup()
	dropAll(e, e.deps)

	start := time.Now()
	t.pushFrame(e)
	var runErr *ExecutionError
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = &ExecutionError{Op: "effect", ID: e.id, Name: e.name, Recovered: r}
			}
		}()
		e.cleanup = e.body()
	}()
	deps := t.popFrame()

	retarget(e, newDepSet(), deps)
	e.deps = deps

	if h := t.hooksRef(); h.OnEffectRun != nil {
		h.OnEffectRun(e.id, e.name, time.Since(start))
	}

	if runErr != nil {
		e.status.Store(int32(StatusError))
		if e.errHandler != nil {
			e.errHandler(runErr)
		} else {
			report(t, runErr)
		}
		return
	}
	e.status.Store(int32(StatusCompleted))
}

// runCleanup invokes and clears the held cleanup, isolating panics.
func (e *Effect) runCleanup() {
	if e.cleanup == nil {
		return
	}
	c := e.cleanup
	e.cleanup = nil
	defer func() {
		if r := recover(); r != nil {
			report(e.tracker, &ExecutionError{Op: "cleanup", ID: e.id, Name: e.name, Recovered: r})
		}
	}()
	c()
}

// Dispose terminally tears the effect down: the last cleanup runs exactly
// once, every subscription is dropped, and the effect never runs again.
// Idempotent; a second call is a no-op.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}
	e.runCleanup()
	dropAll(e, e.deps)
	e.deps = newDepSet()
	e.status.Store(int32(StatusDisposed))
	if e.owner != nil {
		e.owner.forget(e)
	}
}

// Disposed reports whether the effect has been torn down.
func (e *Effect) Disposed() bool {
	return e.disposed.Load()
}

// Subscriptions returns the number of producers the effect currently
// subscribes to. Used by teardown checks and tests.
func (e *Effect) Subscriptions() int {
	return e.deps.size()
}
