package tangle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Memo is a cached derived computation that tracks its dependencies
// automatically. It is evaluated eagerly at creation, and recomputed
// synchronously whenever a dependency fires, so the cached value is always
// fresh when read. Get never recomputes.
//
// Memos are both consumers (of the values their computation reads) and
// producers (to anything reading or subscribing to them), which allows
// chains and diamonds of derived values.
type Memo[T any] struct {
	base    signalBase
	compute func() T

	mu    sync.RWMutex
	value T

	// deps is the dependency snapshot from the latest run. The active
	// subscriptions always equal it exactly.
	deps *depSet

	equal func(T, T) bool

	// computing guards against the memo re-entering its own
	// recomputation through a dependency cycle.
	computing atomic.Bool

	// cycleReported limits cycle diagnostics to one per triggering
	// write rather than one per re-entered stack frame.
	cycleReported atomic.Bool

	disposed atomic.Bool
	owner    *Owner
}

// NewMemo creates a memo on the default tracker and computes its value
// immediately, so a later read never pays for a cold first computation.
func NewMemo[T any](compute func() T) *Memo[T] {
	return NewMemoOn(Default, compute)
}

// NewMemoOn creates a memo bound to an explicit tracker. If an owner scope
// is active on the calling goroutine, the memo is adopted by it.
func NewMemoOn[T any](t *Tracker, compute func() T) *Memo[T] {
	m := &Memo[T]{
		base:    signalBase{id: nextID(), tracker: t},
		compute: compute,
		deps:    newDepSet(),
	}
	if o := t.currentOwner(); o != nil {
		o.adopt(m)
		m.owner = o
	}
	m.recompute()
	return m
}

// Get returns the cached value after registering this memo as a dependency
// of the active outer computation.
func (m *Memo[T]) Get() T {
	m.base.tracker.recordRead(&m.base)
	return m.Peek()
}

// Peek returns the cached value without creating a dependency edge.
func (m *Memo[T]) Peek() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

// Subscribe registers cb to be called with the new cached value after each
// change. No immediate invocation at subscribe time. Returns an
// unsubscribe function.
func (m *Memo[T]) Subscribe(cb func(T)) func() {
	id := m.base.addCallback(func() { cb(m.Peek()) })
	return func() { m.base.unsubscribeListener(id) }
}

// WithEquals configures a custom equality function used to decide whether
// a recomputation changed the value.
func (m *Memo[T]) WithEquals(fn func(T, T) bool) *Memo[T] {
	m.equal = fn
	return m
}

// ID returns the memo's stable unique identifier. Implements Listener.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// MarkDirty recomputes immediately so the cache is fresh for the next
// read. Implements Listener; invoked by producers on change.
func (m *Memo[T]) MarkDirty() {
	if m.disposed.Load() {
		return
	}
	m.recompute()
}

// isDerived marks the memo as a producer for the drain, which runs memos
// ahead of effects.
func (m *Memo[T]) isDerived() {}

// recompute runs the computation with a fresh tracking frame, rediscovers
// the dependency set, and notifies the memo's own subscribers when the
// value changed.
//
// Re-entry (the computation transitively triggered itself) aborts the
// inner call: the last cached value stands and one CycleError is recorded
// for the triggering write. A panicking computation is caught here; the
// last good value stays cached and readers never see the panic.
func (m *Memo[T]) recompute() {
	t := m.base.tracker
	if m.computing.Swap(true) {
		if m.cycleReported.CompareAndSwap(false, true) {
			report(t, &CycleError{Op: "memo", ID: m.base.id})
		}
		return
	}
	defer m.computing.Store(false)
	m.cycleReported.Store(false)

	start := time.Now()
	t.pushFrame(m)
	var (
		next   T
		failed bool
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				failed = true
				report(t, &ExecutionError{Op: "memo", ID: m.base.id, Recovered: r})
			}
		}()
		next = m.compute()
	}()
	deps := t.popFrame()

	retarget(m, m.deps, deps)
	m.deps = deps

	if h := t.hooksRef(); h.OnMemoRecompute != nil {
		h.OnMemoRecompute(m.base.id, time.Since(start))
	}

	if failed {
		return
	}

	m.mu.Lock()
	changed := !m.equals(m.value, next)
	m.value = next
	m.mu.Unlock()

	if changed {
		m.base.notifySubscribers()
	}
}

// Dispose tears the memo down: it unsubscribes from every producer, drops
// its own subscribers, and never recomputes again. Idempotent.
func (m *Memo[T]) Dispose() {
	if m.disposed.Swap(true) {
		return
	}
	dropAll(m, m.deps)
	m.deps = newDepSet()
	m.base.clearSubs()
	if m.owner != nil {
		m.owner.forget(m)
	}
}

// Disposed reports whether the memo has been torn down.
func (m *Memo[T]) Disposed() bool {
	return m.disposed.Load()
}

// Subscriptions returns the number of producers the memo currently
// subscribes to. Used by teardown checks and tests.
func (m *Memo[T]) Subscriptions() int {
	return m.deps.size()
}

func (m *Memo[T]) equals(a, b T) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return defaultEquals(a, b)
}
