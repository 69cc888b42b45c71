package tangle

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// Listener is anything notified when a producer it read changes: memos,
// effects, and test doubles. MarkDirty is invoked during the drain that
// the triggering write (or its enclosing batch) runs, at most once per
// drain round.
type Listener interface {
	MarkDirty()

	// ID returns a stable unique identifier, used to deduplicate
	// notifications and to diff dependency snapshots.
	ID() uint64
}

// derived marks listeners that are producers in their own right, the
// memos. The drain recomputes them while propagating, before any effect
// runs, so effects always observe settled derived values.
type derived interface {
	isDerived()
}

func isDerived(l Listener) bool {
	_, ok := l.(derived)
	return ok
}

// Cleanup is returned by effect bodies. It runs before the effect's next
// run and exactly once more on disposal.
type Cleanup func()

// Dispatcher serializes work onto the logical thread a reactive graph runs
// on. The runtime loop implements it; helpers like Interval use it to
// re-enter the graph from timer goroutines.
type Dispatcher interface {
	Dispatch(fn func())
}

// maxWriteDepth bounds re-entrant write cascades (a Set invoked from
// inside a notification triggered by another Set, over and over). Past the
// bound the engine fails closed with a CycleError instead of spinning.
const maxWriteDepth = 1000

// Tracker is the computation context stack. It records which computation
// (if any) is currently running on each goroutine, so reads of reactive
// values can register themselves as dependencies without explicit wiring.
//
// Trackers are explicit objects rather than hidden globals so that
// independent graphs (one per test, typically) do not cross-contaminate.
// Default is the process-wide instance used by the package-level API.
type Tracker struct {
	contexts sync.Map // goroutine id -> *gctx
	hooks    atomic.Pointer[Hooks]
}

// Default is the process-wide tracker bound to the package-level
// constructors and helpers.
var Default = NewTracker()

// NewTracker returns an isolated tracker with its own context stacks,
// batching state, and hooks.
func NewTracker() *Tracker {
	return &Tracker{}
}

// gctx is the tracker state for one goroutine. The engine's model is a
// single logical thread; per-goroutine state keeps independent goroutines
// (tests, dispatch loops) from interfering.
type gctx struct {
	frames     []*frame
	owner      *Owner
	dispatcher Dispatcher
	batchDepth int
	draining   bool
	pending    []pendingWrite
	pendingIDs map[uint64]struct{}
}

func (t *Tracker) ctx() *gctx {
	gid := goid.Get()
	if c, ok := t.contexts.Load(gid); ok {
		return c.(*gctx)
	}
	c := &gctx{}
	t.contexts.Store(gid, c)
	return c
}

// peekCtx returns the goroutine's state without allocating an entry for
// goroutines that have none. Read-only paths use it so that merely reading
// a signal on a fresh goroutine leaves no trace in the contexts map.
func (t *Tracker) peekCtx() *gctx {
	if c, ok := t.contexts.Load(goid.Get()); ok {
		return c.(*gctx)
	}
	return nil
}

// dropIfIdle removes the goroutine's entry from the contexts map once
// nothing references it anymore. Without this, short-lived goroutines that
// touch the tracker would grow the map without bound.
func (t *Tracker) dropIfIdle(c *gctx) {
	if len(c.frames) != 0 || c.owner != nil || c.dispatcher != nil ||
		c.batchDepth != 0 || c.draining || len(c.pending) != 0 {
		return
	}
	t.contexts.Delete(goid.Get())
}

// frame is one level of the computation stack: the consumer currently
// running plus the working dependency set it has read so far.
type frame struct {
	listener Listener
	tracking bool
	deps     *depSet
}

func (t *Tracker) pushFrame(l Listener) {
	c := t.ctx()
	c.frames = append(c.frames, &frame{listener: l, tracking: true, deps: newDepSet()})
}

// popFrame removes the top frame and returns its working dependency set.
// Callers pair pushFrame/popFrame with defer so the stack is restored even
// when the bracketed computation panics.
func (t *Tracker) popFrame() *depSet {
	c := t.peekCtx()
	if c == nil {
		return newDepSet()
	}
	n := len(c.frames)
	if n == 0 {
		return newDepSet()
	}
	f := c.frames[n-1]
	c.frames[n-1] = nil
	c.frames = c.frames[:n-1]
	if len(c.frames) == 0 {
		c.frames = nil
		t.dropIfIdle(c)
	}
	return f.deps
}

// recordRead registers s into the working set of the active computation,
// if there is one and its tracking flag is set. Subscription itself is
// deferred to the snapshot diff after the run completes.
func (t *Tracker) recordRead(s *signalBase) {
	c := t.peekCtx()
	if c == nil || len(c.frames) == 0 {
		return
	}
	f := c.frames[len(c.frames)-1]
	if !f.tracking || f.listener == nil {
		return
	}
	f.deps.add(s)
}

// Untracked runs fn with dependency tracking disabled on the current
// computation, restoring the previous flag afterward even if fn panics.
// Reads inside fn do not create dependency edges. Computations nested
// inside fn (a memo recompute, say) push fresh frames and track normally.
func (t *Tracker) Untracked(fn func()) {
	c := t.peekCtx()
	if c == nil || len(c.frames) == 0 {
		fn()
		return
	}
	f := c.frames[len(c.frames)-1]
	prev := f.tracking
	f.tracking = false
	defer func() { f.tracking = prev }()
	fn()
}

// WithOwner runs fn with owner as the creation scope: memos and effects
// created inside belong to it and are torn down by its Dispose.
func (t *Tracker) WithOwner(owner *Owner, fn func()) {
	c := t.ctx()
	prev := c.owner
	c.owner = owner
	defer func() {
		c.owner = prev
		t.dropIfIdle(c)
	}()
	fn()
}

func (t *Tracker) currentOwner() *Owner {
	if c := t.peekCtx(); c != nil {
		return c.owner
	}
	return nil
}

// WithDispatcher runs fn with d bound as the goroutine's dispatcher.
// The runtime loop wraps every dispatched function in this.
func (t *Tracker) WithDispatcher(d Dispatcher, fn func()) {
	c := t.ctx()
	prev := c.dispatcher
	c.dispatcher = d
	defer func() {
		c.dispatcher = prev
		t.dropIfIdle(c)
	}()
	fn()
}

// CurrentDispatcher returns the dispatcher bound to the calling goroutine,
// or nil outside a dispatch loop.
func (t *Tracker) CurrentDispatcher() Dispatcher {
	if c := t.peekCtx(); c != nil {
		return c.dispatcher
	}
	return nil
}

// safeMark notifies a consumer, isolating panics so one faulty consumer
// cannot block the remaining subscribers of a write.
func safeMark(t *Tracker, l Listener) {
	defer func() {
		if r := recover(); r != nil {
			report(t, &ExecutionError{Op: "subscriber", ID: l.ID(), Recovered: r})
		}
	}()
	l.MarkDirty()
}

// safeNotify invokes a plain subscriber callback with the same isolation.
func safeNotify(t *Tracker, id uint64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			report(t, &ExecutionError{Op: "subscriber", ID: id, Recovered: r})
		}
	}()
	fn()
}

// Untracked runs fn without dependency tracking on the default tracker.
func Untracked(fn func()) {
	Default.Untracked(fn)
}

// UntrackedGet reads a signal without creating a dependency. Equivalent to
// s.Peek.
func UntrackedGet[T any](s *Signal[T]) T {
	return s.Peek()
}

// WithOwner runs fn with the given creation scope on the default tracker.
func WithOwner(owner *Owner, fn func()) {
	Default.WithOwner(owner, fn)
}

// WithDispatcher binds d on the default tracker for the duration of fn.
func WithDispatcher(d Dispatcher, fn func()) {
	Default.WithDispatcher(d, fn)
}
