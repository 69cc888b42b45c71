// Package runtime provides the dispatch loop a reactive graph runs on.
//
// The engine's model is a single logical thread: all recomputation happens
// inline on the goroutine that performed the triggering write. The Loop is
// that goroutine for a running application — timers, external events, and
// UI input all funnel through Dispatch, which serializes them.
package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tangle-tui/tangle/pkg/tangle"
)

// Loop serializes work onto one goroutine and binds itself as the
// tangle.Dispatcher for everything it runs, so effect helpers started
// inside dispatched work can re-enter the graph.
type Loop struct {
	tracker *tangle.Tracker
	root    *tangle.Owner
	logger  *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithTracker binds the loop to an explicit tracker instead of the
// process-wide default.
func WithTracker(t *tangle.Tracker) Option {
	return func(l *Loop) { l.tracker = t }
}

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a loop with a fresh root owner. The loop does not process
// work until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		tracker: tangle.Default,
		root:    tangle.NewOwner(nil),
		logger:  slog.Default().With("component", "runtime"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Root returns the loop's root owner. Work dispatched onto the loop runs
// with it as the active creation scope.
func (l *Loop) Root() *tangle.Owner {
	return l.root
}

// Tracker returns the tracker the loop runs on.
func (l *Loop) Tracker() *tangle.Tracker {
	return l.tracker
}

// Dispatch enqueues fn to run on the loop goroutine. Safe from any
// goroutine; never blocks. Work dispatched after Close is dropped with a
// warning.
func (l *Loop) Dispatch(fn func()) {
	if !l.enqueue(fn) {
		l.logger.Warn("dispatch after close; work dropped")
	}
}

func (l *Loop) enqueue(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Run processes dispatched work until ctx is cancelled or Close is
// called. Each function runs with the loop bound as dispatcher and the
// root owner active, and with panics contained.
func (l *Loop) Run(ctx context.Context) error {
	// Wake the loop when the context falls.
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed && ctx.Err() == nil {
			l.cond.Wait()
		}
		if ctx.Err() != nil || (l.closed && len(l.queue) == 0) {
			l.mu.Unlock()
			l.tracker.WithDispatcher(l, func() {
				l.root.Dispose()
			})
			return ctx.Err()
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.invoke(fn)
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatched work panicked", "recovered", r)
		}
	}()
	l.tracker.WithDispatcher(l, func() {
		l.tracker.WithOwner(l.root, fn)
	})
}

// Close stops accepting work. Run drains what was already queued,
// disposes the root owner, and returns. Idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.cond.Broadcast()
}

// Call runs fn on the loop and waits for it to finish. Returns false
// without running fn if the loop is closed. Useful for tests and for
// synchronous reads from other goroutines.
func (l *Loop) Call(fn func()) bool {
	done := make(chan struct{})
	ok := l.enqueue(func() {
		defer close(done)
		fn()
	})
	if !ok {
		return false
	}
	<-done
	return true
}
