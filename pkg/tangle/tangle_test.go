package tangle

import (
	"sync"
	"testing"
)

// testListener counts MarkDirty calls; used wherever a test needs a bare
// consumer without memo/effect semantics.
type testListener struct {
	id uint64

	mu    sync.Mutex
	dirty int
}

func newTestListener() *testListener {
	return &testListener{id: nextID()}
}

func (l *testListener) MarkDirty() {
	l.mu.Lock()
	l.dirty++
	l.mu.Unlock()
}

func (l *testListener) ID() uint64 {
	return l.id
}

func (l *testListener) getDirtyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

// withListener runs fn with l installed as the tracked computation, so
// reads inside subscribe l to the producers being tested.
func withListener(t *Tracker, l Listener, fn func()) {
	t.pushFrame(l)
	fn()
	deps := t.popFrame()
	retarget(l, newDepSet(), deps)
}

// captureErrors reroutes the reporter to a slice for the duration of the
// test.
func captureErrors(t *testing.T) *errorCapture {
	t.Helper()
	c := &errorCapture{}
	SetReporter(c.add)
	t.Cleanup(func() { SetReporter(nil) })
	return c
}

type errorCapture struct {
	mu   sync.Mutex
	errs []error
}

func (c *errorCapture) add(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *errorCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

func (c *errorCapture) all() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}
