package tangle

import (
	"sync"
	"testing"
)

func TestTrackerNestedComputations(t *testing.T) {
	// A memo reading another memo pushes its own frame; the outer frame
	// must see only the inner memo, not the inner memo's own producers.
	s := NewSignal(1)
	inner := NewMemo(func() int { return s.Get() * 2 })

	outerRuns := 0
	outer := NewMemo(func() int {
		outerRuns++
		return inner.Get() + 1
	})

	if outer.Get() != 3 {
		t.Fatalf("expected 3, got %d", outer.Get())
	}

	// The outer memo depends on inner, not on s directly, but a write to
	// s still reaches it through the chain exactly once.
	s.Set(2)
	if outer.Get() != 5 {
		t.Errorf("expected 5, got %d", outer.Get())
	}
	if outerRuns != 2 {
		t.Errorf("expected 2 outer computes, got %d", outerRuns)
	}
	if outer.Subscriptions() != 1 {
		t.Errorf("outer memo must subscribe only to inner, got %d subscriptions", outer.Subscriptions())
	}
}

func TestUntrackedRestoresOnPanic(t *testing.T) {
	s := NewSignal(1)
	computes := 0
	d := NewMemo(func() int {
		computes++
		func() {
			defer func() { _ = recover() }()
			Untracked(func() { panic("inside untracked") })
		}()
		// Tracking must be restored here: this read creates an edge.
		return s.Get()
	})
	_ = d

	s.Set(2)
	if computes != 2 {
		t.Errorf("tracking flag not restored after panic inside Untracked, got %d computes", computes)
	}
}

func TestUntrackedOutsideComputationIsHarmless(t *testing.T) {
	s := NewSignal(5)
	var v int
	Untracked(func() { v = s.Get() })
	if v != 5 {
		t.Errorf("expected 5, got %d", v)
	}
}

func TestUntrackedGet(t *testing.T) {
	a := NewSignal(1)
	computes := 0
	d := NewMemo(func() int {
		computes++
		return UntrackedGet(a)
	})
	_ = d

	a.Set(2)
	if computes != 1 {
		t.Errorf("UntrackedGet must not create a dependency, got %d computes", computes)
	}
}

func TestNestedUntrackedInsideTrackedRead(t *testing.T) {
	a := NewSignal(1)
	b := NewSignal(10)
	computes := 0
	d := NewMemo(func() int {
		computes++
		tracked := a.Get()
		var untracked int
		Untracked(func() { untracked = b.Get() })
		return tracked + untracked
	})

	if d.Get() != 11 {
		t.Fatalf("expected 11, got %d", d.Get())
	}

	b.Set(20)
	if computes != 1 {
		t.Errorf("untracked producer must not trigger recompute, got %d", computes)
	}

	a.Set(2)
	if computes != 2 {
		t.Errorf("tracked producer must trigger recompute, got %d", computes)
	}
	// The recompute picks up b's current value even without an edge.
	if d.Get() != 22 {
		t.Errorf("expected 22, got %d", d.Get())
	}
}

func TestIsolatedTrackersDoNotCrossContaminate(t *testing.T) {
	t1 := NewTracker()
	t2 := NewTracker()

	s1 := NewSignalOn(t1, 1)
	s2 := NewSignalOn(t2, 1)

	computes1 := 0
	_ = NewMemoOn(t1, func() int {
		computes1++
		return s1.Get()
	})

	// A batch opened on t2 must not defer t1's notifications.
	t2.Batch(func() {
		s2.Set(5)
		s1.Set(5)
		if computes1 != 2 {
			t.Errorf("t1 write inside t2 batch must deliver immediately, got %d computes", computes1)
		}
	})
}

func TestTrackingIsPerGoroutine(t *testing.T) {
	s := NewSignal(0)
	l := newTestListener()

	var wg sync.WaitGroup
	Default.pushFrame(l)
	wg.Add(1)
	go func() {
		defer wg.Done()
		// This goroutine has no active computation; the read must not
		// register into the other goroutine's frame.
		_ = s.Get()
	}()
	wg.Wait()
	deps := Default.popFrame()

	if deps.size() != 0 {
		t.Errorf("cross-goroutine read leaked into the frame, got %d deps", deps.size())
	}
}

func TestTrackerReleasesGoroutineState(t *testing.T) {
	tr := NewTracker()
	s := NewSignalOn(tr, 0)
	runs := 0
	e := NewEffectOn(tr, func() Cleanup {
		_ = s.Get()
		runs++
		return nil
	})
	defer e.Dispose()

	// Short-lived goroutines, the churn pattern of timers and connection
	// handlers. Each one's tracker state must be dropped once it goes
	// idle, or the contexts map grows forever.
	for i := 1; i <= 4; i++ {
		done := make(chan struct{})
		go func(v int) {
			defer close(done)
			tr.Batch(func() { s.Set(v) })
			s.Set(v * 10)
			_ = s.Get()
		}(i)
		<-done
	}

	if runs != 9 {
		t.Fatalf("expected 9 runs (mount + 8 writes), got %d", runs)
	}
	if n := goroutineEntries(tr); n != 0 {
		t.Errorf("tracker must release per-goroutine state, got %d live entries", n)
	}
}

func goroutineEntries(tr *Tracker) int {
	n := 0
	tr.contexts.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestWithOwnerRestoresPrevious(t *testing.T) {
	outer := NewOwner(nil)
	inner := NewOwner(nil)

	WithOwner(outer, func() {
		WithOwner(inner, func() {
			if Default.currentOwner() != inner {
				t.Error("inner owner not active")
			}
		})
		if Default.currentOwner() != outer {
			t.Error("outer owner not restored")
		}
	})
	if Default.currentOwner() != nil {
		t.Error("owner not cleared after WithOwner")
	}
}
