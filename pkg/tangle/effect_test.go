package tangle

import (
	"errors"
	"testing"
)

func TestEffectRunsOnMount(t *testing.T) {
	runs := 0
	e := NewEffect(func() Cleanup {
		runs++
		return nil
	})

	if runs != 1 {
		t.Errorf("effect must run immediately at creation, got %d runs", runs)
	}
	if e.Status() != StatusCompleted {
		t.Errorf("expected completed, got %s", e.Status())
	}
}

func TestEffectRerunsOnDependencyChange(t *testing.T) {
	s := NewSignal(0)
	runs := 0
	_ = NewEffect(func() Cleanup {
		_ = s.Get()
		runs++
		return nil
	})

	s.Set(1)
	s.Set(2)
	if runs != 3 {
		t.Errorf("expected 3 runs (mount + 2 writes), got %d", runs)
	}

	s.Set(2)
	if runs != 3 {
		t.Errorf("equal write must not re-run, got %d runs", runs)
	}
}

func TestEffectCleanupBeforeRerun(t *testing.T) {
	s := NewSignal(0)
	var events []string
	_ = NewEffect(func() Cleanup {
		v := s.Get()
		events = append(events, "run")
		return func() {
			events = append(events, "cleanup")
			_ = v
		}
	})

	s.Set(1)

	want := []string{"run", "cleanup", "run"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, events)
		}
	}
}

func TestEffectStatusDuringRun(t *testing.T) {
	s := NewSignal(0)
	var e *Effect
	var observed Status
	e = NewEffect(func() Cleanup {
		_ = s.Get()
		if e != nil {
			observed = e.Status()
		}
		return nil
	})

	s.Set(1)
	if observed != StatusRunning {
		t.Errorf("expected running during body, got %s", observed)
	}
	if e.Status() != StatusCompleted {
		t.Errorf("expected completed after body, got %s", e.Status())
	}
}

func TestEffectErrorHandler(t *testing.T) {
	s := NewSignal(0)
	var handled error
	e := NewEffect(func() Cleanup {
		if s.Get() == 1 {
			panic("boom")
		}
		return nil
	}, WithErrorHandler(func(err error) { handled = err }), WithName("exploder"))

	s.Set(1)

	if e.Status() != StatusError {
		t.Errorf("expected error status, got %s", e.Status())
	}
	if handled == nil {
		t.Fatal("error handler not invoked")
	}
	var execErr *ExecutionError
	if !errors.As(handled, &execErr) {
		t.Fatalf("expected ExecutionError, got %T", handled)
	}
	if execErr.Name != "exploder" {
		t.Errorf("expected effect name in error, got %q", execErr.Name)
	}

	// The error never propagates to the writer, and the effect recovers
	// on the next change.
	s.Set(2)
	if e.Status() != StatusCompleted {
		t.Errorf("expected completed after recovery, got %s", e.Status())
	}
}

func TestEffectErrorReportedWithoutHandler(t *testing.T) {
	capture := captureErrors(t)

	s := NewSignal(0)
	_ = NewEffect(func() Cleanup {
		if s.Get() == 1 {
			panic("unhandled")
		}
		return nil
	})

	s.Set(1)
	if capture.count() != 1 {
		t.Errorf("expected 1 reported error, got %d", capture.count())
	}
}

func TestFailingEffectDoesNotBlockGraph(t *testing.T) {
	capture := captureErrors(t)
	_ = capture

	s := NewSignal(0)
	healthyRuns := 0
	_ = NewEffect(func() Cleanup {
		if s.Get() > 0 {
			panic("always failing")
		}
		return nil
	})
	_ = NewEffect(func() Cleanup {
		_ = s.Get()
		healthyRuns++
		return nil
	})

	s.Set(1)
	s.Set(2)

	if healthyRuns != 3 {
		t.Errorf("healthy effect must keep running, got %d runs", healthyRuns)
	}
}

func TestEffectIdempotentDispose(t *testing.T) {
	stops := 0
	e := NewEffect(func() Cleanup {
		return func() { stops++ }
	})

	e.Dispose()
	e.Dispose()

	if stops != 1 {
		t.Errorf("cleanup must run exactly once across double dispose, got %d", stops)
	}
	if e.Status() != StatusDisposed {
		t.Errorf("expected disposed, got %s", e.Status())
	}
	if e.Subscriptions() != 0 {
		t.Errorf("disposed effect must hold zero subscriptions, got %d", e.Subscriptions())
	}
}

func TestDisposedEffectNeverRuns(t *testing.T) {
	s := NewSignal(0)
	runs := 0
	e := NewEffect(func() Cleanup {
		_ = s.Get()
		runs++
		return nil
	})

	e.Dispose()
	s.Set(1)

	if runs != 1 {
		t.Errorf("disposed effect must not re-run, got %d runs", runs)
	}
}

func TestEffectSelfWriteStabilizes(t *testing.T) {
	// An effect that writes a signal it also reads does not loop: its
	// subscriptions are dropped while the body runs, so the write inside
	// the body cannot re-enter it.
	s := NewSignal(0)
	runs := 0
	_ = NewEffect(func() Cleanup {
		runs++
		s.Set(s.Get() + 1)
		return nil
	})

	s.Set(10)
	if runs != 2 {
		t.Errorf("expected 2 runs (mount + external write), got %d", runs)
	}
}

func TestEffectCleanupWriteCycleGuard(t *testing.T) {
	capture := captureErrors(t)

	s := NewSignal(0)
	// The cleanup runs at the start of the next run, while the effect is
	// still subscribed to s. Writing s from it queues yet another delivery
	// to the effect, endlessly; the write budget must cut the cascade off
	// instead of spinning.
	_ = NewEffect(func() Cleanup {
		v := s.Get()
		return func() { s.Set(v + 100) }
	})

	s.Set(1)

	if got := capture.count(); got != 1 {
		t.Fatalf("expected exactly 1 cycle error, got %d", got)
	}
	var cycleErr *CycleError
	if !errors.As(capture.all()[0], &cycleErr) {
		t.Fatalf("expected CycleError, got %T", capture.all()[0])
	}
	if cycleErr.Op != "write" {
		t.Errorf("expected write cycle, got %q", cycleErr.Op)
	}
}

func TestEffectUnsubscribesStaleProducers(t *testing.T) {
	useFirst := NewSignal(true)
	a := NewSignal(0)
	b := NewSignal(0)
	runs := 0
	_ = NewEffect(func() Cleanup {
		runs++
		if useFirst.Get() {
			_ = a.Get()
		} else {
			_ = b.Get()
		}
		return nil
	})

	useFirst.Set(false)
	before := runs
	a.Set(1)
	if runs != before {
		t.Errorf("stale producer must be unsubscribed, got %d extra runs", runs-before)
	}
	b.Set(1)
	if runs != before+1 {
		t.Errorf("new producer must trigger re-run, got %d extra runs", runs-before)
	}
}

func TestEffectCleanupPanicIsolated(t *testing.T) {
	capture := captureErrors(t)

	s := NewSignal(0)
	runs := 0
	_ = NewEffect(func() Cleanup {
		_ = s.Get()
		runs++
		return func() { panic("bad cleanup") }
	})

	s.Set(1)

	if runs != 2 {
		t.Errorf("a panicking cleanup must not prevent the re-run, got %d runs", runs)
	}
	if capture.count() != 1 {
		t.Errorf("expected 1 reported cleanup error, got %d", capture.count())
	}
}
