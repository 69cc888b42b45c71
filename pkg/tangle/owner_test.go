package tangle

import "testing"

func TestOwnerAdoptsAndDisposes(t *testing.T) {
	s := NewSignal(0)
	owner := NewOwner(nil)

	var e *Effect
	var m *Memo[int]
	WithOwner(owner, func() {
		m = NewMemo(func() int { return s.Get() * 2 })
		e = NewEffect(func() Cleanup {
			_ = s.Get()
			return nil
		})
	})

	if owner.Resources() != 2 {
		t.Fatalf("expected 2 adopted resources, got %d", owner.Resources())
	}

	owner.Dispose()

	if !owner.IsDisposed() {
		t.Error("owner should be disposed")
	}
	if !e.Disposed() || e.Subscriptions() != 0 {
		t.Error("owned effect must be disposed with zero subscriptions")
	}
	if !m.Disposed() || m.Subscriptions() != 0 {
		t.Error("owned memo must be disposed with zero subscriptions")
	}
}

func TestOwnerCleanupOrder(t *testing.T) {
	owner := NewOwner(nil)
	var order []int
	owner.OnCleanup(func() { order = append(order, 1) })
	owner.OnCleanup(func() { order = append(order, 2) })

	owner.Dispose()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("cleanups must run in reverse registration order, got %v", order)
	}
}

func TestOwnerCleanupAfterDisposeRunsImmediately(t *testing.T) {
	owner := NewOwner(nil)
	owner.Dispose()

	ran := false
	owner.OnCleanup(func() { ran = true })
	if !ran {
		t.Error("cleanup registered on a disposed owner must run immediately")
	}
}

func TestOwnerHierarchy(t *testing.T) {
	parent := NewOwner(nil)
	child := NewOwner(parent)
	grand := NewOwner(child)

	if child.Parent() != parent || grand.Parent() != child {
		t.Fatal("parent links wrong")
	}

	parent.Dispose()

	if !child.IsDisposed() || !grand.IsDisposed() {
		t.Error("disposing a parent must dispose all descendants")
	}
}

func TestOwnerAdoptAfterDispose(t *testing.T) {
	owner := NewOwner(nil)
	owner.Dispose()

	s := NewSignal(0)
	var e *Effect
	WithOwner(owner, func() {
		e = NewEffect(func() Cleanup {
			_ = s.Get()
			return nil
		})
	})

	if !e.Disposed() {
		t.Error("an effect created under a disposed owner must be disposed immediately")
	}
}

func TestOwnerDoubleDispose(t *testing.T) {
	owner := NewOwner(nil)
	runs := 0
	owner.OnCleanup(func() { runs++ })

	owner.Dispose()
	owner.Dispose()

	if runs != 1 {
		t.Errorf("cleanup must run once across double dispose, got %d", runs)
	}
}

func TestGroupRegistryTeardown(t *testing.T) {
	s := NewSignal(0)
	owner := RegisterGroup("comp-42")

	var effects []*Effect
	var memos []*Memo[int]
	WithOwner(owner, func() {
		memos = append(memos, NewMemo(func() int { return s.Get() + 1 }))
		for i := 0; i < 3; i++ {
			effects = append(effects, NewEffect(func() Cleanup {
				_ = s.Get()
				return nil
			}))
		}
	})

	// Registering the same id again returns the same live owner.
	if again := RegisterGroup("comp-42"); again != owner {
		t.Error("expected the same owner for a live group id")
	}

	if !DisposeGroup("comp-42") {
		t.Fatal("expected group to exist")
	}

	for _, e := range effects {
		if e.Status() != StatusDisposed {
			t.Errorf("effect %d not disposed after group teardown", e.ID())
		}
		if e.Subscriptions() != 0 {
			t.Errorf("effect %d still holds %d subscriptions", e.ID(), e.Subscriptions())
		}
	}
	for _, m := range memos {
		if !m.Disposed() || m.Subscriptions() != 0 {
			t.Error("memo not fully torn down after group teardown")
		}
	}

	if DisposeGroup("comp-42") {
		t.Error("second dispose of the same group must report false")
	}

	if _, ok := LookupGroup("comp-42"); ok {
		t.Error("mapping must be removed after dispose")
	}
}

func TestGroupRegistryIsolatedInstances(t *testing.T) {
	r := NewGroupRegistry()
	o1 := r.Register("x")
	o2 := r.Register("y")
	if o1 == o2 {
		t.Fatal("distinct ids must get distinct owners")
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 groups, got %d", r.Len())
	}
	r.Dispose("x")
	if r.Len() != 1 {
		t.Errorf("expected 1 group after dispose, got %d", r.Len())
	}
}
