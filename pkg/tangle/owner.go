package tangle

import (
	"sync"
	"sync/atomic"
)

// disposable is anything an Owner can tear down: memos and effects.
type disposable interface {
	Dispose()
}

// Owner is a teardown scope for reactive primitives. Memos and effects
// created while an owner is active (via WithOwner) belong to it; disposing
// the owner disposes them all, runs registered cleanups, and recursively
// disposes child owners.
//
// Owners form a hierarchy mirroring the component tree: each component's
// owner is a child of its parent component's owner.
type Owner struct {
	id     uint64
	parent *Owner

	mu        sync.Mutex
	children  []*Owner
	resources []disposable
	cleanups  []func()

	disposed atomic.Bool
}

// NewOwner creates an owner under parent. A nil parent creates a root.
func NewOwner(parent *Owner) *Owner {
	o := &Owner{
		id:     nextID(),
		parent: parent,
	}
	if parent != nil {
		parent.addChild(o)
	}
	return o
}

// ID returns the owner's stable unique identifier.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent owner, or nil for a root.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// IsDisposed reports whether the owner has been torn down.
func (o *Owner) IsDisposed() bool {
	return o.disposed.Load()
}

func (o *Owner) addChild(child *Owner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.children = append(o.children, child)
}

func (o *Owner) removeChild(child *Owner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// adopt registers a memo or effect for teardown with this owner.
func (o *Owner) adopt(d disposable) {
	if o.disposed.Load() {
		// Scope already gone; tear the newcomer down immediately
		// rather than leaking it.
		d.Dispose()
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resources = append(o.resources, d)
}

// forget removes a resource that disposed itself, so the owner does not
// hold it (or dispose it again) at teardown.
func (o *Owner) forget(d disposable) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, r := range o.resources {
		if r == d {
			o.resources = append(o.resources[:i], o.resources[i+1:]...)
			return
		}
	}
}

// OnCleanup registers fn to run at disposal. If the owner is already
// disposed, fn runs immediately.
func (o *Owner) OnCleanup(fn func()) {
	if o.disposed.Load() {
		fn()
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleanups = append(o.cleanups, fn)
}

// Resources returns the number of live memos and effects held by this
// owner. Used by teardown checks and tests.
func (o *Owner) Resources() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.resources)
}

// Dispose tears down this owner and everything under it: children first
// (in reverse creation order), then memos and effects in reverse creation
// order, then cleanups in reverse registration order. Idempotent.
func (o *Owner) Dispose() {
	if o.disposed.Swap(true) {
		return
	}

	if o.parent != nil {
		o.parent.removeChild(o)
	}

	o.mu.Lock()
	children := make([]*Owner, len(o.children))
	copy(children, o.children)
	o.children = nil
	resources := o.resources
	o.resources = nil
	cleanups := o.cleanups
	o.cleanups = nil
	o.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}
	for i := len(resources) - 1; i >= 0; i-- {
		resources[i].Dispose()
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
