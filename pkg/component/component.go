// Package component is a small component model on top of the reactive
// engine. A component owns its state through a Scope; mounting registers
// the scope's owner in a group registry so unmounting tears everything
// down with one call.
package component

import (
	"fmt"
	"sync/atomic"

	"github.com/tangle-tui/tangle/pkg/tangle"
)

// Component is a unit of UI. Init creates the component's reactive state
// under the given scope; View renders it. View runs inside a memo, so
// every signal it reads becomes a repaint trigger.
type Component interface {
	Init(sc *Scope)
	View() string
}

// Scope is the reactive context a component lives in. Everything created
// through it is owned by the component instance and disposed at unmount.
type Scope struct {
	id      string
	tracker *tangle.Tracker
	owner   *tangle.Owner
}

// ID returns the instance id the scope is registered under.
func (sc *Scope) ID() string { return sc.id }

// Owner returns the scope's owner.
func (sc *Scope) Owner() *tangle.Owner { return sc.owner }

// OnCleanup registers fn to run when the component unmounts.
func (sc *Scope) OnCleanup(fn func()) {
	sc.owner.OnCleanup(fn)
}

// Effect creates an effect owned by the scope.
func (sc *Scope) Effect(body func() tangle.Cleanup, opts ...tangle.EffectOption) *tangle.Effect {
	var e *tangle.Effect
	sc.tracker.WithOwner(sc.owner, func() {
		e = tangle.NewEffectOn(sc.tracker, body, opts...)
	})
	return e
}

// Signal creates a signal for component state. Signals hold no
// subscriptions of their own, so no ownership is involved.
func Signal[T any](sc *Scope, initial T) *tangle.Signal[T] {
	return tangle.NewSignalOn(sc.tracker, initial)
}

// Memo creates a derived value owned by the scope.
func Memo[T any](sc *Scope, compute func() T) *tangle.Memo[T] {
	var m *tangle.Memo[T]
	sc.tracker.WithOwner(sc.owner, func() {
		m = tangle.NewMemoOn(sc.tracker, compute)
	})
	return m
}

// Instance is a mounted component. Its rendered view is a memo, so the
// render layer needs nothing beyond View and Subscribe.
type Instance struct {
	id    string
	comp  Component
	scope *Scope
	view  *tangle.Memo[string]

	registry  *tangle.GroupRegistry
	unmounted atomic.Bool
}

var instanceSeq uint64

// MountOption configures Mount.
type MountOption interface {
	isMountOption()
	apply(*mountConfig)
}

type mountConfig struct {
	id       string
	tracker  *tangle.Tracker
	registry *tangle.GroupRegistry
}

type mountOptionFunc func(*mountConfig)

func (mountOptionFunc) isMountOption()         {}
func (f mountOptionFunc) apply(c *mountConfig) { f(c) }

// WithID mounts the component under an explicit instance id instead of a
// generated one.
func WithID(id string) MountOption {
	return mountOptionFunc(func(c *mountConfig) { c.id = id })
}

// WithTracker mounts the component on an explicit tracker.
func WithTracker(t *tangle.Tracker) MountOption {
	return mountOptionFunc(func(c *mountConfig) { c.tracker = t })
}

// WithRegistry registers the instance in reg instead of the process-wide
// group registry.
func WithRegistry(reg *tangle.GroupRegistry) MountOption {
	return mountOptionFunc(func(c *mountConfig) { c.registry = reg })
}

// Mount initializes c and returns a live instance. The component's state
// is created under a fresh group owner; the view memo computes eagerly,
// so View is valid immediately.
func Mount(c Component, opts ...MountOption) *Instance {
	cfg := mountConfig{tracker: tangle.Default}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.id == "" {
		cfg.id = fmt.Sprintf("%T#%d", c, atomic.AddUint64(&instanceSeq, 1))
	}

	inst := &Instance{id: cfg.id, comp: c, registry: cfg.registry}
	var owner *tangle.Owner
	if cfg.registry != nil {
		owner = cfg.registry.Register(cfg.id)
	} else {
		owner = tangle.RegisterGroup(cfg.id)
	}
	inst.scope = &Scope{id: cfg.id, tracker: cfg.tracker, owner: owner}

	cfg.tracker.WithOwner(owner, func() {
		c.Init(inst.scope)
		inst.view = tangle.NewMemoOn(cfg.tracker, c.View)
	})
	return inst
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// Scope returns the instance's scope.
func (i *Instance) Scope() *Scope { return i.scope }

// View returns the current rendered view. Inside another computation the
// read is tracked like any memo read.
func (i *Instance) View() string {
	return i.view.Get()
}

// Subscribe registers fn to run with the new frame whenever the rendered
// view changes. It does not fire for the current frame.
func (i *Instance) Subscribe(fn func(string)) func() {
	return i.view.Subscribe(fn)
}

// Unmount disposes everything the component created. Idempotent.
func (i *Instance) Unmount() {
	if i.unmounted.Swap(true) {
		return
	}
	if i.registry != nil {
		i.registry.Dispose(i.id)
		return
	}
	tangle.DisposeGroup(i.id)
}
