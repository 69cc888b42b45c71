package tangle

import "sync"

// subscription is one edge out of a producer. Consumer edges carry a
// Listener; plain edges (renderer callbacks and the like) carry a notify
// closure. A single ordered slice keeps registration order across both
// kinds, which is the delivery order on write.
type subscription struct {
	id       uint64
	listener Listener
	notify   func()
}

// signalBase provides type-erased subscriber management. It is embedded in
// Signal[T] and Memo[T] to share subscription and notification logic.
type signalBase struct {
	id      uint64
	tracker *Tracker

	mu   sync.Mutex
	subs []subscription
}

// subscribeListener adds a consumer edge, deduplicated by listener id.
func (s *signalBase) subscribeListener(l Listener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lid := l.ID()
	for _, sub := range s.subs {
		if sub.id == lid {
			return
		}
	}
	s.subs = append(s.subs, subscription{id: lid, listener: l})
}

// unsubscribeListener removes the edge with the given id, preserving the
// registration order of the remaining subscribers.
func (s *signalBase) unsubscribeListener(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.id == id {
			copy(s.subs[i:], s.subs[i+1:])
			s.subs[len(s.subs)-1] = subscription{}
			s.subs = s.subs[:len(s.subs)-1]
			return
		}
	}
}

// addCallback registers a plain subscriber closure and returns its id.
func (s *signalBase) addCallback(notify func()) uint64 {
	id := nextID()
	s.mu.Lock()
	s.subs = append(s.subs, subscription{id: id, notify: notify})
	s.mu.Unlock()
	return id
}

// snapshotSubs copies the subscriber list so notification runs without the
// lock held.
func (s *signalBase) snapshotSubs() []subscription {
	s.mu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	return subs
}

func (s *signalBase) clearSubs() {
	s.mu.Lock()
	s.subs = nil
	s.mu.Unlock()
}

// notifySubscribers queues a change for delivery to every subscriber in
// registration order. Inside a batch or an active drain the queue empties
// later; otherwise it drains here, before the write returns. Each delivery
// is isolated: a panicking subscriber is reported and the rest still run.
// Re-entrant write cascades past maxWriteDepth fail closed with a
// CycleError.
func (s *signalBase) notifySubscribers() {
	t := s.tracker
	c := t.ctx()
	t.enqueueWrite(c, s)
	if c.batchDepth == 0 && !c.draining {
		t.drainPending(c, false)
		t.dropIfIdle(c)
	}
}

// Signal is a mutable reactive value container, the root producer of
// change. Reading it inside a tracked computation records a dependency;
// writing it notifies every subscriber whose last run read it.
type Signal[T any] struct {
	base signalBase

	mu    sync.RWMutex
	value T

	// equal decides whether a write changed the value. Nil means
	// defaultEquals.
	equal func(T, T) bool
}

// NewSignal creates a signal with the given initial value on the default
// tracker.
func NewSignal[T any](initial T) *Signal[T] {
	return NewSignalOn(Default, initial)
}

// NewSignalOn creates a signal bound to an explicit tracker. Tests that
// need isolated graphs use this.
func NewSignalOn[T any](t *Tracker, initial T) *Signal[T] {
	return &Signal[T]{
		base:  signalBase{id: nextID(), tracker: t},
		value: initial,
	}
}

// Get returns the current value, registering a dependency with the active
// computation if one is tracking. O(1).
func (s *Signal[T]) Get() T {
	s.base.tracker.recordRead(&s.base)
	return s.Peek()
}

// Peek returns the current value without creating a dependency edge.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set stores v and synchronously notifies subscribers. A write equal to
// the stored value (per the signal's equality) is a no-op.
func (s *Signal[T]) Set(v T) {
	s.mu.Lock()
	changed := !s.equals(s.value, v)
	if changed {
		s.value = v
	}
	s.mu.Unlock()

	if changed {
		if h := s.base.tracker.hooksRef(); h.OnSignalWrite != nil {
			h.OnSignalWrite(s.base.id)
		}
		s.base.notifySubscribers()
	}
}

// Update applies fn to the current value: Set(fn(current)). An identity
// update does not notify. fn runs without the signal's lock held, so it
// may read the signal (or any other) freely.
func (s *Signal[T]) Update(fn func(T) T) {
	next := fn(s.Peek())

	s.mu.Lock()
	changed := !s.equals(s.value, next)
	if changed {
		s.value = next
	}
	s.mu.Unlock()

	if changed {
		if h := s.base.tracker.hooksRef(); h.OnSignalWrite != nil {
			h.OnSignalWrite(s.base.id)
		}
		s.base.notifySubscribers()
	}
}

// Subscribe registers cb to be called with the new value after each
// change. The callback is NOT invoked with the current value at subscribe
// time; it fires only on subsequent writes. Returns an unsubscribe
// function.
func (s *Signal[T]) Subscribe(cb func(T)) func() {
	id := s.base.addCallback(func() { cb(s.Peek()) })
	return func() { s.base.unsubscribeListener(id) }
}

// WithEquals configures a custom equality function and returns the signal
// for chaining.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the signal's stable unique identifier.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// GuardedSignal is a Signal whose writes pass through a validator.
// Rejected writes return a ValidationError and do not notify.
type GuardedSignal[T any] struct {
	Signal[T]
	validate func(T) error
}

// NewGuardedSignal creates a guarded signal on the default tracker. The
// initial value is stored as-is; only writes are validated.
func NewGuardedSignal[T any](initial T, validate func(T) error) *GuardedSignal[T] {
	return NewGuardedSignalOn(Default, initial, validate)
}

// NewGuardedSignalOn creates a guarded signal bound to an explicit tracker.
func NewGuardedSignalOn[T any](t *Tracker, initial T, validate func(T) error) *GuardedSignal[T] {
	return &GuardedSignal[T]{
		Signal:   Signal[T]{base: signalBase{id: nextID(), tracker: t}, value: initial},
		validate: validate,
	}
}

// Set validates v before storing it. On rejection the stored value and the
// subscribers are untouched.
func (g *GuardedSignal[T]) Set(v T) error {
	if g.validate != nil {
		if err := g.validate(v); err != nil {
			return &ValidationError{Err: err}
		}
	}
	g.Signal.Set(v)
	return nil
}

// Update validates fn(current) before storing it.
func (g *GuardedSignal[T]) Update(fn func(T) T) error {
	return g.Set(fn(g.Peek()))
}
