package tangle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Interval schedules periodic ticks that execute fn through the
// goroutine's Dispatcher, so fn re-enters the graph on the logical thread.
// The returned Cleanup stops future ticks. By default the first tick
// occurs after d; use IntervalImmediate to fire one right away.
//
// Call it inside an effect and return its Cleanup from the body:
//
//	tangle.NewEffect(func() tangle.Cleanup {
//	    return tangle.Interval(time.Second, func() {
//	        count.Update(func(n int) int { return n + 1 })
//	    })
//	})
func Interval(d time.Duration, fn func(), opts ...IntervalOption) Cleanup {
	disp := Default.CurrentDispatcher()
	if disp == nil {
		panic(ErrNoDispatcher)
	}

	var cfg intervalConfig
	for _, opt := range opts {
		opt.applyInterval(&cfg)
	}

	done := make(chan struct{})

	go func() {
		if cfg.immediate {
			select {
			case <-done:
				return
			default:
				disp.Dispatch(fn)
			}
		}

		ticker := time.NewTicker(d)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				disp.Dispatch(fn)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

type intervalConfig struct {
	immediate bool
}

// IntervalOption configures Interval.
type IntervalOption interface {
	isIntervalOption()
	applyInterval(cfg *intervalConfig)
}

type intervalOptionFunc func(*intervalConfig)

func (f intervalOptionFunc) isIntervalOption()                 {}
func (f intervalOptionFunc) applyInterval(cfg *intervalConfig) { f(cfg) }

// IntervalImmediate causes the first tick to fire immediately instead of
// after the duration.
func IntervalImmediate() IntervalOption {
	return intervalOptionFunc(func(cfg *intervalConfig) {
		cfg.immediate = true
	})
}

// Timeout executes fn once through the Dispatcher after duration d. The
// returned Cleanup cancels the timer if it has not fired yet.
func Timeout(d time.Duration, fn func()) Cleanup {
	disp := Default.CurrentDispatcher()
	if disp == nil {
		panic(ErrNoDispatcher)
	}

	var fired atomic.Bool
	timer := time.AfterFunc(d, func() {
		if fired.CompareAndSwap(false, true) {
			disp.Dispatch(fn)
		}
	})

	return func() {
		fired.Store(true)
		timer.Stop()
	}
}

// NewConditionalEffect gates action behind a reactive predicate. The
// predicate is tracked like any effect body, so the effect re-runs when
// either the predicate's or the action's dependencies change; action (and
// its cleanup lifecycle) only engage while the predicate holds.
func NewConditionalEffect(pred func() bool, action func() Cleanup, opts ...EffectOption) *Effect {
	return NewEffect(func() Cleanup {
		if !pred() {
			return nil
		}
		return action()
	}, opts...)
}

// NewDebouncedEffect tracks the reads performed by deps and schedules
// action to run once d after the last change (trailing edge). A change
// arriving before the timer fires resets it. The action runs through the
// Dispatcher captured at creation when one is bound, untracked either way.
func NewDebouncedEffect(d time.Duration, deps func(), action func(), opts ...EffectOption) *Effect {
	disp := Default.CurrentDispatcher()
	run := func() {
		if disp != nil {
			disp.Dispatch(func() { Untracked(action) })
			return
		}
		Untracked(action)
	}

	var mu sync.Mutex
	var timer *time.Timer

	return NewEffect(func() Cleanup {
		deps()
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, run)
		mu.Unlock()
		return func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		}
	}, opts...)
}

// NewThrottledEffect tracks the reads performed by deps and runs action at
// most once per d: immediately on the leading edge, and once more on the
// trailing edge when changes arrived during the window.
func NewThrottledEffect(d time.Duration, deps func(), action func(), opts ...EffectOption) *Effect {
	disp := Default.CurrentDispatcher()
	run := func() {
		if disp != nil {
			disp.Dispatch(func() { Untracked(action) })
			return
		}
		Untracked(action)
	}

	var mu sync.Mutex
	var last time.Time
	var trailing *time.Timer

	return NewEffect(func() Cleanup {
		deps()

		mu.Lock()
		now := time.Now()
		elapsed := now.Sub(last)
		if elapsed >= d {
			last = now
			mu.Unlock()
			run()
		} else {
			if trailing == nil {
				trailing = time.AfterFunc(d-elapsed, func() {
					mu.Lock()
					last = time.Now()
					trailing = nil
					mu.Unlock()
					run()
				})
			}
			mu.Unlock()
		}

		return func() {
			mu.Lock()
			if trailing != nil {
				trailing.Stop()
				trailing = nil
			}
			mu.Unlock()
		}
	}, opts...)
}
