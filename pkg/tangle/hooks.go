package tangle

import "time"

// Hooks are optional instrumentation callbacks invoked by the engine.
// They keep the core free of metrics and tracing dependencies: the
// observability and devtools layers attach here. Hook functions run inline
// on the reactive path and must be fast, must not panic, and must not
// write signals.
type Hooks struct {
	// OnSignalWrite fires after a changed write, before notification.
	OnSignalWrite func(id uint64)

	// OnMemoRecompute fires after each memo recomputation.
	OnMemoRecompute func(id uint64, d time.Duration)

	// OnEffectRun fires after each effect run, successful or not.
	OnEffectRun func(id uint64, name string, d time.Duration)

	// OnBatchDrain fires after a batch drains, with the number of
	// distinct written producers and of consumers run.
	OnBatchDrain func(writes, consumers int)

	// OnError fires for every engine-reported error (cycles, panics).
	OnError func(err error)
}

var noHooks Hooks

// SetHooks installs instrumentation on the tracker, replacing any previous
// hooks. Use MergeHooks to compose several consumers.
func (t *Tracker) SetHooks(h Hooks) {
	t.hooks.Store(&h)
}

func (t *Tracker) hooksRef() *Hooks {
	if p := t.hooks.Load(); p != nil {
		return p
	}
	return &noHooks
}

// SetHooks installs instrumentation on the default tracker.
func SetHooks(h Hooks) {
	Default.SetHooks(h)
}

// MergeHooks fans every callback out to all of the given hook sets, in
// order. Nil callbacks are skipped.
func MergeHooks(hooks ...Hooks) Hooks {
	var merged Hooks
	merged.OnSignalWrite = func(id uint64) {
		for _, h := range hooks {
			if h.OnSignalWrite != nil {
				h.OnSignalWrite(id)
			}
		}
	}
	merged.OnMemoRecompute = func(id uint64, d time.Duration) {
		for _, h := range hooks {
			if h.OnMemoRecompute != nil {
				h.OnMemoRecompute(id, d)
			}
		}
	}
	merged.OnEffectRun = func(id uint64, name string, d time.Duration) {
		for _, h := range hooks {
			if h.OnEffectRun != nil {
				h.OnEffectRun(id, name, d)
			}
		}
	}
	merged.OnBatchDrain = func(writes, consumers int) {
		for _, h := range hooks {
			if h.OnBatchDrain != nil {
				h.OnBatchDrain(writes, consumers)
			}
		}
	}
	merged.OnError = func(err error) {
		for _, h := range hooks {
			if h.OnError != nil {
				h.OnError(err)
			}
		}
	}
	return merged
}
