package tangle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ErrNoDispatcher is panicked by time-based helpers (Interval, Timeout)
// when no Dispatcher is bound to the calling goroutine. These helpers fire
// from timer goroutines and need a dispatch loop to re-enter the graph.
var ErrNoDispatcher = errors.New("tangle: no dispatcher bound; time-based helpers must run under a runtime loop")

// CycleError reports a dependency cycle or an exhausted re-entrant write
// budget. The engine recovers by aborting the offending computation and
// keeping the rest of the graph live.
type CycleError struct {
	// Op identifies what cycled: "memo", "effect", or "write".
	Op   string
	ID   uint64
	Name string
}

func (e *CycleError) Error() string {
	switch e.Op {
	case "write":
		return fmt.Sprintf("tangle: re-entrant write depth exceeded at signal %d", e.ID)
	default:
		if e.Name != "" {
			return fmt.Sprintf("tangle: dependency cycle in %s %q (id %d)", e.Op, e.Name, e.ID)
		}
		return fmt.Sprintf("tangle: dependency cycle in %s %d", e.Op, e.ID)
	}
}

// ExecutionError wraps a panic recovered from a memo computation, an effect
// body, or a subscriber callback. The panic never propagates to the writer
// that triggered the run.
type ExecutionError struct {
	// Op identifies the failing computation: "memo", "effect",
	// "subscriber", or "cleanup".
	Op        string
	ID        uint64
	Name      string
	Recovered any
}

func (e *ExecutionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("tangle: %s %q (id %d) panicked: %v", e.Op, e.Name, e.ID, e.Recovered)
	}
	return fmt.Sprintf("tangle: %s %d panicked: %v", e.Op, e.ID, e.Recovered)
}

// Unwrap exposes the recovered value when it was an error, so callers can
// use errors.Is/As through the boundary.
func (e *ExecutionError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// ValidationError is returned by GuardedSignal.Set when the validator
// rejects the incoming value. Rejected writes do not notify.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "tangle: value rejected: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// reporter receives engine-internal errors: recovered panics, cycle
// detections, write-depth overflows. Replaceable for tests and embedders.
var reporter atomic.Value // func(error)

func init() {
	reporter.Store(func(err error) {
		slog.Default().Error("tangle: reactive error", "err", err)
	})
}

// SetReporter replaces the process-wide error reporter. The reporter must
// not panic and must not write signals.
func SetReporter(fn func(error)) {
	if fn == nil {
		fn = func(error) {}
	}
	reporter.Store(fn)
}

// report delivers an engine error to the tracker's hooks and the
// process-wide reporter. It never panics.
func report(t *Tracker, err error) {
	if t != nil {
		if h := t.hooksRef(); h.OnError != nil {
			h.OnError(err)
		}
	}
	reporter.Load().(func(error))(err)
}
