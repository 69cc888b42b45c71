package tangle

import "log/slog"

// DebugMode enables debug logging in the engine (named batch boundaries).
// Set at startup; not synchronized.
var DebugMode bool

// Batch groups multiple signal writes into a single notification pass on
// the tracker. While the batch is open, writes record the producer instead
// of notifying; at the outermost exit the queue drains once, in
// first-write order, and every affected consumer runs exactly once no
// matter how many of its producers were written.
//
// Batches nest; only the outermost exit drains.
func (t *Tracker) Batch(fn func()) {
	c := t.ctx()
	c.batchDepth++
	defer func() {
		c.batchDepth--
		if c.batchDepth == 0 {
			t.drainPending(c, true)
		}
		t.dropIfIdle(c)
	}()
	fn()
}

// pendingWrite is a written producer awaiting delivery, paired with the
// subscribers it had when the write happened. Snapshotting at write time
// means a consumer that unsubscribes before writing (an effect body, for
// instance) does not see its own write delivered back to it.
type pendingWrite struct {
	base *signalBase
	subs []subscription
}

// enqueueWrite records a written producer for later delivery, deduplicated
// by id, preserving first-write order. The producer already holds its
// final value; only notification is deferred.
func (t *Tracker) enqueueWrite(c *gctx, s *signalBase) {
	if c.pendingIDs == nil {
		c.pendingIDs = make(map[uint64]struct{})
	}
	if _, ok := c.pendingIDs[s.id]; ok {
		return
	}
	c.pendingIDs[s.id] = struct{}{}
	c.pending = append(c.pending, pendingWrite{base: s, subs: s.snapshotSubs()})
}

// drainPending delivers queued writes in rounds. Within a round the queue
// is walked in first-write order: plain subscriber callbacks fire with the
// producer's final value, derived producers (memos) recompute immediately
// so their own changes join the queue, and the remaining listeners (the
// effects) are deferred, deduplicated by id in first-seen order. Once the
// queue is empty the deferred listeners run, each exactly once. Running
// memos to a fixpoint before any effect means an effect that reads both a
// signal and a memo derived from it re-runs once per write, never twice.
//
// Writes performed during the drain (by a callback, a recompute, or an
// effect body) queue into the same drain and open the next round; past
// maxWriteDepth queue takes the drain fails closed with a CycleError.
func (t *Tracker) drainPending(c *gctx, fromBatch bool) {
	if c.draining || len(c.pending) == 0 {
		return
	}
	c.draining = true
	defer func() { c.draining = false }()

	totalWrites := 0
	totalConsumers := 0
	takes := 0

	for len(c.pending) > 0 {
		seenEffects := make(map[uint64]struct{})
		var deferred []Listener

		for len(c.pending) > 0 {
			takes++
			if takes > maxWriteDepth {
				report(t, &CycleError{Op: "write", ID: c.pending[0].base.id})
				c.pending = nil
				c.pendingIDs = nil
				return
			}
			writes := c.pending
			c.pending = nil
			c.pendingIDs = nil
			totalWrites += len(writes)

			seenDerived := make(map[uint64]struct{})
			for _, w := range writes {
				for _, sub := range w.subs {
					switch {
					case sub.listener == nil:
						safeNotify(t, sub.id, sub.notify)
					case isDerived(sub.listener):
						if _, ok := seenDerived[sub.id]; ok {
							continue
						}
						seenDerived[sub.id] = struct{}{}
						totalConsumers++
						safeMark(t, sub.listener)
					default:
						if _, ok := seenEffects[sub.id]; ok {
							continue
						}
						seenEffects[sub.id] = struct{}{}
						deferred = append(deferred, sub.listener)
					}
				}
			}
		}

		totalConsumers += len(deferred)
		for _, l := range deferred {
			safeMark(t, l)
		}
	}

	if fromBatch {
		if h := t.hooksRef(); h.OnBatchDrain != nil {
			h.OnBatchDrain(totalWrites, totalConsumers)
		}
	}
}

// Batch groups writes on the default tracker.
//
// Example:
//
//	Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	})
//	// each consumer of either signal runs once
func Batch(fn func()) {
	Default.Batch(fn)
}

// BatchNamed runs fn as a named batch for debugging. The name is logged
// at batch boundaries when DebugMode is on.
func BatchNamed(name string, fn func()) {
	if DebugMode {
		slog.Default().Debug("tangle: batch start", "name", name)
		defer slog.Default().Debug("tangle: batch end", "name", name)
	}
	Batch(fn)
}
