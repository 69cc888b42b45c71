// Package tangle provides the reactive core for the Tangle framework.
//
// The engine implements fine-grained reactivity: dependencies are
// discovered automatically at runtime. Reading a signal inside a memo
// computation or an effect body subscribes that computation to the
// signal's changes, and the subscription set is rediscovered on every run.
//
// # Core Types
//
// Signal[T] is a mutable reactive value container:
//
//	count := NewSignal(0)
//	value := count.Get()  // Read (registers a dependency when tracked)
//	count.Set(5)          // Write (notifies subscribers)
//	count.Update(func(n int) int { return n + 1 })
//
// Memo[T] is a cached derived computation. It is evaluated eagerly at
// creation and recomputed synchronously whenever a dependency changes, so
// Get always returns a fresh cached value without recomputing per read:
//
//	doubled := NewMemo(func() int { return count.Get() * 2 })
//	value := doubled.Get()
//
// Effect runs side effects when dependencies change and carries a cleanup
// lifecycle:
//
//	NewEffect(func() Cleanup {
//	    fmt.Println("Count is:", count.Get())
//	    return func() { /* cleanup before next run and on dispose */ }
//	})
//
// # Batching
//
// Multiple signal writes can be coalesced into a single notification pass:
//
//	Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})  // each consumer of a and b runs once
//
// # Ownership
//
// Owners group memos and effects for bulk teardown. The process-wide group
// registry maps component instance ids to owners so a UI layer can dispose
// everything a component created with one DisposeGroup call.
//
// # Execution Model
//
// The engine is synchronous and cooperatively reentrant: all recomputation
// happens inline on the call stack of the Set that triggered it, or at the
// drain point of the enclosing Batch. Within one delivery, memos settle
// before effects run, and each effect runs at most once per write even
// when it reaches the effect along several paths.
// Tracking state is per goroutine; work
// arriving from other goroutines (timers, external events) re-enters the
// graph through a Dispatcher.
package tangle
