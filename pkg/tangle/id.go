package tangle

import "sync/atomic"

// idCounter issues unique ids for every reactive primitive. Monotonic,
// never reused; the ids are what makes dependency-set diffs well-defined.
var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}
