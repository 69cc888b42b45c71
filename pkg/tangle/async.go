package tangle

import (
	"context"
	"sync"
)

// NewAsyncEffect is the effect variant for bodies that launch asynchronous
// work. The body receives a cancellation token that is cancelled when the
// effect re-runs or is disposed, and a deliver function for the cleanup an
// asynchronous operation eventually produces.
//
// deliver closes the late-cleanup race: a cleanup delivered while the
// launching run is still current is held and invoked by the normal
// protocol (before the next run, or once at disposal); a cleanup arriving
// after the token was cancelled is dropped, because the run it belongs to
// has already been cleaned up.
//
//	tangle.NewAsyncEffect(func(ctx context.Context, deliver func(tangle.Cleanup)) {
//	    q := query.Get()
//	    go func() {
//	        conn, err := open(ctx, q)
//	        if err != nil {
//	            return
//	        }
//	        deliver(func() { conn.Close() })
//	    }()
//	})
func NewAsyncEffect(body func(ctx context.Context, deliver func(Cleanup)), opts ...EffectOption) *Effect {
	return NewAsyncEffectOn(Default, body, opts...)
}

// NewAsyncEffectOn is NewAsyncEffect bound to an explicit tracker.
func NewAsyncEffectOn(t *Tracker, body func(ctx context.Context, deliver func(Cleanup)), opts ...EffectOption) *Effect {
	return NewEffectOn(t, func() Cleanup {
		runCtx, cancel := context.WithCancel(context.Background())

		var mu sync.Mutex
		var delivered Cleanup

		deliver := func(c Cleanup) {
			mu.Lock()
			defer mu.Unlock()
			if runCtx.Err() != nil {
				// The run this cleanup belongs to is already torn
				// down; applying it now would be out of order.
				return
			}
			delivered = c
		}

		body(runCtx, deliver)

		return func() {
			cancel()
			mu.Lock()
			c := delivered
			delivered = nil
			mu.Unlock()
			if c != nil {
				c()
			}
		}
	}, opts...)
}
