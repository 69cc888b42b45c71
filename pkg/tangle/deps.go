package tangle

// depSet is a dependency snapshot: the producers a consumer read during
// one run, in read order, deduplicated by signal id. Stable ids make the
// set difference between two runs well-defined regardless of value
// semantics.
type depSet struct {
	order []*signalBase
	ids   map[uint64]struct{}
}

func newDepSet() *depSet {
	return &depSet{ids: make(map[uint64]struct{})}
}

func (d *depSet) add(s *signalBase) {
	if _, ok := d.ids[s.id]; ok {
		return
	}
	d.ids[s.id] = struct{}{}
	d.order = append(d.order, s)
}

func (d *depSet) contains(id uint64) bool {
	_, ok := d.ids[id]
	return ok
}

func (d *depSet) size() int {
	return len(d.order)
}

// retarget swaps a consumer's active subscriptions from its previous
// snapshot to the set read on its latest run: producers no longer read are
// unsubscribed, newly read ones subscribed. After retarget the consumer's
// subscriptions equal next exactly.
func retarget(l Listener, old, next *depSet) {
	lid := l.ID()
	for _, s := range old.order {
		if !next.contains(s.id) {
			s.unsubscribeListener(lid)
		}
	}
	for _, s := range next.order {
		if !old.contains(s.id) {
			s.subscribeListener(l)
		}
	}
}

// dropAll removes the consumer from every producer in the snapshot.
func dropAll(l Listener, deps *depSet) {
	lid := l.ID()
	for _, s := range deps.order {
		s.unsubscribeListener(lid)
	}
}
