package tangle

import "sync"

// GroupRegistry maps owner identifiers (component instance ids, typically)
// to owners, so a UI layer can tear down everything a component created
// with one call at unmount.
type GroupRegistry struct {
	mu     sync.Mutex
	groups map[string]*Owner
}

// NewGroupRegistry returns an empty registry. Most callers use the
// process-wide one through RegisterGroup / DisposeGroup.
func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{groups: make(map[string]*Owner)}
}

// Register returns the owner for id, creating a root owner if none is
// registered yet.
func (r *GroupRegistry) Register(id string) *Owner {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.groups[id]; ok && !o.IsDisposed() {
		return o
	}
	o := NewOwner(nil)
	r.groups[id] = o
	return o
}

// Lookup returns the owner registered under id.
func (r *GroupRegistry) Lookup(id string) (*Owner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.groups[id]
	return o, ok
}

// Dispose tears down the owner registered under id and removes the
// mapping. Reports whether a group existed.
func (r *GroupRegistry) Dispose(id string) bool {
	r.mu.Lock()
	o, ok := r.groups[id]
	delete(r.groups, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	o.Dispose()
	return true
}

// Len returns the number of registered groups.
func (r *GroupRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}

var processGroups = NewGroupRegistry()

// RegisterGroup returns the process-wide owner for id, creating it on
// first use.
func RegisterGroup(id string) *Owner {
	return processGroups.Register(id)
}

// LookupGroup returns the process-wide owner registered under id.
func LookupGroup(id string) (*Owner, bool) {
	return processGroups.Lookup(id)
}

// DisposeGroup tears down the process-wide group registered under id:
// every effect and memo created under it is disposed and holds zero
// subscriptions afterward.
func DisposeGroup(id string) bool {
	return processGroups.Dispose(id)
}
