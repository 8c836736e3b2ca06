package orderbook

import "feedbook/infra/memory"

type registryEntry struct {
	side   Side
	handle memory.Handle
}

// Registry maps order ids to the handle of the live order. It never owns
// orders; entries are added and dropped by the book in lockstep with the
// arena slot.
type Registry struct {
	entries map[string]registryEntry
}

func NewRegistry(hint int) *Registry {
	return &Registry{entries: make(map[string]registryEntry, hint)}
}

// Insert registers id. It reports false, leaving the existing entry
// untouched, when id is already live.
func (r *Registry) Insert(id string, side Side, h memory.Handle) bool {
	if _, ok := r.entries[id]; ok {
		return false
	}
	r.entries[id] = registryEntry{side: side, handle: h}
	return true
}

func (r *Registry) Lookup(id string) (Side, memory.Handle, bool) {
	e, ok := r.entries[id]
	return e.side, e.handle, ok
}

func (r *Registry) Contains(id string) bool {
	_, ok := r.entries[id]
	return ok
}

func (r *Registry) Remove(id string) {
	delete(r.entries, id)
}

func (r *Registry) Len() int { return len(r.entries) }
