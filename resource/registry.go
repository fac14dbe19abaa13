package resource

import (
	"sync"
)

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventAcquired EventType = iota
	EventReleased
)

// Event represents a resource lifecycle event.
type Event struct {
	Kind string
	ID   uint64
	Type EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

type regEntry struct {
	release func() bool
	kind    string
	id      uint64
	valid   bool
}

// Registry tracks live resources in acquisition order. Entries are released
// individually as their owners close, or all together in reverse acquisition
// order when the registry closes (streams before libraries before executors,
// matching dependency order).
type Registry struct {
	entries   []regEntry
	observers []Observer
	nextID    uint64
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make([]regEntry, 0, 16),
	}
}

// Add records a live resource and returns its registry id. release is the
// owner's idempotent release path. Returns 0 if the registry is closed.
func (r *Registry) Add(kind string, release func() bool) uint64 {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0
	}
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, regEntry{
		id:      id,
		kind:    kind,
		release: release,
		valid:   true,
	})
	r.mu.Unlock()

	r.notify(Event{Type: EventAcquired, Kind: kind, ID: id})
	return id
}

// Release releases the resource with the given id and removes it from the
// registry. Safe to call for ids already released.
func (r *Registry) Release(id uint64) bool {
	if id == 0 {
		return false
	}

	r.mu.Lock()
	var e *regEntry
	for i := range r.entries {
		if r.entries[i].id == id && r.entries[i].valid {
			e = &r.entries[i]
			break
		}
	}
	if e == nil {
		r.mu.Unlock()
		return false
	}
	e.valid = false
	kind, release := e.kind, e.release
	e.release = nil
	r.mu.Unlock()

	if release != nil {
		release()
	}
	r.notify(Event{Type: EventReleased, Kind: kind, ID: id})
	return true
}

// Len returns the number of live resources.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for i := range r.entries {
		if r.entries[i].valid {
			count++
		}
	}
	return count
}

// Each iterates over live resources in acquisition order.
func (r *Registry) Each(fn func(id uint64, kind string) bool) {
	r.mu.Lock()
	snapshot := make([]regEntry, 0, len(r.entries))
	for i := range r.entries {
		if r.entries[i].valid {
			snapshot = append(snapshot, r.entries[i])
		}
	}
	r.mu.Unlock()

	for _, e := range snapshot {
		if !fn(e.id, e.kind) {
			break
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Unsubscribe removes an observer.
func (r *Registry) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// Close releases every remaining resource in reverse acquisition order and
// stops accepting new entries.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	leftover := make([]regEntry, 0, len(r.entries))
	for i := range r.entries {
		if r.entries[i].valid {
			leftover = append(leftover, r.entries[i])
			r.entries[i].valid = false
			r.entries[i].release = nil
		}
	}
	r.entries = nil
	r.mu.Unlock()

	for i := len(leftover) - 1; i >= 0; i-- {
		if leftover[i].release != nil {
			leftover[i].release()
		}
		r.notify(Event{Type: EventReleased, Kind: leftover[i].kind, ID: leftover[i].id})
	}
	return nil
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnResourceEvent(e)
	}
}
