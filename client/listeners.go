package client

import (
	"sort"
	"sync"
)

// Listener receives events for one (path, event) pair.
type Listener func(Event)

// Subscriber sends subscribe and unsubscribe frames. *Conn implements it.
type Subscriber interface {
	Subscribe(path, event string) error
	Unsubscribe(path, event string) error
}

type listenerKey struct {
	Path  string
	Event string
}

// Registry tracks which owners listen to which (path, event) pairs.
//
// Each owner has at most one listener per pair, so registering again only
// replaces the callback. The server subscription follows the listener set:
// subscribe goes out with the first listener on a pair and unsubscribe
// with the last.
type Registry struct {
	sub Subscriber

	mu        sync.Mutex
	listeners map[listenerKey]map[string]Listener
}

func NewRegistry(sub Subscriber) *Registry {
	return &Registry{
		sub:       sub,
		listeners: make(map[listenerKey]map[string]Listener),
	}
}

// On registers fn for owner. If the subscribe frame cannot be sent the
// registration is rolled back.
func (r *Registry) On(owner, path, event string, fn Listener) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := listenerKey{Path: path, Event: event}
	owners, ok := r.listeners[key]
	if !ok {
		if err := r.sub.Subscribe(path, event); err != nil {
			return err
		}
		owners = make(map[string]Listener)
		r.listeners[key] = owners
	}
	owners[owner] = fn
	return nil
}

// Off removes owner's listener on (path, event). Removing a listener that
// is not registered is a no-op.
func (r *Registry) Off(owner, path, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offLocked(owner, listenerKey{Path: path, Event: event})
}

// OffAll removes every listener owner registered.
func (r *Registry) OffAll(owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for key, owners := range r.listeners {
		if _, ok := owners[owner]; !ok {
			continue
		}
		if err := r.offLocked(owner, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) offLocked(owner string, key listenerKey) error {
	owners, ok := r.listeners[key]
	if !ok {
		return nil
	}
	if _, ok := owners[owner]; !ok {
		return nil
	}
	delete(owners, owner)
	if len(owners) > 0 {
		return nil
	}
	delete(r.listeners, key)
	return r.sub.Unsubscribe(key.Path, key.Event)
}

// Count is the number of listeners on (path, event).
func (r *Registry) Count(path, event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[listenerKey{Path: path, Event: event}])
}

// Dispatch delivers a path event to its listeners in owner order. The
// callbacks run without the registry lock held, so they may call On and
// Off themselves.
func (r *Registry) Dispatch(event Event) {
	r.mu.Lock()
	owners := r.listeners[listenerKey{Path: event.Path, Event: event.Op}]
	names := make([]string, 0, len(owners))
	for name := range owners {
		names = append(names, name)
	}
	sort.Strings(names)
	callbacks := make([]Listener, len(names))
	for i, name := range names {
		callbacks[i] = owners[name]
	}
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}
