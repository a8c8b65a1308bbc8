package client

import (
	"sort"
	"sync"
)

// UnreadEntry is the bookkeeping kept per channel.
//
// Total is the message count the user has acknowledged, LastKnownTotal the
// most recent count pushed by the server, and Count the unread badge.
type UnreadEntry struct {
	ChannelKey     string
	Total          int
	LastKnownTotal int
	Count          int
}

// Reconciler derives unread counts from per-channel message count
// snapshots. The active channel always reads 0; every other channel reads
// LastKnownTotal - Total, never below 0.
type Reconciler struct {
	mu      sync.Mutex
	active  string
	entries map[string]*UnreadEntry
}

func NewReconciler() *Reconciler {
	return &Reconciler{entries: make(map[string]*UnreadEntry)}
}

// OnSnapshot records an observed message count for a channel. The first
// snapshot of a channel is taken as already read.
func (r *Reconciler) OnSnapshot(channelKey string, observedTotal int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[channelKey]
	if !ok {
		r.entries[channelKey] = &UnreadEntry{
			ChannelKey:     channelKey,
			Total:          observedTotal,
			LastKnownTotal: observedTotal,
		}
		return
	}

	entry.LastKnownTotal = observedTotal
	if channelKey == r.active {
		entry.Count = 0
		return
	}
	entry.Count = max(0, observedTotal-entry.Total)
}

// OnChannelActivated makes channelKey the active channel. The previously
// active channel is reconciled (everything seen so far counts as read) and
// the new one is reset.
func (r *Reconciler) OnChannelActivated(channelKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == channelKey {
		return
	}
	if prev, ok := r.entries[r.active]; ok {
		prev.Total = prev.LastKnownTotal
		prev.Count = 0
	}

	r.active = channelKey
	if entry, ok := r.entries[channelKey]; ok {
		entry.Total = entry.LastKnownTotal
		entry.Count = 0
	}
}

// Forget drops a channel, e.g. when its count listener is removed.
func (r *Reconciler) Forget(channelKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, channelKey)
}

func (r *Reconciler) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Count is the unread badge for a channel; unknown channels read 0.
func (r *Reconciler) Count(channelKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[channelKey]; ok {
		return entry.Count
	}
	return 0
}

func (r *Reconciler) Entry(channelKey string) (UnreadEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[channelKey]
	if !ok {
		return UnreadEntry{}, false
	}
	return *entry, true
}

// Entries returns a copy of every entry sorted by channel key.
func (r *Reconciler) Entries() []UnreadEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]UnreadEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelKey < out[j].ChannelKey })
	return out
}
