package store

import (
	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// Heap is the committed local cache of revisions: the replica's
// authoritative view of what the remote has acknowledged, as of the last
// time it was told.
type Heap struct {
	*container
}

// NewHeap creates an empty Heap.
func NewHeap() *Heap {
	return &Heap{container: newContainer()}
}

// Get returns the heap's revision for key, or the ok=false zero value if
// the heap has never observed this (entity, type).
func (h *Heap) Get(key address.FactKey) (fact.Revision, bool) {
	return h.get(key)
}

// Merge folds a remote-originated revision (from integrate or pull) into
// the heap using the Put predicate: the higher Since wins.
func (h *Heap) Merge(key address.FactKey, incoming fact.Revision) (fact.Revision, bool) {
	return h.merge(key, incoming, Put)
}

// Refresh folds a revision into the heap using the Update predicate,
// appropriate when the caller is refreshing a fact it already expects to
// be present (e.g. a schema-subscription snapshot for an address whose
// prior state was a real revision, not a placeholder) — an absent side
// never wins here.
func (h *Heap) Refresh(key address.FactKey, incoming fact.Revision) (fact.Revision, bool) {
	return h.merge(key, incoming, Update)
}

// Promote installs revision directly, without going through a merge
// predicate — used when a locally pushed write is acknowledged by the
// server and its nursery shadow is promoted to committed truth.
func (h *Heap) Promote(key address.FactKey, revision fact.Revision) (fact.Revision, bool) {
	return h.merge(key, revision, func(_, remote *fact.Revision) fact.Revision { return *remote })
}

// Subscribe registers fn to be called whenever the heap entry for key
// changes to a non-placeholder revision.
func (h *Heap) Subscribe(key address.FactKey, fn Subscriber) Subscription {
	return h.subscribe(key, fn)
}

// Unsubscribe removes a subscription previously returned by Subscribe.
func (h *Heap) Unsubscribe(key address.FactKey, id Subscription) {
	h.unsubscribe(key, id)
}

// Reset clears every heap entry while preserving subscriber
// registrations, matching Replica.reset()'s "drop heap, keep
// subscribers" contract.
func (h *Heap) Reset() {
	h.clear()
}

// Snapshot returns a shallow copy of the heap's current contents.
func (h *Heap) Snapshot() map[address.FactKey]fact.Revision {
	return h.snapshot()
}

// Len reports the number of distinct (entity, type) facts in the heap.
func (h *Heap) Len() int {
	return h.len()
}
