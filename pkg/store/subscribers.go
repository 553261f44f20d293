package store

import (
	"sync"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// Subscriber observes a single fact's revisions after they change. It may
// be invoked re-entrantly from inside a commit or integrate path; it must
// not call back into the store synchronously (see package replica for
// the microtask-style deferral used when fanning these out further).
type Subscriber func(fact.Revision)

// Subscription is an opaque handle returned by Subscribe, passed back to
// Unsubscribe.
type Subscription uint64

type subscriberEntry struct {
	id Subscription
	fn Subscriber
}

// registry is a per-FactKey subscriber index shared by Heap and Nursery.
// Fan-out order within one key is FIFO by subscription order — stable,
// though the spec only guarantees "an unspecified but stable order".
type registry struct {
	mu     sync.Mutex
	nextID Subscription
	byKey  map[address.FactKey][]subscriberEntry
}

func newRegistry() *registry {
	return &registry{byKey: make(map[address.FactKey][]subscriberEntry)}
}

func (r *registry) subscribe(key address.FactKey, fn Subscriber) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.byKey[key] = append(r.byKey[key], subscriberEntry{id: id, fn: fn})
	return id
}

func (r *registry) unsubscribe(key address.FactKey, id Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.byKey[key]
	for i, e := range entries {
		if e.id == id {
			r.byKey[key] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(r.byKey[key]) == 0 {
		delete(r.byKey, key)
	}
}

// notify fires every subscriber registered for key with rev, in FIFO
// order. A placeholder revision never fires subscribers — call sites
// check IsPlaceholder before calling notify.
func (r *registry) notify(key address.FactKey, rev fact.Revision) {
	r.mu.Lock()
	entries := make([]subscriberEntry, len(r.byKey[key]))
	copy(entries, r.byKey[key])
	r.mu.Unlock()

	for _, e := range entries {
		e.fn(rev)
	}
}

// count returns the number of subscribers currently registered for key,
// for diagnostics and metrics.
func (r *registry) count(key address.FactKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey[key])
}
