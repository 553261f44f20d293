package replica

import (
	"context"
	"sync"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/cache"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/log"
	"github.com/commontoolsinc/memory/pkg/notify"
	"github.com/commontoolsinc/memory/pkg/store"
	"github.com/commontoolsinc/memory/pkg/transport"
	"github.com/commontoolsinc/memory/pkg/wire"
)

// Replica is the per-space coordinator: the only writer of its own heap,
// nursery, selector tracker, and pending-cause tracker.
type Replica struct {
	space    fact.Space
	consumer transport.Consumer
	relay    *notify.Relay
	cache    *cache.Store

	heap    *store.Heap
	nursery *store.Nursery

	mu        sync.Mutex
	selectors *selectorTracker
	schemas   map[string]wire.Selector          // tracked schema subscriptions, by selector hash
	knownRefs map[string]map[fact.Entity]struct{} // entities already surfaced to each schema subscription's Of set, by selector hash

	pending sync.WaitGroup // in-flight server queries and pending subscription snapshots; see Synced
}

// New creates a Replica for space, backed by consumer. cacheStore may be
// nil, in which case persistence is a no-op (see package cache).
func New(space fact.Space, consumer transport.Consumer, relay *notify.Relay, cacheStore *cache.Store) *Replica {
	return &Replica{
		space:     space,
		consumer:  consumer,
		relay:     relay,
		cache:     cacheStore,
		heap:      store.NewHeap(),
		nursery:   store.NewNursery(),
		selectors: newSelectorTracker(),
		schemas:   make(map[string]wire.Selector),
		knownRefs: make(map[string]map[fact.Entity]struct{}),
	}
}

// Space reports the space this Replica coordinates.
func (r *Replica) Space() fact.Space {
	return r.space
}

// Get is the synchronous nursery-then-heap lookup: nursery shadow wins
// over committed heap state, per the "nursery ?? heap ?? unclaimed(-1)"
// invariant of spec.md §3. It never touches the remote.
func (r *Replica) Get(key address.FactKey) (fact.Revision, bool) {
	if rev, ok := r.nursery.Get(key); ok {
		return rev, true
	}
	if rev, ok := r.heap.Get(key); ok {
		return rev, true
	}
	return fact.Revision{}, false
}

// Load implements chronicle.Loader: nursery-then-heap, synthesizing an
// UnknownSince placeholder when neither container has observed the fact.
// Chronicle reads never themselves trigger a remote round trip — that is
// Pull and Watch, which callers invoke explicitly before reading (as
// storagectl's space read does with Pull).
func (r *Replica) Load(key address.FactKey) (fact.Revision, bool) {
	if rev, ok := r.Get(key); ok {
		return rev, true
	}
	return fact.Revision{Fact: fact.Unclaimed(key.Entity, key.Type), Since: fact.UnknownSince}, false
}

// Subscribe registers fn to be invoked whenever the heap's entry for key
// changes to a non-placeholder revision (nursery shadows fire their own
// heap promotion once acknowledged, not a separate nursery event, so
// subscribers observe committed truth).
func (r *Replica) Subscribe(key address.FactKey, fn store.Subscriber) store.Subscription {
	return r.heap.Subscribe(key, fn)
}

// Unsubscribe removes a subscription previously returned by Subscribe.
func (r *Replica) Unsubscribe(key address.FactKey, id store.Subscription) {
	r.heap.Unsubscribe(key, id)
}

// Reset drops heap, nursery, selector tracker, and pending-cause state
// while preserving heap subscriber registrations, then emits a reset
// notification. Used when a transport reconnects and the remote's
// authoritative state must be re-derived from scratch.
func (r *Replica) Reset() {
	r.mu.Lock()
	r.selectors = newSelectorTracker()
	r.mu.Unlock()

	r.heap.Reset()
	r.nursery.Reset()

	r.relay.Publish(notify.Notification{Kind: notify.KindReset, Space: r.space})
	log.WithSpace(string(r.space)).Info().Msg("replica reset")
}

// Synced blocks until every server query and subscription snapshot this
// replica currently has in flight has resolved, or ctx is done. It is
// the "synced" suspension point of spec.md §5: a caller that has just
// issued a batch of Load/Pull/Watch calls awaits Synced to be sure the
// heap reflects every one of them before reading it, without having to
// track the individual calls itself.
func (r *Replica) Synced(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrackedSchemas returns every schema selector currently tracked for
// reconnect re-subscription, keyed by selector hash.
func (r *Replica) TrackedSchemas() map[string]wire.Selector {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]wire.Selector, len(r.schemas))
	for k, v := range r.schemas {
		out[k] = v
	}
	return out
}

func (r *Replica) trackSchema(sel wire.Selector) {
	if !sel.IsSchemaAware() {
		return
	}
	hash := selectorHash(sel)
	r.mu.Lock()
	r.schemas[hash] = sel
	if _, ok := r.knownRefs[hash]; !ok {
		known := make(map[fact.Entity]struct{}, len(sel.Of))
		for _, e := range sel.Of {
			known[e] = struct{}{}
		}
		r.knownRefs[hash] = known
	}
	r.mu.Unlock()
}

func selectorHash(sel wire.Selector) string {
	return fact.HashValue(map[string]any{
		"space":  string(sel.Space),
		"of":     sel.Of,
		"the":    string(sel.The),
		"schema": string(sel.Schema),
		"branch": sel.Branch,
	}).Digest()
}

// reportErr wraps a transport-originated failure as a ConnectionError, so
// callers can errors.As it to decide whether the §7 "connection kind also
// triggers reconnect" policy applies, without losing the underlying
// error for logging or errors.Is.
func reportErr(op string, space fact.Space, err error) error {
	return &ConnectionError{Op: op, Space: string(space), Err: err}
}
