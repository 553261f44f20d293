package store

import (
	"sync"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// Nursery is the optimistic shadow of writes sent to the remote but not
// yet acknowledged. Alongside the revisions themselves it indexes which
// cause hashes are outstanding per (entity, type): this is the "pending
// cause tracker" of spec.md §4.2, used to suppress the echoed
// notification when the server's own subscription feed reports back a
// commit this replica already announced optimistically.
type Nursery struct {
	*container

	causeMu sync.Mutex
	causes  map[address.FactKey]map[string]struct{}
}

// NewNursery creates an empty Nursery.
func NewNursery() *Nursery {
	return &Nursery{
		container: newContainer(),
		causes:    make(map[address.FactKey]map[string]struct{}),
	}
}

// Get returns the nursery's shadow revision for key, if any.
func (n *Nursery) Get(key address.FactKey) (fact.Revision, bool) {
	return n.get(key)
}

// Put installs an optimistic revision for key using the Put merge
// predicate (the higher Since wins; a fresh optimistic write always has
// no Since yet assigned by the server, so it is tracked at
// fact.UnknownSince until promoted).
func (n *Nursery) Put(key address.FactKey, incoming fact.Revision) (fact.Revision, bool) {
	return n.merge(key, incoming, Put)
}

// Evict removes the nursery's shadow for key once the heap has caught up
// (per the Evict predicate), so that future reads fall through to heap.
func (n *Nursery) Evict(key address.FactKey, heapRevision fact.Revision) bool {
	shadow, ok := n.get(key)
	if !ok {
		return false
	}
	if !Evict(shadow, heapRevision) {
		return false
	}
	n.delete(key)
	return true
}

// Drop removes the nursery's shadow for key unconditionally, used when a
// push is rejected and its optimistic facts must be rolled back.
func (n *Nursery) Drop(key address.FactKey) {
	n.delete(key)
}

// Subscribe registers fn to be called whenever the nursery entry for key
// changes to a non-placeholder revision.
func (n *Nursery) Subscribe(key address.FactKey, fn Subscriber) Subscription {
	return n.subscribe(key, fn)
}

// Unsubscribe removes a subscription previously returned by Subscribe.
func (n *Nursery) Unsubscribe(key address.FactKey, id Subscription) {
	n.unsubscribe(key, id)
}

// Reset clears every nursery entry and every tracked cause, used on
// reconnect (unlike the heap, the nursery has no subscribers of its own
// to preserve — Replica's public subscriptions are on the heap).
func (n *Nursery) Reset() {
	n.clear()
	n.causeMu.Lock()
	n.causes = make(map[address.FactKey]map[string]struct{})
	n.causeMu.Unlock()
}

// TrackCause records that a revision carrying this cause hash has been
// pushed to the server for key, and is awaiting acknowledgment.
func (n *Nursery) TrackCause(key address.FactKey, cause fact.Reference) {
	n.causeMu.Lock()
	defer n.causeMu.Unlock()
	set, ok := n.causes[key]
	if !ok {
		set = make(map[string]struct{})
		n.causes[key] = set
	}
	set[cause.Digest()] = struct{}{}
}

// UntrackCause removes a previously tracked cause hash, returning true if
// it had been tracked. Call sites use the return value to decide whether
// an integrated revision is this replica's own echoed write (suppress
// its subscriber notification) or a genuine third-party change.
func (n *Nursery) UntrackCause(key address.FactKey, cause fact.Reference) bool {
	n.causeMu.Lock()
	defer n.causeMu.Unlock()
	set, ok := n.causes[key]
	if !ok {
		return false
	}
	if _, tracked := set[cause.Digest()]; !tracked {
		return false
	}
	delete(set, cause.Digest())
	if len(set) == 0 {
		delete(n.causes, key)
	}
	return true
}

// IsPendingCause reports whether cause is currently tracked as an
// outstanding write for key, without removing it.
func (n *Nursery) IsPendingCause(key address.FactKey, cause fact.Reference) bool {
	n.causeMu.Lock()
	defer n.causeMu.Unlock()
	_, tracked := n.causes[key][cause.Digest()]
	return tracked
}

// Len reports the number of distinct (entity, type) facts currently
// shadowed in the nursery.
func (n *Nursery) Len() int {
	return n.len()
}
