package store

import (
	"sync"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// mergeFunc folds an incoming revision against whatever is already
// stored for a key (nil if nothing is stored yet) and returns the
// revision that should be kept.
type mergeFunc func(local, remote *fact.Revision) fact.Revision

// container is the shared map+subscriber machinery behind both Heap and
// Nursery. It is not exported: Heap and Nursery each wrap one with the
// merge predicate and extra bookkeeping appropriate to their role.
type container struct {
	mu   sync.RWMutex
	subs *registry
	data map[address.FactKey]fact.Revision
}

func newContainer() *container {
	return &container{
		subs: newRegistry(),
		data: make(map[address.FactKey]fact.Revision),
	}
}

// get returns the stored revision for key, if any.
func (c *container) get(key address.FactKey) (fact.Revision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rev, ok := c.data[key]
	return rev, ok
}

// merge folds incoming into the container using merge, storing and
// returning the result. It reports whether the stored value changed (by
// content hash) so callers can decide whether to fire subscribers.
func (c *container) merge(key address.FactKey, incoming fact.Revision, merge mergeFunc) (result fact.Revision, changed bool) {
	c.mu.Lock()
	existing, had := c.data[key]
	var localPtr *fact.Revision
	if had {
		localPtr = &existing
	}
	result = merge(localPtr, &incoming)
	changed = !had || !fact.HashFact(existing.Fact).Equal(fact.HashFact(result.Fact)) || existing.Since != result.Since
	c.data[key] = result
	c.mu.Unlock()

	if changed && !result.IsPlaceholder() {
		c.subs.notify(key, result)
	}
	return result, changed
}

// delete removes key from the container without firing a subscriber
// notification (used to retire evicted nursery entries, which by
// definition no longer differ from what the heap already announced).
func (c *container) delete(key address.FactKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// subscribe registers fn against key and returns an unsubscribe handle.
func (c *container) subscribe(key address.FactKey, fn Subscriber) Subscription {
	return c.subs.subscribe(key, fn)
}

func (c *container) unsubscribe(key address.FactKey, id Subscription) {
	c.subs.unsubscribe(key, id)
}

// snapshot returns a shallow copy of every entry currently stored, for
// resets and diagnostics.
func (c *container) snapshot() map[address.FactKey]fact.Revision {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[address.FactKey]fact.Revision, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// clear empties the container without touching its subscriber registry
// (used by Replica.Reset, which keeps subscribers alive across a
// reconnect).
func (c *container) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[address.FactKey]fact.Revision)
}

func (c *container) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
