package replica

import (
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/wire"
)

// MaxExpandNodes caps how many JSON nodes one ExpandReferences call will
// visit, so a pathological or adversarial payload cannot make
// subscription maintenance unbounded.
const MaxExpandNodes = 10000

// ExpandReferences walks values breadth-first — an explicit queue, never
// a recursive stack walk, per spec.md §9 — looking for {"/": id}-shaped
// cross-references to other entities, and returns the ones not already
// present in known. The subscription manager uses this to grow a
// schema-aware subscription's entity set as newly-integrated facts
// reveal more of the graph they reference.
func ExpandReferences(values []fact.JsonValue, known map[fact.Entity]struct{}) []fact.Entity {
	var discovered []fact.Entity
	seen := make(map[fact.Entity]struct{}, len(known))
	for id := range known {
		seen[id] = struct{}{}
	}

	queue := append([]fact.JsonValue(nil), values...)

	visited := 0
	for len(queue) > 0 && visited < MaxExpandNodes {
		node := queue[0]
		queue = queue[1:]
		visited++

		switch v := node.(type) {
		case map[string]any:
			if id, ok := referenceID(v); ok {
				if _, already := seen[id]; !already {
					seen[id] = struct{}{}
					discovered = append(discovered, id)
				}
				continue
			}
			for _, child := range v {
				queue = append(queue, child)
			}
		case []any:
			queue = append(queue, v...)
		}
	}
	return discovered
}

// referenceID reports whether v is exactly the one-key {"/": "..."} shape
// a cross-reference takes on the wire, and if so the entity id it names.
func referenceID(v map[string]any) (fact.Entity, bool) {
	if len(v) != 1 {
		return "", false
	}
	raw, ok := v["/"]
	if !ok {
		return "", false
	}
	id, ok := raw.(string)
	if !ok || id == "" {
		return "", false
	}
	return fact.Entity(id), true
}

// growSubscriptions runs ExpandReferences for every tracked schema
// subscription against a batch of freshly integrated values, records the
// newly discovered entities against that subscription's known set, and
// returns one delta selector per subscription that grew — Of set to just
// the newly discovered entities, not the whole accumulated list, so the
// caller can open an incremental subscription rather than re-fetching
// everything already known.
func (r *Replica) growSubscriptions(values []fact.JsonValue) []wire.Selector {
	if len(values) == 0 {
		return nil
	}

	var deltas []wire.Selector
	r.mu.Lock()
	for hash, sel := range r.schemas {
		known := r.knownRefs[hash]
		discovered := ExpandReferences(values, known)
		if len(discovered) == 0 {
			continue
		}
		for _, id := range discovered {
			known[id] = struct{}{}
		}
		delta := sel
		delta.Of = discovered
		deltas = append(deltas, delta)
	}
	r.mu.Unlock()
	return deltas
}
