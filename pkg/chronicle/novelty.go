package chronicle

import (
	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// pathWrite is one explicit write recorded against a novelty root, kept
// so commit can rebase the whole root onto whatever the fact's current
// stored value is by the time the transaction settles.
type pathWrite struct {
	Path  address.Path
	Value fact.JsonValue
}

// Changes is the merged write state for one (entity, type): an
// incrementally-maintained merged root value plus the ordered list of
// explicit sub-path writes that produced it.
type Changes struct {
	Root   address.Address
	Value  fact.JsonValue
	Writes []pathWrite
}

// Novelty is the per-(entity,type) write log of one Chronicle. All writes
// into one fact merge into a single root, so N writes cost O(path-depth)
// total, not O(N).
type Novelty struct {
	order   []address.FactKey
	entries map[address.FactKey]*Changes
}

func newNovelty() *Novelty {
	return &Novelty{entries: make(map[address.FactKey]*Changes)}
}

// Get returns the current merged value at addr if this Chronicle has a
// pending write covering its fact, resolving addr.Path against the
// merged root.
func (n *Novelty) Get(addr address.Address) (fact.JsonValue, bool, error) {
	changes, ok := n.entries[addr.Key()]
	if !ok {
		return nil, false, nil
	}
	value, err := address.Get(changes.Value, addr.Path)
	return value, true, err
}

// Write merges value into the novelty root for addr's fact. loadRoot is
// called only the first time this fact is written in the transaction, to
// seed the merged root from its current committed/nursery state.
func (n *Novelty) Write(addr address.Address, value fact.JsonValue, loadRoot func() (fact.JsonValue, error)) error {
	key := addr.Key()
	changes, ok := n.entries[key]
	if !ok {
		if len(addr.Path) > 0 {
			root, err := loadRoot()
			if err != nil {
				return err
			}
			if _, isObject := root.(map[string]any); !isObject {
				return &NotFoundError{Address: addr}
			}
			changes = &Changes{Root: addr.Root(), Value: root}
		} else {
			changes = &Changes{Root: addr.Root()}
		}
		n.entries[key] = changes
		n.order = append(n.order, key)
	}

	merged, err := address.Set(changes.Value, addr.Path, value)
	if err != nil {
		return err
	}
	changes.Value = merged
	changes.Writes = append(changes.Writes, pathWrite{Path: addr.Path.Clone(), Value: value})
	return nil
}

// Keys returns the distinct facts written, in first-write order.
func (n *Novelty) Keys() []address.FactKey {
	return append([]address.FactKey(nil), n.order...)
}

// Rebase replays this fact's tracked writes onto base (the fact's
// current value as loaded fresh at commit time) and returns the result,
// without mutating the transaction's own merged view.
func (n *Novelty) Rebase(key address.FactKey, base fact.JsonValue) (fact.JsonValue, error) {
	changes := n.entries[key]
	value := base
	for _, w := range changes.Writes {
		merged, err := address.Set(value, w.Path, w.Value)
		if err != nil {
			return nil, err
		}
		value = merged
	}
	return value, nil
}
