package chronicle

import (
	"reflect"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// historyEntry records one claimed read: "at this path we observed this
// value". Value is the full subtree rooted at Address, already resolved.
type historyEntry struct {
	Address address.Address
	Value   fact.JsonValue
}

// History is the ordered read log of one Chronicle. Entries are kept in
// claim order so commit builds claims deterministically.
type History struct {
	order   []address.FactKey
	byKey   map[address.FactKey][]*historyEntry
}

func newHistory() *History {
	return &History{byKey: make(map[address.FactKey][]*historyEntry)}
}

// Claim records that addr resolved to value, checking it against any
// existing entry for the same fact whose path includes or is included by
// addr.Path. A mismatch at the deeper of the two paths is an
// inconsistency: the transaction has observed two different values for
// what must be the same underlying data.
func (h *History) Claim(addr address.Address, value fact.JsonValue) error {
	key := addr.Key()
	for _, entry := range h.byKey[key] {
		switch {
		case address.Includes(entry.Address, addr):
			rel := address.Relative(entry.Address, addr)
			got, err := address.Get(entry.Value, rel)
			if err != nil || !jsonEqual(got, value) {
				return &InconsistencyError{Address: addr, Reason: "conflicts with a shorter prior read of the same fact"}
			}
			return nil
		case address.Includes(addr, entry.Address):
			rel := address.Relative(addr, entry.Address)
			got, err := address.Get(value, rel)
			if err != nil || !jsonEqual(got, entry.Value) {
				return &InconsistencyError{Address: addr, Reason: "conflicts with a deeper prior read of the same fact"}
			}
		}
	}
	if _, ok := h.byKey[key]; !ok {
		h.order = append(h.order, key)
	}
	h.byKey[key] = append(h.byKey[key], &historyEntry{Address: addr, Value: value})
	return nil
}

// Resolve looks for a prior claim whose address subsumes addr and, if
// found, returns the corresponding sub-value without touching the
// replica. This is the read-your-own-reads fast path: a transaction that
// already read a parent path never issues a second replica read for a
// descendant of it.
func (h *History) Resolve(addr address.Address) (fact.JsonValue, bool, error) {
	for _, entry := range h.byKey[addr.Key()] {
		if address.Includes(entry.Address, addr) {
			rel := address.Relative(entry.Address, addr)
			value, err := address.Get(entry.Value, rel)
			return value, true, err
		}
	}
	return nil, false, nil
}

// Keys returns the distinct facts read, in first-claim order.
func (h *History) Keys() []address.FactKey {
	return append([]address.FactKey(nil), h.order...)
}

// RootValue returns the value claimed at the given fact's shallowest
// recorded address, used by commit to rebuild a read claim.
func (h *History) RootValue(key address.FactKey) (address.Address, fact.JsonValue, bool) {
	entries := h.byKey[key]
	if len(entries) == 0 {
		return address.Address{}, nil, false
	}
	shallowest := entries[0]
	for _, e := range entries[1:] {
		if len(e.Address.Path) < len(shallowest.Address.Path) {
			shallowest = e
		}
	}
	return shallowest.Address, shallowest.Value, true
}

func jsonEqual(a, b fact.JsonValue) bool {
	return reflect.DeepEqual(fact.Canonicalize(a), fact.Canonicalize(b))
}
