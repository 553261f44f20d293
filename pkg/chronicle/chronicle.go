package chronicle

import (
	"errors"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/wire"
)

// Loader is the read-only view of a replica a Chronicle borrows. It is a
// narrow interface (rather than importing pkg/replica directly) so that
// package does not have to depend back on this one.
type Loader interface {
	Load(key address.FactKey) (fact.Revision, bool)
}

// Chronicle is the read/write journal of one transaction against one
// space: a History of claimed reads and a Novelty of pending writes.
type Chronicle struct {
	History *History
	Novelty *Novelty
}

// New creates an empty Chronicle.
func New() *Chronicle {
	return &Chronicle{History: newHistory(), Novelty: newNovelty()}
}

// Read resolves addr following the precedence: inline URI, then this
// transaction's own pending write, then a prior claim covering addr,
// then the replica (claiming the result in History).
func (c *Chronicle) Read(loader Loader, addr address.Address) (fact.JsonValue, error) {
	if isInline(addr) {
		return decodeInline(addr)
	}

	if value, ok, err := c.Novelty.Get(addr); ok {
		if err != nil {
			return nil, wrapResolveError(addr, err)
		}
		return value, nil
	}

	if value, ok, err := c.History.Resolve(addr); ok {
		if err != nil {
			return nil, wrapResolveError(addr, err)
		}
		return value, nil
	}

	rev, _ := loader.Load(addr.Key())
	if !rev.Fact.HasValue() {
		if len(addr.Path) > 0 {
			return nil, &NotFoundError{Address: addr}
		}
		if err := c.History.Claim(addr.Root(), nil); err != nil {
			return nil, err
		}
		return nil, nil
	}

	value, err := address.Get(rev.Fact.Value, addr.Path)
	if err != nil {
		// Register the whole fact as read so a concurrent write that adds
		// the missing key/index is still caught at commit time.
		_ = c.History.Claim(addr.Root(), rev.Fact.Value)
		return nil, wrapResolveError(addr, err)
	}

	if err := c.History.Claim(addr, value); err != nil {
		return nil, err
	}
	return value, nil
}

// Write merges value into the pending write for addr's fact.
func (c *Chronicle) Write(loader Loader, addr address.Address, value fact.JsonValue) error {
	if isInline(addr) {
		return ErrReadOnlyAddress
	}
	return c.Novelty.Write(addr, value, func() (fact.JsonValue, error) {
		rev, _ := loader.Load(addr.Key())
		if !rev.Fact.HasValue() {
			return nil, nil
		}
		return rev.Fact.Value, nil
	})
}

// Edit is the settled output of a Chronicle: the operations a push
// should submit to the replica/remote.
type Edit struct {
	Operations []wire.Operation
}

// Settle rebases every pending write onto the fact's current state (as
// reported fresh by loader) and verifies every claimed read still holds,
// producing the operation list a commit submits. It does not mutate the
// Chronicle, so a failed Settle leaves the transaction retryable by the
// caller... except policy here is that a failed commit poisons the
// transaction; callers should not call Settle twice.
func (c *Chronicle) Settle(loader Loader) (Edit, error) {
	written := make(map[address.FactKey]bool, len(c.Novelty.order))
	for _, key := range c.Novelty.Keys() {
		written[key] = true
	}

	var ops []wire.Operation

	for _, key := range c.History.Keys() {
		rootAddr, claimedValue, ok := c.History.RootValue(key)
		if !ok {
			continue
		}
		rev, _ := loader.Load(key)
		current := currentValue(rev)
		got, err := address.Get(current, rootAddr.Path)
		if err != nil || !jsonEqual(got, claimedValue) {
			return Edit{}, &InconsistencyError{Address: rootAddr, Reason: "value changed since it was read"}
		}
		if !written[key] {
			ops = append(ops, wire.Operation{
				Claim: true,
				Fact:  fact.Unclaimed(key.Entity, key.Type),
				Hash:  causeHash(rev),
			})
		}
	}

	for _, key := range c.Novelty.Keys() {
		rev, _ := loader.Load(key)
		base := currentValue(rev)

		rebased, err := c.Novelty.Rebase(key, base)
		if err != nil {
			return Edit{}, &InconsistencyError{Address: address.Address{Entity: key.Entity, Type: key.Type}, Reason: err.Error()}
		}

		cause := causeHash(rev)

		switch {
		case address.IsUndefined(rebased):
			if !rev.Fact.HasValue() {
				ops = append(ops, wire.Operation{Claim: true, Fact: fact.Unclaimed(key.Entity, key.Type), Hash: cause})
				continue
			}
			ops = append(ops, wire.Operation{Fact: fact.Retract(key.Entity, key.Type, cause)})
		default:
			normalized := fact.Canonicalize(rebased)
			if rev.Fact.HasValue() && jsonEqual(normalized, rev.Fact.Value) {
				ops = append(ops, wire.Operation{Claim: true, Fact: fact.Unclaimed(key.Entity, key.Type), Hash: cause})
				continue
			}
			ops = append(ops, wire.Operation{Fact: fact.Assert(key.Entity, key.Type, normalized, cause)})
		}
	}

	return Edit{Operations: ops}, nil
}

func currentValue(rev fact.Revision) fact.JsonValue {
	if !rev.Fact.HasValue() {
		return nil
	}
	return rev.Fact.Value
}

// causeHash is the cause/claim hash a loaded revision presents. A
// revision the loader has never observed (Kind == "", or the unclaimed
// placeholder a Loader synthesizes for a miss) presents the zero
// Reference, matching the convention that the first assertion's cause is
// empty.
func causeHash(rev fact.Revision) fact.Reference {
	if rev.Fact.Kind == "" || rev.Fact.IsUnclaimed() {
		return fact.Reference{}
	}
	return fact.HashFact(rev.Fact)
}

func wrapResolveError(addr address.Address, err error) error {
	switch {
	case errors.Is(err, address.ErrNotFound):
		return &NotFoundError{Address: addr}
	default:
		return &TypeMismatchError{Address: addr, Reason: err.Error()}
	}
}
