package txn

import (
	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// TransactionWriter is the memoized, write-isolation-bound write handle
// spec.md §4.4 calls writer(space). A Transaction binds at most one
// writer for its whole lifetime.
type TransactionWriter struct {
	txn   *Transaction
	space fact.Space
}

// Space reports which space this writer is bound to.
func (w *TransactionWriter) Space() fact.Space { return w.space }

// Write merges value into the pending write for addr, which must name
// this writer's space.
func (w *TransactionWriter) Write(addr address.Address, value fact.JsonValue) error {
	return w.txn.writeIn(w.space, addr, value)
}
