package txn

import (
	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// TransactionReader is the memoized per-space read handle spec.md §4.4
// calls reader(space). Reads are satisfied from this transaction's own
// prior writes and claimed reads before falling back to the space's
// Replica, per pkg/chronicle's read algorithm.
type TransactionReader struct {
	txn   *Transaction
	space fact.Space
}

// Space reports which space this reader is scoped to.
func (r *TransactionReader) Space() fact.Space { return r.space }

// Read resolves addr, which must name this reader's space.
func (r *TransactionReader) Read(addr address.Address) (fact.JsonValue, error) {
	return r.txn.readIn(r.space, addr)
}
