package wire

import (
	"encoding/json"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// Ability names one of the four abilities a signed command may invoke.
type Ability string

const (
	AbilityTransact         Ability = "/memory/transact"
	AbilityQuery            Ability = "/memory/query"
	AbilityQuerySubscribe   Ability = "/memory/query/subscribe"
	AbilityQueryUnsubscribe Ability = "/memory/query/unsubscribe"
)

// Selector describes which facts a query or subscription targets.
// Schema is opaque to the transport and store — it belongs to the
// recipe compiler's type system — but its presence distinguishes a
// schema-aware selector (drives a server-side reactive subscription)
// from a plain one (cached-only), per spec.md §4.2.
type Selector struct {
	Space    fact.Space      `json:"space"`
	Of       []fact.Entity   `json:"of,omitempty"`
	The      fact.MediaType  `json:"the,omitempty"`
	Schema   json.RawMessage `json:"schema,omitempty"`
	Nonce    string          `json:"nonce,omitempty"`
	Since    *fact.Version   `json:"since,omitempty"`
	Branch   string          `json:"branch,omitempty"`
}

// IsSchemaAware reports whether this selector carries a schema and
// therefore drives a server-side reactive subscription rather than a
// cache-only lookup.
func (s Selector) IsSchemaAware() bool {
	return len(s.Schema) > 0
}

// ReadSet names the addresses a transact request's author claims to have
// read: Confirmed addresses were read from the heap (server-acknowledged
// state), Pending addresses were read from the nursery (still awaiting
// acknowledgment themselves).
type ReadSet struct {
	Confirmed []address.Address `json:"confirmed,omitempty"`
	Pending   []address.Address `json:"pending,omitempty"`
}

// Operation is one fact change submitted with a transact request: either
// an assert/retract (a write) or a claim (a read invariant, carrying no
// new value but pinning the hash the transaction observed).
type Operation struct {
	Fact  fact.Fact    `json:"fact"`
	Claim bool         `json:"claim,omitempty"`
	Hash  fact.Reference `json:"hash,omitempty"`
}

// TransactRequest is the body of a /memory/transact command.
type TransactRequest struct {
	Reads      ReadSet     `json:"reads"`
	Operations []Operation `json:"operations"`
	Branch     string      `json:"branch,omitempty"`
	CodeCID    string      `json:"codeCID,omitempty"`
}

// ActualFact is the server's report of the true state of one entity that
// caused a transact request to conflict. Cause is the actual fact's own
// causal parent, carried for the same reason FactEntry carries one: so
// the replica can merge it into the heap as a fact a subsequent local
// write can correctly chain a cause hash from, not just a value to
// display.
type ActualFact struct {
	Entity  fact.Entity    `json:"entity"`
	Type    fact.MediaType `json:"the"`
	Value   fact.JsonValue `json:"value,omitempty"`
	Version fact.Version   `json:"version"`
	Hash    fact.Reference `json:"hash"`
	Cause   fact.Reference `json:"cause,omitempty"`
}

// ConflictError is returned in place of a commit when a transact request
// conflicts with state the server has since advanced past.
type ConflictError struct {
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Conflicts []address.Address `json:"conflicts"`
	Actuals   []ActualFact      `json:"actuals"`
}

func (e *ConflictError) Error() string {
	if e == nil {
		return "conflict"
	}
	return e.Message
}

// TransactResponse is the body returned for a /memory/transact command:
// exactly one of Commit or Error is set.
type TransactResponse struct {
	Commit *fact.Commit   `json:"commit,omitempty"`
	Error  *ConflictError `json:"error,omitempty"`
}

// QueryRequest is the body of a /memory/query command.
type QueryRequest struct {
	Select Selector     `json:"select"`
	Since  *fact.Version `json:"since,omitempty"`
	Branch string       `json:"branch,omitempty"`
}

// FactEntry is one entity's state as reported by a query or subscription
// snapshot. Cause is the entry's own causal parent (the hash of the fact
// it was asserted or retracted over), carried so a replica that later
// writes over a pulled fact can compute a cause hash the server
// recognizes, rather than only ever observing the entry's own hash.
type FactEntry struct {
	Value   fact.JsonValue `json:"value,omitempty"`
	Hash    fact.Reference `json:"hash"`
	Cause   fact.Reference `json:"cause,omitempty"`
	Version fact.Version   `json:"version"`
}

// FactSet maps entity IDs to their reported state, the body of a
// successful query or the initial snapshot of a subscription.
type FactSet map[fact.Entity]FactEntry

// QueryResponse is the body returned for a /memory/query command.
type QueryResponse struct {
	Ok FactSet `json:"ok"`
}

// SubscribeRequest is the body of a /memory/query/subscribe command.
type SubscribeRequest struct {
	Select Selector `json:"select"`
}

// SubscribeAck is the server's immediate reply to a subscribe command:
// the assigned subscription ID plus an initial snapshot.
type SubscribeAck struct {
	SubscriptionID string  `json:"subscriptionId"`
	Ok             FactSet `json:"ok"`
}

// Effect is one task/effect frame pushed for a live subscription: a new
// commit plus the revisions within it that matched the subscription's
// selector.
type Effect struct {
	Commit    fact.Commit     `json:"commit"`
	Revisions []fact.Revision `json:"revisions"`
}

// UnsubscribeRequest is the body of a /memory/query/unsubscribe command.
type UnsubscribeRequest struct {
	Source string `json:"source"`
}
