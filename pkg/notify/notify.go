package notify

import (
	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
)

// Kind names one of the closed set of notification shapes a Relay
// delivers.
type Kind string

const (
	KindPull      Kind = "pull"
	KindLoad      Kind = "load"
	KindIntegrate Kind = "integrate"
	KindCommit    Kind = "commit"
	KindRevert    Kind = "revert"
	KindReset     Kind = "reset"
)

// Change is one fact's before/after state as carried by a notification.
type Change struct {
	Address address.Address
	Before  fact.JsonValue
	After   fact.JsonValue
}

// Notification is one event delivered to every subscribed Sink. Source
// is set for commit/revert, naming the transaction that produced it;
// Reason is set for revert, explaining why it was rolled back.
type Notification struct {
	Kind    Kind
	Space   fact.Space
	Changes []Change
	Source  string
	Reason  string
}

// Result is what a Sink returns after handling a Notification. Done
// marks the sink for removal — the relay will not invoke it again.
type Result struct {
	Done bool
}

// Sink receives notifications in dispatch order.
type Sink func(Notification) Result
