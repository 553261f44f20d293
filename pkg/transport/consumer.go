package transport

import (
	"context"

	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/wire"
)

// TransactResult is returned by Consumer.Transact: Confirmed resolves to
// a TransactOutcome once the server has acknowledged or rejected the
// batch.
type TransactResult struct {
	Confirmed <-chan TransactOutcome
}

// TransactOutcome is what a transact batch eventually resolves to.
type TransactOutcome struct {
	Commit *fact.Commit
	Err    error
}

// QueryResult is one resolved selector lookup.
type QueryResult struct {
	Facts wire.FactSet
}

// Push is delivered to a SubscribeResult's Effects channel whenever the
// server reports a new commit matching the subscription's selector.
type Push struct {
	Effect wire.Effect
}

// SubscribeResult is returned by Consumer.Subscribe.
type SubscribeResult struct {
	SubscriptionID string
	Facts          wire.FactSet
	Effects        <-chan Push
	// Ready resolves when the server has replied with the initial
	// snapshot. The local backend resolves it immediately; the remote
	// backend resolves it once the subscribe ack frame arrives.
	Ready <-chan error
}

// Consumer is the single interface both the remote (framed websocket)
// and local (synchronous in-process) transports implement.
type Consumer interface {
	Transact(ctx context.Context, req wire.TransactRequest) (TransactResult, error)
	Query(ctx context.Context, req wire.QueryRequest) (QueryResult, error)
	Subscribe(ctx context.Context, req wire.SubscribeRequest) (SubscribeResult, error)
	Unsubscribe(ctx context.Context, subscriptionID string) error
	Close() error
}

// ReconnectNotifier is implemented by Consumers that can reconnect out
// from under the caller (the remote backend; the local backend has no
// connection to lose). A Replica's owning engine uses it to run the
// reconnect sequence of spec.md §4.6 — poll the commit log, reset the
// replica, then let the transport replay its tracked subscriptions.
type ReconnectNotifier interface {
	SetReconnectHandler(fn func(count int))
}
