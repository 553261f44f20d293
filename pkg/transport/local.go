package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/wire"
)

// ErrUnsubscribed is returned by Unsubscribe for an ID the local
// transport has no record of.
var ErrUnsubscribed = errors.New("transport: no such subscription")

type localSubscription struct {
	selector wire.Selector
	ch       chan Push
}

// local synchronously executes commands against an in-memory store that
// mirrors the server's causal-chain and conflict rules, so a recipe
// author can develop against the same transaction semantics without a
// network round trip.
type local struct {
	mu        sync.Mutex
	space     fact.Space
	facts     map[address.FactKey]fact.Revision
	version   fact.Version
	subs      map[string]*localSubscription
	nextSubID uint64
}

// NewLocal creates an in-process Consumer for space, with an empty
// initial fact set.
func NewLocal(space fact.Space) Consumer {
	return &local{
		space: space,
		facts: make(map[address.FactKey]fact.Revision),
		subs:  make(map[string]*localSubscription),
	}
}

func (l *local) Transact(_ context.Context, req wire.TransactRequest) (TransactResult, error) {
	l.mu.Lock()

	touched := make(map[address.FactKey]fact.Revision)
	for _, op := range req.Operations {
		key := address.FactKey{Entity: op.Fact.Entity, Type: op.Fact.Type}
		current := l.facts[key]

		if op.Claim {
			if !currentHash(current).Equal(op.Hash) {
				l.mu.Unlock()
				return rejected(l.conflict(key, current))
			}
			continue
		}

		if !op.Fact.Cause.Equal(currentHash(current)) {
			l.mu.Unlock()
			return rejected(l.conflict(key, current))
		}
		touched[key] = fact.Revision{Fact: op.Fact}
	}

	if len(touched) == 0 {
		commit := l.headCommit()
		l.mu.Unlock()
		return resolved(&commit, nil), nil
	}

	l.version++
	version := l.version
	var stored []fact.StoredFact
	for key, rev := range touched {
		rev.Since = version
		l.facts[key] = rev
		touched[key] = rev
		stored = append(stored, fact.StoredFact{Fact: rev.Fact, Hash: fact.HashFact(rev.Fact)})
	}
	commit := fact.Commit{Version: version, Facts: stored}
	l.commitFact(commit)

	l.broadcast(commit, touched)
	l.mu.Unlock()

	return resolved(&commit, nil), nil
}

func (l *local) conflict(key address.FactKey, current fact.Revision) *wire.ConflictError {
	return &wire.ConflictError{
		Kind:    "conflict",
		Message: fmt.Sprintf("stale read for %s", key.Entity),
		Conflicts: []address.Address{{
			Space: l.space, Entity: key.Entity, Type: key.Type,
		}},
		Actuals: []wire.ActualFact{{
			Entity:  key.Entity,
			Type:    key.Type,
			Value:   valueOf(current.Fact),
			Version: current.Since,
			Hash:    currentHash(current),
			Cause:   current.Fact.Cause,
		}},
	}
}

func resolved(commit *fact.Commit, err error) TransactResult {
	ch := make(chan TransactOutcome, 1)
	ch <- TransactOutcome{Commit: commit, Err: err}
	return TransactResult{Confirmed: ch}
}

func rejected(ce *wire.ConflictError) (TransactResult, error) {
	return resolved(nil, ce), nil
}

// currentHash is the cause/claim hash a fact's current state presents.
// Never-asserted facts present the zero Reference, matching the
// convention that the first assertion's cause is empty.
func currentHash(rev fact.Revision) fact.Reference {
	if rev.Fact.Kind == "" {
		return fact.Reference{}
	}
	return fact.HashFact(rev.Fact)
}

func valueOf(f fact.Fact) fact.JsonValue {
	if f.HasValue() {
		return f.Value
	}
	return nil
}

// commitFact stores the commit itself as a fact of type
// application/commit+json entitied by the space, so it can be read and
// subscribed to like any other fact.
func (l *local) commitFact(commit fact.Commit) {
	key := address.FactKey{Entity: fact.Entity(l.space), Type: fact.CommitMediaType}
	commitValue := map[string]any{"version": int64(commit.Version)}
	headFact := fact.Assert(fact.Entity(l.space), fact.CommitMediaType, commitValue, fact.Reference{})
	l.facts[key] = fact.Revision{Fact: headFact, Since: commit.Version}
}

func (l *local) headCommit() fact.Commit {
	return fact.Commit{Version: l.version}
}

func (l *local) broadcast(commit fact.Commit, touched map[address.FactKey]fact.Revision) {
	for _, sub := range l.subs {
		var revisions []fact.Revision
		for key, rev := range touched {
			if selectorMatches(sub.selector, key) {
				revisions = append(revisions, rev)
			}
		}
		if len(revisions) == 0 {
			continue
		}
		select {
		case sub.ch <- Push{Effect: wire.Effect{Commit: commit, Revisions: revisions}}:
		default:
		}
	}
}

func (l *local) Query(_ context.Context, req wire.QueryRequest) (QueryResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(wire.FactSet)
	for key, rev := range l.facts {
		if !selectorMatches(req.Select, key) {
			continue
		}
		out[key.Entity] = wire.FactEntry{
			Value:   valueOf(rev.Fact),
			Hash:    fact.HashFact(rev.Fact),
			Cause:   rev.Fact.Cause,
			Version: rev.Since,
		}
	}
	return QueryResult{Facts: out}, nil
}

func (l *local) Subscribe(_ context.Context, req wire.SubscribeRequest) (SubscribeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSubID++
	id := fmt.Sprintf("local-%d", l.nextSubID)
	sub := &localSubscription{selector: req.Select, ch: make(chan Push, 64)}
	l.subs[id] = sub

	snapshot := make(wire.FactSet)
	for key, rev := range l.facts {
		if !selectorMatches(req.Select, key) {
			continue
		}
		snapshot[key.Entity] = wire.FactEntry{Value: valueOf(rev.Fact), Hash: fact.HashFact(rev.Fact), Cause: rev.Fact.Cause, Version: rev.Since}
	}

	ready := make(chan error, 1)
	ready <- nil
	return SubscribeResult{SubscriptionID: id, Facts: snapshot, Effects: sub.ch, Ready: ready}, nil
}

func (l *local) Unsubscribe(_ context.Context, subscriptionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sub, ok := l.subs[subscriptionID]
	if !ok {
		return ErrUnsubscribed
	}
	close(sub.ch)
	delete(l.subs, subscriptionID)
	return nil
}

func (l *local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, sub := range l.subs {
		close(sub.ch)
		delete(l.subs, id)
	}
	return nil
}

func selectorMatches(sel wire.Selector, key address.FactKey) bool {
	if sel.The != "" && sel.The != key.Type {
		return false
	}
	if len(sel.Of) == 0 {
		return true
	}
	for _, e := range sel.Of {
		if e == key.Entity {
			return true
		}
	}
	return false
}
