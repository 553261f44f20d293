package replica

import (
	"context"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/chronicle"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/metrics"
	"github.com/commontoolsinc/memory/pkg/notify"
	"github.com/commontoolsinc/memory/pkg/wire"
)

// valueOf is the JSON value a fact presents, or nil for a retraction or
// an unclaimed fact.
func valueOf(f fact.Fact) fact.JsonValue {
	if f.HasValue() {
		return f.Value
	}
	return nil
}

// Push submits edit (the settled operations of one Chronicle) to the
// remote. It mirrors the writes into the nursery as an optimistic shadow
// before the remote round trip, emits a commit notification immediately
// so local subscribers observe the optimistic state, and either promotes
// the nursery into the heap on acknowledgment or rolls it back and emits
// a revert notification on rejection. source identifies the originating
// transaction for the notification's Source field.
func (r *Replica) Push(ctx context.Context, edit chronicle.Edit, source string) (*fact.Commit, error) {
	if len(edit.Operations) == 0 {
		return nil, nil
	}

	timer := metrics.NewTimer()

	var ops []wire.Operation
	var tracked []address.FactKey
	var changes []notify.Change

	for _, op := range edit.Operations {
		key := address.FactKey{Entity: op.Fact.Entity, Type: op.Fact.Type}
		ops = append(ops, op)
		if op.Claim {
			continue
		}

		before, _ := r.Get(key)
		shadow := fact.Revision{Fact: op.Fact, Since: fact.UnknownSince}
		r.nursery.Put(key, shadow)
		r.nursery.TrackCause(key, op.Fact.Cause)
		tracked = append(tracked, key)

		changes = append(changes, notify.Change{
			Address: address.Address{Space: r.space, Entity: key.Entity, Type: key.Type},
			Before:  valueOf(before.Fact),
			After:   valueOf(op.Fact),
		})
	}

	if len(changes) > 0 {
		r.relay.Publish(notify.Notification{Kind: notify.KindCommit, Space: r.space, Changes: changes, Source: source})
		metrics.CommitsTotal.WithLabelValues(string(r.space), "local").Inc()
	}

	result, err := r.consumer.Transact(ctx, wire.TransactRequest{Operations: ops})
	if err != nil {
		r.rollback(tracked, changes, source, err, nil)
		metrics.PushTotal.WithLabelValues(string(r.space), "error").Inc()
		return nil, reportErr("push", r.space, err)
	}

	outcome := <-result.Confirmed
	if outcome.Err != nil {
		var conflict *wire.ConflictError
		if ce, ok := outcome.Err.(*wire.ConflictError); ok {
			conflict = ce
		}
		r.rollback(tracked, changes, source, outcome.Err, conflict)
		metrics.PushTotal.WithLabelValues(string(r.space), "conflict").Inc()
		return nil, outcome.Err
	}

	promoted := make(map[address.FactKey]fact.Revision, len(tracked))
	for _, key := range tracked {
		shadow, ok := r.nursery.Get(key)
		if !ok {
			continue
		}
		shadow.Since = outcome.Commit.Version
		r.heap.Promote(key, shadow)
		r.nursery.UntrackCause(key, shadow.Fact.Cause)
		r.nursery.Evict(key, shadow)
		promoted[key] = shadow
	}
	r.persist(promoted, "committed writes")

	timer.ObserveDurationVec(metrics.CommitDuration, string(r.space))
	metrics.PushTotal.WithLabelValues(string(r.space), "committed").Inc()
	updateStoreGauges(r)
	return outcome.Commit, nil
}

// rollback undoes the optimistic nursery shadow for a rejected push,
// merges the server's reported actual state (if any) into the heap, and
// emits a single revert notification per spec.md §9's open-question
// resolution: one entry per changed address, Before/After taken from the
// pre-push checkout and the server's actual, respectively.
func (r *Replica) rollback(tracked []address.FactKey, changes []notify.Change, source string, cause error, conflict *wire.ConflictError) {
	actuals := make(map[address.FactKey]wire.ActualFact)
	if conflict != nil {
		for _, a := range conflict.Actuals {
			actuals[address.FactKey{Entity: a.Entity, Type: a.Type}] = a
		}
	}

	revertChanges := make([]notify.Change, 0, len(changes))
	corrected := make(map[address.FactKey]fact.Revision, len(actuals))
	for i, key := range tracked {
		r.nursery.Drop(key)

		after := changes[i].Before
		if actual, ok := actuals[key]; ok {
			rev := fact.Revision{Fact: factFromActual(actual), Since: actual.Version}
			r.heap.Merge(key, rev)
			corrected[key] = rev
			after = actual.Value
		}
		revertChanges = append(revertChanges, notify.Change{
			Address: changes[i].Address,
			Before:  changes[i].Before,
			After:   after,
		})
	}
	r.persist(corrected, "conflicting actuals")

	reason := "push rejected"
	if cause != nil {
		reason = cause.Error()
	}
	if len(revertChanges) > 0 {
		r.relay.Publish(notify.Notification{Kind: notify.KindRevert, Space: r.space, Changes: revertChanges, Source: source, Reason: reason})
		metrics.RevertsTotal.WithLabelValues(string(r.space), "conflict").Inc()
	}
	updateStoreGauges(r)
}

// factFromActual reconstructs the fact a conflict's actual entry
// describes, so it can be merged into the heap like any other
// server-reported revision.
func factFromActual(a wire.ActualFact) fact.Fact {
	switch {
	case a.Value == nil && a.Hash.IsZero():
		return fact.Unclaimed(a.Entity, a.Type)
	case a.Value == nil:
		return fact.Retract(a.Entity, a.Type, a.Cause)
	default:
		return fact.Assert(a.Entity, a.Type, a.Value, a.Cause)
	}
}

func updateStoreGauges(r *Replica) {
	metrics.HeapSize.WithLabelValues(string(r.space)).Set(float64(r.heap.Len()))
	metrics.NurserySize.WithLabelValues(string(r.space)).Set(float64(r.nursery.Len()))
	metrics.SelectorCacheSize.WithLabelValues(string(r.space)).Set(float64(r.selectors.len()))
}
