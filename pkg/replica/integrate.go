package replica

import (
	"context"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/log"
	"github.com/commontoolsinc/memory/pkg/metrics"
	"github.com/commontoolsinc/memory/pkg/notify"
	"github.com/commontoolsinc/memory/pkg/transport"
	"github.com/commontoolsinc/memory/pkg/wire"
)

// Watch opens a subscription for selector and merges every subsequent
// push into the heap until ctx is cancelled or the consumer closes the
// subscription's effect channel. The initial snapshot is merged
// synchronously before Watch returns, so a caller can rely on the heap
// already reflecting the subscription's state once Watch returns, the
// same guarantee Pull gives for a one-shot lookup.
func (r *Replica) Watch(ctx context.Context, sel wire.Selector) error {
	sel.Space = r.space
	if sel.IsSchemaAware() {
		r.trackSchema(sel)
	}

	r.pending.Add(1)
	defer r.pending.Done()

	result, err := r.consumer.Subscribe(ctx, wire.SubscribeRequest{Select: sel})
	if err != nil {
		return reportErr("watch", r.space, err)
	}
	if err := <-result.Ready; err != nil {
		return reportErr("watch", r.space, err)
	}

	changes, touched := r.mergeFactSet(sel.The, result.Facts)
	if len(changes) > 0 {
		r.relay.Publish(notify.Notification{Kind: notify.KindLoad, Space: r.space, Changes: changes})
	}
	r.persist(touched, "subscription snapshot")
	updateStoreGauges(r)

	go r.drain(ctx, result.Effects)
	return nil
}

func (r *Replica) drain(ctx context.Context, effects <-chan transport.Push) {
	for {
		select {
		case <-ctx.Done():
			return
		case push, ok := <-effects:
			if !ok {
				return
			}
			r.integrate(ctx, push.Effect)
		}
	}
}

// integrate folds one pushed commit's revisions into the heap. A
// revision whose cause matches an outstanding nursery write is this
// replica's own push echoed back by the server: the commit notification
// already fired optimistically, so it is promoted silently rather than
// raised again as an integrate notification, per the pending-cause
// tracker design of spec.md §4.2/§9.
func (r *Replica) integrate(ctx context.Context, effect wire.Effect) {
	var changes []notify.Change
	touched := make(map[address.FactKey]fact.Revision, len(effect.Revisions))

	for _, rev := range effect.Revisions {
		key := address.FactKey{Entity: rev.Fact.Entity, Type: rev.Fact.Type}

		if r.nursery.UntrackCause(key, rev.Fact.Cause) {
			r.heap.Promote(key, rev)
			r.nursery.Evict(key, rev)
			touched[key] = rev
			continue
		}

		before, _ := r.Get(key)
		merged, changed := r.heap.Merge(key, rev)
		touched[key] = merged
		if !changed {
			continue
		}
		r.nursery.Evict(key, merged)
		changes = append(changes, notify.Change{
			Address: address.Address{Space: r.space, Entity: key.Entity, Type: key.Type},
			Before:  valueOf(before.Fact),
			After:   valueOf(merged.Fact),
		})
	}

	if len(changes) > 0 {
		r.relay.Publish(notify.Notification{Kind: notify.KindIntegrate, Space: r.space, Changes: changes})
		metrics.CommitsTotal.WithLabelValues(string(r.space), "remote").Inc()
	}
	r.persist(touched, "integrated revisions")
	updateStoreGauges(r)

	r.expandAndGrow(ctx, touched)
}

// expandAndGrow looks for {"/": id} cross-references in the values just
// integrated and, for every schema-aware subscription whose known set
// grows as a result, opens an additional, narrowly-scoped subscription
// covering just the newly discovered entities so the replica keeps
// receiving their updates too.
func (r *Replica) expandAndGrow(ctx context.Context, touched map[address.FactKey]fact.Revision) {
	values := make([]fact.JsonValue, 0, len(touched))
	for _, rev := range touched {
		if rev.Fact.HasValue() {
			values = append(values, rev.Fact.Value)
		}
	}

	for _, delta := range r.growSubscriptions(values) {
		go r.watchDelta(ctx, delta)
	}
}

// watchDelta subscribes to an incremental selector discovered by
// expandAndGrow, without re-tracking it as its own schema subscription
// (its Of set is a fragment, not the subscription's full identity).
func (r *Replica) watchDelta(ctx context.Context, sel wire.Selector) {
	r.pending.Add(1)
	defer r.pending.Done()

	result, err := r.consumer.Subscribe(ctx, wire.SubscribeRequest{Select: sel})
	if err != nil {
		log.WithSpace(string(r.space)).Warn().Err(err).Msg("failed to subscribe to discovered cross-references")
		return
	}
	if err := <-result.Ready; err != nil {
		log.WithSpace(string(r.space)).Warn().Err(err).Msg("failed to subscribe to discovered cross-references")
		return
	}

	changes, touched := r.mergeFactSet(sel.The, result.Facts)
	if len(changes) > 0 {
		r.relay.Publish(notify.Notification{Kind: notify.KindLoad, Space: r.space, Changes: changes})
	}
	r.persist(touched, "expanded subscription snapshot")
	updateStoreGauges(r)

	go r.drain(ctx, result.Effects)
}

func (r *Replica) persist(touched map[address.FactKey]fact.Revision, what string) {
	if r.cache == nil || len(touched) == 0 {
		return
	}
	if err := r.cache.PutAll(r.space, touched); err != nil {
		log.WithSpace(string(r.space)).Warn().Err(err).Msgf("failed to persist %s to local cache", what)
	}
}
