package replica

import (
	"context"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/metrics"
	"github.com/commontoolsinc/memory/pkg/notify"
	"github.com/commontoolsinc/memory/pkg/transport"
	"github.com/commontoolsinc/memory/pkg/wire"
)

// Pull resolves selector against the remote and merges the result into
// the heap. A schema-aware selector is additionally tracked for replay on
// reconnect, per spec.md §4.2 ("a schema-aware selector drives a
// server-side reactive subscription; a plain one is a cache-only
// lookup"). Concurrent calls carrying the same selector collapse onto one
// in-flight lookup: the first caller issues it, later callers just await
// its result.
func (r *Replica) Pull(ctx context.Context, sel wire.Selector) error {
	sel.Space = r.space
	hash := selectorHash(sel)

	future, owner := r.selectors.begin(hash)
	if !owner {
		return future.wait(ctx)
	}

	r.pending.Add(1)
	defer r.pending.Done()

	err := r.doPull(ctx, sel)
	r.selectors.finish(hash, err)
	return err
}

// Poll reads the space's commit-head fact once and merges it into the
// heap, per spec.md §4.2 ("poll() — reads the space's commit log as a
// stream; feeds each commit into integrate") and the reconnect sequence
// of §4.6 ("poll commit logs, then call replica.reset()"). This backend
// represents the commit log as a single monotonic version fact rather
// than a replayable stream of individual commits, so Poll reduces to one
// query against the commit-head selector; there is nothing selector-wide
// to deduplicate the way Pull deduplicates identical concurrent lookups,
// since reconnect is the only caller and it never runs concurrently with
// itself for the same replica.
func (r *Replica) Poll(ctx context.Context) error {
	return r.doPull(ctx, transport.CommitHeadSelector(r.space))
}

func (r *Replica) doPull(ctx context.Context, sel wire.Selector) error {
	timer := metrics.NewTimer()

	if sel.IsSchemaAware() {
		r.trackSchema(sel)
	}

	result, err := r.consumer.Query(ctx, wire.QueryRequest{Select: sel})
	if err != nil {
		metrics.PullTotal.WithLabelValues(string(r.space), "error").Inc()
		return reportErr("pull", r.space, err)
	}

	changes, touched := r.mergeFactSet(sel.The, result.Facts)
	if len(changes) > 0 {
		r.relay.Publish(notify.Notification{Kind: notify.KindPull, Space: r.space, Changes: changes})
	}
	r.persist(touched, "pull snapshot")

	timer.ObserveDurationVec(metrics.PullDuration, string(r.space))
	metrics.PullTotal.WithLabelValues(string(r.space), "ok").Inc()
	updateStoreGauges(r)
	return nil
}

// mergeFactSet folds a query/subscribe snapshot into the heap using the
// Put predicate (a fact the heap has not seen yet is adopted as is;
// otherwise the higher Since wins). It returns the
// notification changes for entries whose value actually moved, and the
// full set of merged revisions for the optional local cache.
func (r *Replica) mergeFactSet(kind fact.MediaType, facts wire.FactSet) ([]notify.Change, map[address.FactKey]fact.Revision) {
	var changes []notify.Change
	touched := make(map[address.FactKey]fact.Revision, len(facts))

	for entity, entry := range facts {
		key := address.FactKey{Entity: entity, Type: kind}
		before, _ := r.Get(key)

		var f fact.Fact
		switch {
		case entry.Value == nil && entry.Hash.IsZero():
			f = fact.Unclaimed(entity, kind)
		case entry.Value == nil:
			f = fact.Retract(entity, kind, entry.Cause)
		default:
			f = fact.Assert(entity, kind, entry.Value, entry.Cause)
		}
		incoming := fact.Revision{Fact: f, Since: entry.Version}

		merged, changed := r.heap.Merge(key, incoming)
		touched[key] = merged
		if !changed {
			continue
		}
		r.nursery.Evict(key, merged)

		changes = append(changes, notify.Change{
			Address: address.Address{Space: r.space, Entity: entity, Type: kind},
			Before:  valueOf(before.Fact),
			After:   valueOf(merged.Fact),
		})
	}
	return changes, touched
}
