/*
Package metrics exposes Prometheus instrumentation for the storage engine:
gauges for heap/nursery/selector-cache size, counters for push/pull/commit/
revert outcomes and transport reconnects, and histograms for commit and
pull latency. All metrics are labeled by space so a process replicating
several spaces reports them separately. ReconnectsTotal and ReplicaLag are
registered, but nothing in this module updates them.

Metrics are registered at package init and served by Handler(), mirroring
the teacher's promhttp.Handler() wiring; callers mount it under /metrics.

The Timer helper times an operation and observes the elapsed duration
into a histogram (or histogram vec) in one call:

	timer := metrics.NewTimer()
	_, err := replica.Push(ctx, edit, source)
	timer.ObserveDurationVec(metrics.CommitDuration, string(space))
*/
package metrics
