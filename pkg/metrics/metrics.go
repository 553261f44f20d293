package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Replica state gauges.
	HeapSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memory_heap_facts_total",
			Help: "Number of distinct (entity, type) facts currently cached in a replica's heap",
		},
		[]string{"space"},
	)

	NurserySize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memory_nursery_facts_total",
			Help: "Number of facts currently shadowed in a replica's nursery, awaiting server acknowledgment",
		},
		[]string{"space"},
	)

	SelectorCacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memory_selector_cache_total",
			Help: "Number of distinct selector hashes currently tracked by a replica's selector tracker",
		},
		[]string{"space"},
	)

	// Push/pull/commit counters.
	PushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_push_total",
			Help: "Total number of push (commit) attempts by outcome",
		},
		[]string{"space", "outcome"}, // outcome: committed, conflict, error
	)

	PullTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_pull_total",
			Help: "Total number of pull (load) round trips by outcome",
		},
		[]string{"space", "outcome"},
	)

	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_commits_total",
			Help: "Total number of commit notifications emitted, by source",
		},
		[]string{"space", "source"}, // source: local, remote
	)

	RevertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_reverts_total",
			Help: "Total number of revert notifications emitted, by reason",
		},
		[]string{"space", "reason"},
	)

	// Transport metrics.
	ReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_transport_reconnects_total",
			Help: "Total number of times the remote transport has reconnected",
		},
		[]string{"space"},
	)

	ReplicaLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memory_replica_lag_versions",
			Help: "Difference between the highest commit version observed via subscription and the highest version reflected in the heap",
		},
		[]string{"space"},
	)

	// Operation latency.
	CommitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memory_commit_duration_seconds",
			Help:    "Time from Transaction.commit() call to remote acknowledgment",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"space"},
	)

	PullDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memory_pull_duration_seconds",
			Help:    "Time spent resolving a Replica.Load selector against the remote",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"space"},
	)
)

func init() {
	prometheus.MustRegister(
		HeapSize,
		NurserySize,
		SelectorCacheSize,
		PushTotal,
		PullTotal,
		CommitsTotal,
		RevertsTotal,
		ReconnectsTotal,
		ReplicaLag,
		CommitDuration,
		PullDuration,
	)
}

// Handler returns the Prometheus HTTP handler for a /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
