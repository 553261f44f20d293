package notify

import (
	"sync"

	"github.com/commontoolsinc/memory/pkg/log"
)

// Subscription is an opaque handle returned by Relay.Subscribe, used to
// unsubscribe a sink that never signals Done itself.
type Subscription uint64

type entry struct {
	id   Subscription
	sink Sink
}

// Relay is the subscription fan-out for notifications; an engine.Session
// shares one Relay across every space it opens. Publish queues a
// notification; a single dispatch loop invokes every registered sink in
// subscribe order, removing any that report Done. A sink that panics is
// logged and kept.
type Relay struct {
	mu      sync.Mutex
	nextID  Subscription
	sinks   []entry
	queue   chan Notification
	stopCh  chan struct{}
	stopped bool
}

// NewRelay creates a Relay and starts its dispatch loop. Call Stop when
// the relay is no longer needed to release the loop's goroutine.
func NewRelay() *Relay {
	r := &Relay{
		queue:  make(chan Notification, 256),
		stopCh: make(chan struct{}),
	}
	go r.run()
	return r
}

// Subscribe registers sink to receive every future notification in
// dispatch order, until it returns Result{Done: true} or is explicitly
// unsubscribed.
func (r *Relay) Subscribe(sink Sink) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.sinks = append(r.sinks, entry{id: id, sink: sink})
	return id
}

// Unsubscribe removes a previously registered sink.
func (r *Relay) Unsubscribe(id Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.sinks {
		if e.id == id {
			r.sinks = append(r.sinks[:i], r.sinks[i+1:]...)
			return
		}
	}
}

// Publish enqueues a notification for dispatch. It never blocks the
// caller on sink execution; delivery happens on the relay's own
// goroutine, preserving dispatch order across all publishers.
func (r *Relay) Publish(n Notification) {
	select {
	case r.queue <- n:
	case <-r.stopCh:
	}
}

// Stop halts the dispatch loop. Already-queued notifications that have
// not yet been dispatched are dropped.
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()
	close(r.stopCh)
}

// SubscriberCount reports the number of currently registered sinks.
func (r *Relay) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

func (r *Relay) run() {
	for {
		select {
		case n := <-r.queue:
			r.dispatch(n)
		case <-r.stopCh:
			return
		}
	}
}

func (r *Relay) dispatch(n Notification) {
	r.mu.Lock()
	sinks := append([]entry(nil), r.sinks...)
	r.mu.Unlock()

	var done []Subscription
	for _, e := range sinks {
		if invokeSink(e, n) {
			done = append(done, e.id)
		}
	}
	if len(done) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range done {
		for i, e := range r.sinks {
			if e.id == id {
				r.sinks = append(r.sinks[:i], r.sinks[i+1:]...)
				break
			}
		}
	}
}

// invokeSink runs one sink, recovering and logging a panic rather than
// letting one broken observer kill the relay's dispatch loop.
func invokeSink(e entry, n Notification) (shouldRemove bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithComponent("notify").Error().
				Interface("panic", r).
				Str("kind", string(n.Kind)).
				Msg("notification sink panicked; keeping it registered")
		}
	}()
	return e.sink(n).Done
}
