package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestSubscriberReceivesNotificationsInOrder(t *testing.T) {
	r := NewRelay()
	defer r.Stop()

	var mu sync.Mutex
	var kinds []Kind
	done := make(chan struct{}, 10)

	r.Subscribe(func(n Notification) Result {
		mu.Lock()
		kinds = append(kinds, n.Kind)
		mu.Unlock()
		done <- struct{}{}
		return Result{}
	})

	r.Publish(Notification{Kind: KindCommit})
	drain(t, done)
	r.Publish(Notification{Kind: KindIntegrate})
	drain(t, done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Kind{KindCommit, KindIntegrate}, kinds)
}

func TestSinkReportingDoneIsPruned(t *testing.T) {
	r := NewRelay()
	defer r.Stop()

	calls := 0
	done := make(chan struct{}, 10)
	r.Subscribe(func(Notification) Result {
		calls++
		done <- struct{}{}
		return Result{Done: true}
	})

	r.Publish(Notification{Kind: KindReset})
	drain(t, done)

	require.Eventually(t, func() bool { return r.SubscriberCount() == 0 }, time.Second, time.Millisecond)

	r.Publish(Notification{Kind: KindReset})
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, calls, "a sink that reported done must not be invoked again")
}

func TestPanickingSinkIsKept(t *testing.T) {
	r := NewRelay()
	defer r.Stop()

	calls := 0
	done := make(chan struct{}, 10)
	r.Subscribe(func(Notification) Result {
		calls++
		done <- struct{}{}
		panic("boom")
	})

	r.Publish(Notification{Kind: KindPull})
	drain(t, done)
	require.Eventually(t, func() bool { return r.SubscriberCount() == 1 }, time.Second, time.Millisecond)

	r.Publish(Notification{Kind: KindPull})
	drain(t, done)
	assert.Equal(t, 2, calls, "a panicking sink must remain registered and keep receiving notifications")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := NewRelay()
	defer r.Stop()

	calls := 0
	id := r.Subscribe(func(Notification) Result {
		calls++
		return Result{}
	})
	r.Unsubscribe(id)

	r.Publish(Notification{Kind: KindLoad})
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, calls)
}
