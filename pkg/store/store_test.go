package store

import (
	"testing"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key() address.FactKey {
	return address.FactKey{Entity: "e1", Type: "application/json"}
}

func revision(value any, since fact.Version) fact.Revision {
	return fact.Revision{Fact: fact.Assert("e1", "application/json", value, fact.Reference{}), Since: since}
}

func TestPutMergeKeepsHigherSince(t *testing.T) {
	h := NewHeap()
	h.Merge(key(), revision("a", 1))
	result, _ := h.Merge(key(), revision("b", 0))
	assert.Equal(t, fact.Version(1), result.Since, "lower Since must not overwrite higher Since")

	got, ok := h.Get(key())
	require.True(t, ok)
	assert.Equal(t, "a", got.Fact.Value)
}

func TestPutMergeAdoptsHigherSince(t *testing.T) {
	h := NewHeap()
	h.Merge(key(), revision("a", 1))
	h.Merge(key(), revision("b", 2))

	got, _ := h.Get(key())
	assert.Equal(t, "b", got.Fact.Value)
}

func TestUpdatePredicateIgnoresAbsentSide(t *testing.T) {
	local := revision("present", 3)
	result := Update(&local, nil)
	assert.Equal(t, "present", result.Fact.Value, "Update must keep local when remote is absent")

	result2 := Update(nil, &local)
	assert.Equal(t, fact.Revision{}, result2, "Update must not adopt remote when local is absent")
}

func TestHeapSubscribersFireOnChange(t *testing.T) {
	h := NewHeap()
	var seen []fact.Revision
	h.Subscribe(key(), func(r fact.Revision) { seen = append(seen, r) })

	h.Merge(key(), revision("a", 1))
	h.Merge(key(), revision("b", 2))

	require.Len(t, seen, 2)
	assert.Equal(t, "a", seen[0].Fact.Value)
	assert.Equal(t, "b", seen[1].Fact.Value)
}

func TestPlaceholderNeverFiresSubscribers(t *testing.T) {
	h := NewHeap()
	fired := false
	h.Subscribe(key(), func(fact.Revision) { fired = true })

	placeholder := fact.Revision{Fact: fact.Unclaimed("e1", "application/json"), Since: fact.UnknownSince}
	h.Merge(key(), placeholder)

	assert.False(t, fired)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	h := NewHeap()
	count := 0
	sub := h.Subscribe(key(), func(fact.Revision) { count++ })
	h.Merge(key(), revision("a", 1))
	h.Unsubscribe(key(), sub)
	h.Merge(key(), revision("b", 2))

	assert.Equal(t, 1, count)
}

func TestNurseryEvictOnMatchingHash(t *testing.T) {
	n := NewNursery()
	rev := revision("same", fact.UnknownSince)
	n.Put(key(), rev)

	heapRev := revision("same", 5)
	assert.True(t, n.Evict(key(), heapRevision(heapRev)))

	_, ok := n.Get(key())
	assert.False(t, ok)
}

func heapRevision(r fact.Revision) fact.Revision { return r }

func TestNurseryEvictRequiresMatchingContent(t *testing.T) {
	n := NewNursery()
	n.Put(key(), revision("shadow", fact.UnknownSince))

	assert.False(t, n.Evict(key(), revision("different", 5)))
	_, ok := n.Get(key())
	assert.True(t, ok, "nursery entry must survive a non-matching heap revision")
}

func TestNurseryPendingCauseTracking(t *testing.T) {
	n := NewNursery()
	cause := fact.HashValue("seed")

	assert.False(t, n.IsPendingCause(key(), cause))
	n.TrackCause(key(), cause)
	assert.True(t, n.IsPendingCause(key(), cause))

	assert.True(t, n.UntrackCause(key(), cause))
	assert.False(t, n.IsPendingCause(key(), cause))
	assert.False(t, n.UntrackCause(key(), cause), "untracking twice must report false the second time")
}

// The zero Reference is the cause of the first-ever assertion for an
// (entity, type); it must be trackable like any other cause so the
// pending-cause tracker can suppress the echo of an entity's first write.
func TestNurseryPendingCauseTrackingZeroCause(t *testing.T) {
	n := NewNursery()
	var cause fact.Reference

	assert.False(t, n.IsPendingCause(key(), cause))
	n.TrackCause(key(), cause)
	assert.True(t, n.IsPendingCause(key(), cause))

	assert.True(t, n.UntrackCause(key(), cause))
	assert.False(t, n.IsPendingCause(key(), cause))
	assert.False(t, n.UntrackCause(key(), cause), "untracking twice must report false the second time")
}

func TestHeapResetKeepsSubscribers(t *testing.T) {
	h := NewHeap()
	count := 0
	h.Subscribe(key(), func(fact.Revision) { count++ })
	h.Merge(key(), revision("a", 1))
	h.Reset()
	assert.Equal(t, 0, h.Len())

	h.Merge(key(), revision("b", 1))
	assert.Equal(t, 2, count, "subscriber registered before reset must still fire after")
}
