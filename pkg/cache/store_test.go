package cache

import (
	"testing"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	key := address.FactKey{Entity: "e1", Type: "application/json"}
	rev := fact.Revision{Fact: fact.Assert("e1", "application/json", "hello", fact.Reference{}), Since: 4}

	require.NoError(t, s.Put("space1", key, rev))

	got, ok := s.Get("space1", key)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Fact.Value)
	assert.Equal(t, fact.Version(4), got.Since)
}

func TestGetMissIsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok := s.Get("space1", address.FactKey{Entity: "missing", Type: "application/json"})
	assert.False(t, ok)
}

func TestSpacesAreIsolated(t *testing.T) {
	s := openTestStore(t)
	key := address.FactKey{Entity: "e1", Type: "application/json"}
	require.NoError(t, s.Put("space1", key, fact.Revision{Fact: fact.Assert("e1", "application/json", "a", fact.Reference{})}))

	_, ok := s.Get("space2", key)
	assert.False(t, ok, "a cache entry in one space must not leak into another")
}

func TestDeleteRemovesEntry(t *testing.T) {
	s := openTestStore(t)
	key := address.FactKey{Entity: "e1", Type: "application/json"}
	require.NoError(t, s.Put("space1", key, fact.Revision{Fact: fact.Assert("e1", "application/json", "a", fact.Reference{})}))
	require.NoError(t, s.Delete("space1", key))

	_, ok := s.Get("space1", key)
	assert.False(t, ok)
}

func TestPutAllThenSnapshot(t *testing.T) {
	s := openTestStore(t)
	entries := map[address.FactKey]fact.Revision{
		{Entity: "e1", Type: "application/json"}: {Fact: fact.Assert("e1", "application/json", "a", fact.Reference{}), Since: 1},
		{Entity: "e2", Type: "application/json"}: {Fact: fact.Assert("e2", "application/json", "b", fact.Reference{}), Since: 2},
	}
	require.NoError(t, s.PutAll("space1", entries))

	snap, err := s.Snapshot("space1")
	require.NoError(t, err)
	assert.Len(t, snap, 2)
	assert.Equal(t, "a", snap[address.FactKey{Entity: "e1", Type: "application/json"}].Fact.Value)
}

func TestNilStoreBehavesAsAlwaysEmpty(t *testing.T) {
	var s *Store
	key := address.FactKey{Entity: "e1", Type: "application/json"}

	_, ok := s.Get("space1", key)
	assert.False(t, ok)
	assert.NoError(t, s.Put("space1", key, fact.Revision{}))
	assert.NoError(t, s.Delete("space1", key))
	assert.NoError(t, s.Close())

	snap, err := s.Snapshot("space1")
	require.NoError(t, err)
	assert.Empty(t, snap)
}
