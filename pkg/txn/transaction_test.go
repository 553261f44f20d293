package txn

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/notify"
	"github.com/commontoolsinc/memory/pkg/replica"
	"github.com/commontoolsinc/memory/pkg/transport"
	"github.com/commontoolsinc/memory/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spaceRegistry is a minimal SpaceResolver backed by real Replicas over
// the in-process local transport, one per space, created on first use.
type spaceRegistry struct {
	relay     *notify.Relay
	replicas  map[fact.Space]*replica.Replica
	consumers map[fact.Space]transport.Consumer
}

func newSpaceRegistry(t *testing.T) *spaceRegistry {
	t.Helper()
	relay := notify.NewRelay()
	t.Cleanup(func() { relay.Stop() })
	return &spaceRegistry{
		relay:     relay,
		replicas:  make(map[fact.Space]*replica.Replica),
		consumers: make(map[fact.Space]transport.Consumer),
	}
}

func (s *spaceRegistry) Replica(space fact.Space) (ReplicaAccess, error) {
	if r, ok := s.replicas[space]; ok {
		return r, nil
	}
	consumer := transport.NewLocal(space)
	r := replica.New(space, consumer, s.relay, nil)
	s.replicas[space] = r
	s.consumers[space] = consumer
	return r, nil
}

// consumerFor returns the raw transport.Consumer backing space's Replica,
// opening it first if necessary, so a test can simulate an external
// writer racing the transactions under test.
func (s *spaceRegistry) consumerFor(space fact.Space) transport.Consumer {
	if _, err := s.Replica(space); err != nil {
		panic(err)
	}
	return s.consumers[space]
}

func addr(space fact.Space, path ...string) address.Address {
	return address.New(space, "e1", "application/json", path...)
}

func TestReadInlineAddress(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	v, err := tx.Read(address.Address{
		Space:  "space1",
		Entity: `data:application/json,{"x":1}`,
		Type:   "application/json",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": float64(1)}, v)
}

func TestWriteInlineAddressIsReadOnly(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	err := tx.Write(address.Address{
		Space:  "space1",
		Entity: `data:application/json,{"x":1}`,
		Type:   "application/json",
	}, map[string]any{"x": 2})
	require.Error(t, err)
}

func TestWriteThenCommitPersistsThroughReplica(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	require.NoError(t, tx.Write(addr("space1"), map[string]any{"a": 1}))
	commit, err := tx.Commit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, commit)

	r, _ := reg.Replica("space1")
	rev, ok := r.(*replica.Replica).Get(address.FactKey{Entity: "e1", Type: "application/json"})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": 1}, rev.Fact.Value)
}

func TestCommitIsIdempotent(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	require.NoError(t, tx.Write(addr("space1"), map[string]any{"a": 1}))
	commit1, err1 := tx.Commit(context.Background())
	commit2, err2 := tx.Commit(context.Background())

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Same(t, commit1, commit2)
}

func TestCommitWithNoWriterIsNoop(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	_, err := tx.Reader("space1")
	require.NoError(t, err)

	commit, err := tx.Commit(context.Background())
	require.NoError(t, err)
	assert.Nil(t, commit)
}

// S5 — write isolation.
func TestWriteIsolationRejectsSecondSpace(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	_, err := tx.Writer("space1")
	require.NoError(t, err)

	_, err = tx.Writer("space2")
	require.Error(t, err)
	var isoErr *WriteIsolationError
	require.ErrorAs(t, err, &isoErr)
	assert.Equal(t, "space1", isoErr.Bound)
	assert.Equal(t, "space2", isoErr.Requested)

	_, err = tx.Reader("space1")
	require.NoError(t, err)
	_, err = tx.Reader("space2")
	require.NoError(t, err, "readers on both spaces must succeed despite write isolation")
}

func TestWriterMemoizedAcrossCalls(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	w1, err := tx.Writer("space1")
	require.NoError(t, err)
	w2, err := tx.Writer("space1")
	require.NoError(t, err)
	assert.Same(t, w1, w2)
}

func TestAbortRejectsLaterOperations(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	tx.Abort("user cancelled")

	_, err := tx.Reader("space1")
	require.Error(t, err)
	var abortedErr *StorageTransactionAbortedError
	require.ErrorAs(t, err, &abortedErr)

	_, err = tx.Commit(context.Background())
	require.Error(t, err)
}

func TestCommitThenLaterOperationsFailComplete(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	require.NoError(t, tx.Write(addr("space1"), map[string]any{"a": 1}))
	_, err := tx.Commit(context.Background())
	require.NoError(t, err)

	_, err = tx.Write(addr("space1", "a"), 2)
	require.Error(t, err)
	var completeErr *StorageTransactionCompleteError
	require.ErrorAs(t, err, &completeErr)
}

// Settle detects the inconsistency before anything is pushed, so Commit
// returns the error and no revert notification is published for it.
func TestConsistencyFailureRejectsCommit(t *testing.T) {
	reg := newSpaceRegistry(t)
	tx := New("t1", reg)

	require.NoError(t, tx.Write(addr("space1"), map[string]any{"a": map[string]any{"b": 1}}))
	_, err := tx.Commit(context.Background())
	require.NoError(t, err)

	// A second, concurrent transaction reads the nested field, races a
	// committed write underneath it, and fails to commit with Inconsistency.
	tx2 := New("t2", reg)
	v, err := tx2.Read(addr("space1", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	tx3 := New("t3", reg)
	require.NoError(t, tx3.Write(addr("space1", "a", "b"), 2))
	_, err = tx3.Commit(context.Background())
	require.NoError(t, err)

	require.NoError(t, tx2.Write(addr("space1", "a", "c"), 3))
	_, err = tx2.Commit(context.Background())
	require.Error(t, err)
}

// S1 — array push 100x: one transaction seeds an empty array, then 100
// independent read-modify-write transactions each append one element by
// reading the current array to learn its length (paths never name
// array length per spec.md §3, so the caller derives it from the read
// value) and writing to the one-past-the-end index.
func TestArrayPush100TransactionsScenario(t *testing.T) {
	reg := newSpaceRegistry(t)
	ctx := context.Background()

	seed := New("seed", reg)
	require.NoError(t, seed.Write(addr("space1"), map[string]any{"my_array": []any{}}))
	_, err := seed.Commit(ctx)
	require.NoError(t, err)

	for n := 0; n < 100; n++ {
		tx := New("writer-"+strconv.Itoa(n), reg)
		current, err := tx.Read(addr("space1", "my_array"))
		require.NoError(t, err)
		arr, ok := current.([]any)
		require.True(t, ok)
		require.Len(t, arr, n)

		require.NoError(t, tx.Write(addr("space1", "my_array", strconv.Itoa(len(arr))), float64(n)))
		_, err = tx.Commit(ctx)
		require.NoError(t, err)
	}

	final := New("reader", reg)
	v, err := final.Read(addr("space1", "my_array"))
	require.NoError(t, err)
	arr, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, arr, 100)
	expected := make([]any, 100)
	for i := range expected {
		expected[i] = float64(i)
	}
	assert.Equal(t, expected, arr)
}

// S2 — push conflict: the server is advanced out-of-band while a local
// transaction still holds the stale cause, so its commit is rejected,
// the heap is corrected to the server's actual, and the relay emits
// exactly one revert with the pre-commit value as Before and the
// server's value as After.
func TestPushConflictScenario(t *testing.T) {
	reg := newSpaceRegistry(t)
	ctx := context.Background()

	seed := New("seed", reg)
	require.NoError(t, seed.Write(addr("space1"), map[string]any{"list": []any{}}))
	_, err := seed.Commit(ctx)
	require.NoError(t, err)

	current, ok := reg.replicas["space1"].Get(addr("space1").Key())
	require.True(t, ok)

	// An external writer races in and replaces the whole fact out-of-band.
	consumer := reg.consumerFor("space1")
	out, err := consumer.Transact(ctx, wire.TransactRequest{
		Operations: []wire.Operation{{Fact: fact.Assert("e1", "application/json", map[string]any{"list": []any{1.0, 2.0, 3.0}}, fact.HashFact(current.Fact))}},
	})
	require.NoError(t, err)
	require.NoError(t, (<-out.Confirmed).Err)

	var mu sync.Mutex
	var notifications []notify.Notification
	reg.relay.Subscribe(func(n notify.Notification) notify.Result {
		mu.Lock()
		notifications = append(notifications, n)
		mu.Unlock()
		return notify.Result{}
	})

	// This transaction still believes the stale pre-write state is current.
	stale := New("writer", reg)
	require.NoError(t, stale.Write(addr("space1", "list", "0"), 4.0))
	_, err = stale.Commit(ctx)
	require.Error(t, err)

	var reverts []notify.Notification
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		reverts = reverts[:0]
		for _, n := range notifications {
			if n.Kind == notify.KindRevert {
				reverts = append(reverts, n)
			}
		}
		return len(reverts) == 1
	}, time.Second, time.Millisecond)

	require.Len(t, reverts[0].Changes, 1)
	assert.Equal(t, map[string]any{"list": []any{}}, reverts[0].Changes[0].Before)
	assert.Equal(t, map[string]any{"list": []any{1.0, 2.0, 3.0}}, reverts[0].Changes[0].After)

	reader := New("reader", reg)
	v, err := reader.Read(addr("space1", "list"))
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, v)
}
