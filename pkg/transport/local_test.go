package transport

import (
	"context"
	"testing"
	"time"

	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/commontoolsinc/memory/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTransactFirstAssertionNeedsNoCause(t *testing.T) {
	c := NewLocal("space1")
	res, err := c.Transact(context.Background(), wire.TransactRequest{
		Operations: []wire.Operation{{Fact: fact.Assert("e1", "application/json", "v1", fact.Reference{})}},
	})
	require.NoError(t, err)
	out := <-res.Confirmed
	require.NoError(t, out.Err)
	require.NotNil(t, out.Commit)
	assert.Equal(t, fact.Version(1), out.Commit.Version)
}

func TestLocalTransactCausalChain(t *testing.T) {
	c := NewLocal("space1")
	ctx := context.Background()

	first := fact.Assert("e1", "application/json", "v1", fact.Reference{})
	res, _ := c.Transact(ctx, wire.TransactRequest{Operations: []wire.Operation{{Fact: first}}})
	out := <-res.Confirmed
	require.NoError(t, out.Err)

	cause := fact.HashFact(first)
	second := fact.Assert("e1", "application/json", "v2", cause)
	res2, _ := c.Transact(ctx, wire.TransactRequest{Operations: []wire.Operation{{Fact: second}}})
	out2 := <-res2.Confirmed
	require.NoError(t, out2.Err)
	assert.Equal(t, fact.Version(2), out2.Commit.Version)
}

func TestLocalTransactRejectsStaleCause(t *testing.T) {
	c := NewLocal("space1")
	ctx := context.Background()

	res, _ := c.Transact(ctx, wire.TransactRequest{
		Operations: []wire.Operation{{Fact: fact.Assert("e1", "application/json", "v1", fact.Reference{})}},
	})
	<-res.Confirmed

	stale := fact.Assert("e1", "application/json", "v2", fact.Reference{})
	res2, _ := c.Transact(ctx, wire.TransactRequest{Operations: []wire.Operation{{Fact: stale}}})
	out := <-res2.Confirmed
	require.Error(t, out.Err)
	var ce *wire.ConflictError
	require.ErrorAs(t, out.Err, &ce)
	require.Len(t, ce.Actuals, 1)
	assert.Equal(t, "v1", ce.Actuals[0].Value)
}

func TestLocalQueryReturnsMatchingFacts(t *testing.T) {
	c := NewLocal("space1")
	ctx := context.Background()
	res, _ := c.Transact(ctx, wire.TransactRequest{
		Operations: []wire.Operation{{Fact: fact.Assert("e1", "application/json", "v1", fact.Reference{})}},
	})
	<-res.Confirmed

	q, err := c.Query(ctx, wire.QueryRequest{Select: wire.Selector{Of: []fact.Entity{"e1"}}})
	require.NoError(t, err)
	require.Contains(t, q.Facts, fact.Entity("e1"))
	assert.Equal(t, "v1", q.Facts["e1"].Value)
}

func TestLocalSubscribeReceivesLiveEffect(t *testing.T) {
	c := NewLocal("space1")
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, wire.SubscribeRequest{Select: wire.Selector{Of: []fact.Entity{"e1"}}})
	require.NoError(t, err)
	require.NoError(t, <-sub.Ready)
	assert.Empty(t, sub.Facts)

	res, _ := c.Transact(ctx, wire.TransactRequest{
		Operations: []wire.Operation{{Fact: fact.Assert("e1", "application/json", "v1", fact.Reference{})}},
	})
	<-res.Confirmed

	select {
	case push := <-sub.Effects:
		require.Len(t, push.Effect.Revisions, 1)
		assert.Equal(t, "v1", push.Effect.Revisions[0].Fact.Value)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for push effect")
	}
}

func TestLocalUnsubscribeClosesChannel(t *testing.T) {
	c := NewLocal("space1")
	ctx := context.Background()
	sub, err := c.Subscribe(ctx, wire.SubscribeRequest{Select: wire.Selector{}})
	require.NoError(t, err)

	require.NoError(t, c.Unsubscribe(ctx, sub.SubscriptionID))
	assert.ErrorIs(t, c.Unsubscribe(ctx, sub.SubscriptionID), ErrUnsubscribed)
}
