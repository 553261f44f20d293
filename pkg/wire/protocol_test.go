package wire

import (
	"encoding/json"
	"testing"

	"github.com/commontoolsinc/memory/pkg/address"
	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactRequestRoundTrip(t *testing.T) {
	req := TransactRequest{
		Reads: ReadSet{
			Confirmed: []address.Address{address.New("space1", "e1", "application/json", "title")},
		},
		Operations: []Operation{
			{Fact: fact.Assert("e1", "application/json", "hello", fact.Reference{})},
		},
		Branch:  "main",
		CodeCID: "bafy123",
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var out TransactRequest
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, req.Branch, out.Branch)
	assert.Equal(t, req.CodeCID, out.CodeCID)
	require.Len(t, out.Operations, 1)
	assert.Equal(t, "hello", out.Operations[0].Fact.Value)
	require.Len(t, out.Reads.Confirmed, 1)
	assert.Equal(t, fact.Entity("e1"), out.Reads.Confirmed[0].Entity)
}

func TestConflictErrorSatisfiesError(t *testing.T) {
	var err error = &ConflictError{Kind: "conflict", Message: "stale read"}
	assert.EqualError(t, err, "stale read")
}

func TestNilConflictErrorMessageIsSafe(t *testing.T) {
	var ce *ConflictError
	assert.Equal(t, "conflict", ce.Error())
}

func TestFactSetRoundTrip(t *testing.T) {
	ref := fact.HashValue("v")
	set := FactSet{
		"e1": {Value: "v", Hash: ref, Version: 3},
	}
	resp := QueryResponse{Ok: set}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var out QueryResponse
	require.NoError(t, json.Unmarshal(data, &out))
	entry, ok := out.Ok["e1"]
	require.True(t, ok)
	assert.Equal(t, fact.Version(3), entry.Version)
	assert.True(t, ref.Equal(entry.Hash))
}

func TestSelectorIsSchemaAware(t *testing.T) {
	plain := Selector{Space: "s1", Of: []fact.Entity{"e1"}}
	assert.False(t, plain.IsSchemaAware())

	schemaed := Selector{Space: "s1", Schema: json.RawMessage(`{"type":"object"}`)}
	assert.True(t, schemaed.IsSchemaAware())
}

func TestFrameDistinguishesPushFromReply(t *testing.T) {
	reply := Frame{ID: "req-1", Ok: json.RawMessage(`{}`)}
	assert.False(t, reply.IsPush())

	push := Frame{Effect: &Effect{Commit: fact.Commit{Version: 2}}}
	assert.True(t, push.IsPush())
}

func TestEnvelopeCarriesOpaquePayload(t *testing.T) {
	payload, err := json.Marshal(TransactRequest{Branch: "main"})
	require.NoError(t, err)

	env := Envelope{Ability: AbilityTransact, Issuer: "did:key:z6Mk...", Payload: payload}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var out Envelope
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, AbilityTransact, out.Ability)
	assert.Equal(t, env.Issuer, out.Issuer)

	var req TransactRequest
	require.NoError(t, json.Unmarshal(out.Payload, &req))
	assert.Equal(t, "main", req.Branch)
}
