package fact

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeNormalizesNaN(t *testing.T) {
	got := Canonicalize(map[string]any{"x": math.NaN(), "y": 1.0})
	assert.Equal(t, nil, got.(map[string]any)["x"])
	assert.Equal(t, 1.0, got.(map[string]any)["y"])
}

func TestHashValueStableUnderKeyOrder(t *testing.T) {
	a := map[string]any{"a": 1.0, "b": 2.0}
	b := map[string]any{"b": 2.0, "a": 1.0}
	assert.True(t, HashValue(a).Equal(HashValue(b)))
}

func TestHashValueDiffersOnContent(t *testing.T) {
	a := HashValue(map[string]any{"a": 1.0})
	b := HashValue(map[string]any{"a": 2.0})
	assert.False(t, a.Equal(b))
}

func TestHashFactIncludesCause(t *testing.T) {
	cause1 := HashValue("seed-1")
	cause2 := HashValue("seed-2")
	f1 := Assert("e1", "application/json", 1.0, cause1)
	f2 := Assert("e1", "application/json", 1.0, cause2)
	assert.False(t, HashFact(f1).Equal(HashFact(f2)), "same value, different cause must hash differently")
}

func TestReferenceJSONRoundTrip(t *testing.T) {
	ref := HashValue(map[string]any{"x": 1.0})
	data, err := json.Marshal(ref)
	require.NoError(t, err)

	var decoded Reference
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, ref.Equal(decoded))
}

func TestZeroReferenceMarshalsNull(t *testing.T) {
	var zero Reference
	data, err := json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var decoded Reference
	require.NoError(t, json.Unmarshal([]byte("null"), &decoded))
	assert.True(t, decoded.IsZero())
}

func TestParseReferenceRoundTrip(t *testing.T) {
	ref := HashValue("hello")
	reparsed := ParseReference(ref.Digest())
	assert.True(t, ref.Equal(reparsed))
}
