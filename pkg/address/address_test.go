package address

import (
	"testing"

	"github.com/commontoolsinc/memory/pkg/fact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(path ...Segment) Address {
	return New("did:test:space", "entity-1", "application/json", path...)
}

func TestIncludesRequiresSameFact(t *testing.T) {
	a := addr("a")
	other := New("did:test:space", "entity-2", "application/json", "a")
	assert.False(t, Includes(a, other))
}

func TestIncludesPrefix(t *testing.T) {
	shallow := addr("a")
	deep := addr("a", "b", "c")
	assert.True(t, Includes(shallow, deep))
	assert.False(t, Includes(deep, shallow))
}

func TestIntersectsIsMutual(t *testing.T) {
	a := addr("a", "b")
	b := addr("a")
	assert.True(t, Intersects(a, b))
	assert.True(t, Intersects(b, a))

	disjoint := addr("x")
	assert.False(t, Intersects(a, disjoint))
}

func TestRelativeStripsSharedPrefix(t *testing.T) {
	shallow := addr("a")
	deep := addr("a", "b", "c")
	assert.Equal(t, Path{"b", "c"}, Relative(shallow, deep))
}

func TestGetRootReturnsWholeValue(t *testing.T) {
	root := map[string]any{"a": 1.0}
	got, err := Get(root, nil)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestGetDescendsObjectsAndArrays(t *testing.T) {
	root := map[string]any{
		"items": []any{
			map[string]any{"name": "first"},
			map[string]any{"name": "second"},
		},
	}
	got, err := Get(root, Path{"items", "1", "name"})
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	root := map[string]any{"a": 1.0}
	_, err := Get(root, Path{"missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetIntoScalarIsTypeMismatch(t *testing.T) {
	root := map[string]any{"a": 1.0}
	_, err := Get(root, Path{"a", "b"})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSetWholeValueReplacesRoot(t *testing.T) {
	got, err := Set(map[string]any{"a": 1.0}, nil, "replaced")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got)
}

func TestSetLeafDoesNotMutateOriginal(t *testing.T) {
	root := map[string]any{"a": map[string]any{"b": 1.0}}
	updated, err := Set(root, Path{"a", "b"}, 2.0)
	require.NoError(t, err)

	assert.Equal(t, 1.0, root["a"].(map[string]any)["b"])
	assert.Equal(t, 2.0, updated.(map[string]any)["a"].(map[string]any)["b"])
}

func TestSetUndefinedDeletesKey(t *testing.T) {
	root := map[string]any{"a": 1.0, "b": 2.0}
	updated, err := Set(root, Path{"a"}, Undefined)
	require.NoError(t, err)

	m := updated.(map[string]any)
	_, exists := m["a"]
	assert.False(t, exists)
	assert.Equal(t, 2.0, m["b"])
}

func TestSetArrayElement(t *testing.T) {
	root := map[string]any{"items": []any{1.0, 2.0, 3.0}}
	updated, err := Set(root, Path{"items", "1"}, 99.0)
	require.NoError(t, err)
	assert.Equal(t, 99.0, updated.(map[string]any)["items"].([]any)[1])
	assert.Equal(t, 2.0, root["items"].([]any)[1])
}

func TestSetArrayOutOfRangeIsNotFound(t *testing.T) {
	root := map[string]any{"items": []any{1.0}}
	_, err := Set(root, Path{"items", "5"}, 1.0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetArrayAtLengthAppends(t *testing.T) {
	root := map[string]any{"items": []any{1.0, 2.0}}
	updated, err := Set(root, Path{"items", "2"}, 3.0)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, updated.(map[string]any)["items"])
	assert.Equal(t, []any{1.0, 2.0}, root["items"], "original slice must be untouched")
}

func TestSetArrayAtLengthOfEmptyArrayAppends(t *testing.T) {
	root := map[string]any{"items": []any{}}
	updated, err := Set(root, Path{"items", "0"}, "first")
	require.NoError(t, err)
	assert.Equal(t, []any{"first"}, updated.(map[string]any)["items"])
}
