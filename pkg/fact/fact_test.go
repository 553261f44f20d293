package fact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnclaimedHasNoValue(t *testing.T) {
	f := Unclaimed("e1", "application/json")
	assert.Equal(t, KindUnclaimed, f.Kind)
	assert.False(t, f.HasValue())
	assert.True(t, f.IsUnclaimed())
}

func TestAssertCarriesValueAndCause(t *testing.T) {
	cause := HashValue("prior")
	f := Assert("e1", "application/json", map[string]any{"x": 1.0}, cause)
	assert.True(t, f.HasValue())
	assert.Equal(t, KindAssertion, f.Kind)
	assert.True(t, f.Cause.Equal(cause))
}

func TestRetractCarriesNoValue(t *testing.T) {
	cause := HashValue("prior")
	f := Retract("e1", "application/json", cause)
	assert.Equal(t, KindRetraction, f.Kind)
	assert.False(t, f.HasValue())
	assert.True(t, f.Cause.Equal(cause))
}

func TestPlaceholderRevisionDoesNotCountAsReal(t *testing.T) {
	r := Revision{Fact: Unclaimed("e1", "application/json"), Since: UnknownSince}
	assert.True(t, r.IsPlaceholder())

	r2 := Revision{Fact: Unclaimed("e1", "application/json"), Since: 5}
	assert.False(t, r2.IsPlaceholder())
}
