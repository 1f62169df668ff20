package invariant_test

import (
	"strings"
	"testing"

	"github.com/splanck/viper/core/invariant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPanic(t *testing.T, fragment string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		msg, ok := r.(string)
		require.True(t, ok, "panic payload should be a string")
		assert.Contains(t, msg, fragment)
	}()
	fn()
}

func TestPreconditionPasses(t *testing.T) {
	assert.NotPanics(t, func() {
		invariant.Precondition(true, "never fires")
	})
}

func TestPreconditionFails(t *testing.T) {
	mustPanic(t, "PRECONDITION VIOLATION", func() {
		invariant.Precondition(false, "operand count %d", 3)
	})
}

func TestPreconditionMessageFormatting(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		msg := r.(string)
		assert.Contains(t, msg, "operand count 3")
		assert.True(t, strings.Contains(msg, "at "), "should carry a frame")
	}()
	invariant.Precondition(false, "operand count %d", 3)
}

func TestPostconditionFails(t *testing.T) {
	mustPanic(t, "POSTCONDITION VIOLATION", func() {
		invariant.Postcondition(false, "result missing")
	})
}

func TestInvariantFails(t *testing.T) {
	mustPanic(t, "INVARIANT VIOLATION", func() {
		invariant.Invariant(false, "cursor must advance")
	})
}

func TestNotNilAcceptsValue(t *testing.T) {
	assert.NotPanics(t, func() {
		invariant.NotNil(struct{}{}, "value")
	})
}

func TestNotNilRejectsNil(t *testing.T) {
	mustPanic(t, "value must not be nil", func() {
		invariant.NotNil(nil, "value")
	})
}

func TestNotNilRejectsTypedNil(t *testing.T) {
	var p *int
	mustPanic(t, "value must not be nil", func() {
		invariant.NotNil(p, "value")
	})
}

func TestExpectNoError(t *testing.T) {
	assert.NotPanics(t, func() {
		invariant.ExpectNoError(nil, "noop")
	})
	mustPanic(t, "POSTCONDITION VIOLATION", func() {
		invariant.ExpectNoError(assert.AnError, "op")
	})
}
