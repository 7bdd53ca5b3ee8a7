package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ResourceNotFound, "handle not found")
	require.Error(t, err)
	assert.Equal(t, "handle not found", err.Error())

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, ResourceNotFound, e.Code())
}

func TestWrap(t *testing.T) {
	base := fmt.Errorf("disk full")
	err := Wrap(base, Unknown, "failed to persist item")
	require.Error(t, err)
	assert.Equal(t, "failed to persist item: disk full", err.Error())
	assert.Equal(t, base, stderrors.Unwrap(err))

	assert.Nil(t, Wrap(nil, Unknown, "ignored"))
}

func TestWithFields(t *testing.T) {
	err := WithFields(
		New(CapExceeded, "too many ids requested"),
		Fields{"requested": 12, "max": 10},
	)

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, CapExceeded, e.Code())
	assert.Equal(t, 12, e.Fields()["requested"])
	assert.Equal(t, 10, e.Fields()["max"])
	assert.Contains(t, err.Error(), "too many ids requested")
}

func TestWithFieldsMergesExisting(t *testing.T) {
	err := WithFields(New(Timeout, "rollout timed out"), Fields{"rollout": "r1"})
	err = WithFields(err, Fields{"task": "t1"})

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, Timeout, e.Code())
	assert.Equal(t, "r1", e.Fields()["rollout"])
	assert.Equal(t, "t1", e.Fields()["task"])
}

func TestWithFieldsForeignError(t *testing.T) {
	err := WithFields(fmt.Errorf("plain"), Fields{"k": "v"})

	var e *Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, Unknown, e.Code())
}

func TestIsMatchesOnCode(t *testing.T) {
	a := New(SerializationFailed, "opaque value at boundary")
	b := New(SerializationFailed, "different message")
	c := New(InvalidInput, "unrelated")

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, Unknown},
		{"direct", New(JudgmentUncertain, "low confidence"), JudgmentUncertain},
		{"wrapped", fmt.Errorf("outer: %w", New(BudgetExceeded, "too many calls")), BudgetExceeded},
		{"foreign", fmt.Errorf("plain"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}
