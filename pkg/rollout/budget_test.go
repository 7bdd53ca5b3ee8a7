package rollout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratehq/strata/pkg/errors"
)

func TestMeterIterationBudget(t *testing.T) {
	meter := NewMeter(Budget{MaxIterations: 2})

	require.NoError(t, meter.StartIteration())
	require.NoError(t, meter.StartIteration())

	err := meter.StartIteration()
	require.Error(t, err)
	assert.Equal(t, errors.BudgetExceeded, errors.CodeOf(err))
	assert.Equal(t, 2, meter.Iterations())
}

func TestMeterCallBudget(t *testing.T) {
	meter := NewMeter(Budget{MaxCalls: 1})

	require.NoError(t, meter.CountCall())

	err := meter.CountCall()
	require.Error(t, err)
	assert.Equal(t, errors.BudgetExceeded, errors.CodeOf(err))
}

func TestMeterUnlimitedDimensions(t *testing.T) {
	meter := NewMeter(Budget{})
	for i := 0; i < 100; i++ {
		require.NoError(t, meter.StartIteration())
		require.NoError(t, meter.CountCall())
	}
	assert.Equal(t, 100, meter.Iterations())
	assert.Equal(t, 100, meter.Calls())
}

func TestRolloutStateMachine(t *testing.T) {
	r := newRollout("task-1")
	assert.Equal(t, StatePending, r.State)

	require.NoError(t, r.transition(StateRunning))
	require.NoError(t, r.transition(StateTimedOut))
	require.NoError(t, r.transition(StateJudged))
	require.NoError(t, r.transition(StateExtracted))

	assert.True(t, r.TimedOut())
}

func TestRolloutIllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"pending to succeeded", StatePending, StateSucceeded},
		{"running to extracted", StateRunning, StateExtracted},
		{"succeeded to failed", StateSucceeded, StateFailed},
		{"extracted anywhere", StateExtracted, StateRunning},
		{"judged to running", StateJudged, StateRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRollout("task-1")
			r.State = tt.from

			err := r.transition(tt.to)
			require.Error(t, err)
			assert.Equal(t, errors.InvalidRolloutState, errors.CodeOf(err))
			assert.Equal(t, tt.from, r.State)
		})
	}
}
