package rollout

import (
	"time"

	"github.com/google/uuid"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/loop"
	"github.com/substratehq/strata/pkg/memory"
)

// State is a rollout's lifecycle position. Execution settles into exactly
// one terminal outcome before the learning phases run.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT"
	StateJudged    State = "JUDGED"
	StateExtracted State = "EXTRACTED"
)

var legalTransitions = map[State][]State{
	StatePending:   {StateRunning},
	StateRunning:   {StateSucceeded, StateFailed, StateTimedOut},
	StateSucceeded: {StateJudged},
	StateFailed:    {StateJudged},
	StateTimedOut:  {StateJudged},
	StateJudged:    {StateExtracted},
}

// Rollout is one attempt inside a batch. It is owned by a single worker
// goroutine until the batch barrier; the coordinator only reads it after
// every worker has returned.
type Rollout struct {
	ID         string           `json:"id"`
	TaskID     string           `json:"task_id"`
	State      State            `json:"state"`
	Trajectory *loop.Trajectory `json:"trajectory,omitempty"`
	Judgment   *loop.Judgment   `json:"judgment,omitempty"`
	Items      []memory.Item    `json:"items,omitempty"`
	Err        error            `json:"-"`
	StartedAt  time.Time        `json:"started_at,omitempty"`
	SettledAt  time.Time        `json:"settled_at,omitempty"`

	// terminal remembers how execution settled once State moves on to the
	// learning phases.
	terminal State
}

func newRollout(taskID string) *Rollout {
	return &Rollout{
		ID:     uuid.New().String(),
		TaskID: taskID,
		State:  StatePending,
	}
}

// transition moves the rollout to the next state, rejecting anything the
// lifecycle does not allow.
func (r *Rollout) transition(to State) error {
	for _, allowed := range legalTransitions[r.State] {
		if allowed == to {
			r.State = to
			switch to {
			case StateSucceeded, StateFailed, StateTimedOut:
				r.terminal = to
				r.SettledAt = time.Now()
			}
			return nil
		}
	}
	return errors.WithFields(
		errors.New(errors.InvalidRolloutState, "illegal rollout state transition"),
		errors.Fields{"rollout": r.ID, "from": string(r.State), "to": string(to)},
	)
}

// TimedOut reports whether the rollout's execution hit its deadline.
func (r *Rollout) TimedOut() bool {
	return r.terminal == StateTimedOut
}

// Succeeded reports whether the judge accepted the rollout's outcome.
func (r *Rollout) Succeeded() bool {
	return r.Judgment != nil && r.Judgment.Success
}

// Iterations is the work spent by this rollout's trajectory.
func (r *Rollout) Iterations() int {
	if r.Trajectory == nil {
		return 0
	}
	return r.Trajectory.Iterations()
}
