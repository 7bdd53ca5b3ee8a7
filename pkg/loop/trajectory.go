// Package loop implements the per-attempt learning pipeline: an attempt's
// trajectory is judged, candidate memory items are extracted from it (framed
// differently for success and failure), and the candidates are consolidated
// into the durable store.
package loop

import (
	"time"

	"github.com/google/uuid"

	"github.com/substratehq/strata/pkg/errors"
)

// Task describes one unit of work handed to an agent.
type Task struct {
	ID       string            `json:"id"`
	Goal     string            `json:"goal"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Step is a single action/observation pair inside a trajectory. Oversized
// observations should already be behind handles; HandlesTouched records
// which ones.
type Step struct {
	Action         string   `json:"action"`
	Observation    string   `json:"observation"`
	HandlesTouched []string `json:"handles_touched,omitempty"`
}

// Trajectory is the ordered record of one attempt. It is the sole input to
// judging and extraction. Once finalized it is read-only.
type Trajectory struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Steps       []Step    `json:"steps"`
	FinalAnswer string    `json:"final_answer,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	finalized bool
}

// NewTrajectory starts recording an attempt for the given task.
func NewTrajectory(taskID string) *Trajectory {
	return &Trajectory{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		StartedAt: time.Now(),
	}
}

// Record appends a step. Recording into a finalized trajectory is an error.
func (t *Trajectory) Record(action, observation string, handles ...string) error {
	if t.finalized {
		return errors.WithFields(
			errors.New(errors.InvalidInput, "trajectory is finalized"),
			errors.Fields{"trajectory": t.ID},
		)
	}
	t.Steps = append(t.Steps, Step{
		Action:         action,
		Observation:    observation,
		HandlesTouched: handles,
	})
	return nil
}

// Finalize freezes the trajectory with its final answer. Idempotent.
func (t *Trajectory) Finalize(finalAnswer string) {
	if t.finalized {
		return
	}
	t.FinalAnswer = finalAnswer
	t.CompletedAt = time.Now()
	t.finalized = true
}

// Finalized reports whether the trajectory is frozen.
func (t *Trajectory) Finalized() bool {
	return t.finalized
}

// Iterations is the number of recorded steps; fewer iterations for the same
// outcome is the work-efficiency signal used in selection and dedup.
func (t *Trajectory) Iterations() int {
	return len(t.Steps)
}

// Empty reports whether the attempt produced neither steps nor an answer.
func (t *Trajectory) Empty() bool {
	return len(t.Steps) == 0 && t.FinalAnswer == ""
}
