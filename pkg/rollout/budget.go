// Package rollout coordinates parallel attempts at one task. A batch of
// rollouts runs against a shared memory snapshot, each under its own budget;
// after all of them settle, the batch is judged, mined for lessons, and
// consolidated into the store in a single pass.
package rollout

import (
	"sync"
	"time"

	"github.com/substratehq/strata/pkg/errors"
)

// Budget caps one rollout. Exhaustion is an explicit failure, never a silent
// truncation of the attempt.
type Budget struct {
	MaxIterations int           `json:"max_iterations" yaml:"max_iterations"`
	MaxCalls      int           `json:"max_calls" yaml:"max_calls"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultBudget returns the standard per-rollout limits.
func DefaultBudget() Budget {
	return Budget{
		MaxIterations: 20,
		MaxCalls:      50,
		Timeout:       2 * time.Minute,
	}
}

// Meter enforces a Budget for one rollout. Safe for concurrent use, though a
// rollout is normally driven by a single goroutine.
type Meter struct {
	budget Budget

	mu         sync.Mutex
	iterations int
	calls      int
}

// NewMeter starts metering against the given budget. Zero or negative limits
// mean unlimited for that dimension.
func NewMeter(budget Budget) *Meter {
	return &Meter{budget: budget}
}

// StartIteration charges one iteration. It fails once the iteration budget
// is spent; the caller must stop the rollout, not trim its work.
func (m *Meter) StartIteration() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.budget.MaxIterations > 0 && m.iterations >= m.budget.MaxIterations {
		return errors.WithFields(
			errors.New(errors.BudgetExceeded, "iteration budget exhausted"),
			errors.Fields{"max_iterations": m.budget.MaxIterations},
		)
	}
	m.iterations++
	return nil
}

// CountCall charges one model or tool call.
func (m *Meter) CountCall() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.budget.MaxCalls > 0 && m.calls >= m.budget.MaxCalls {
		return errors.WithFields(
			errors.New(errors.BudgetExceeded, "call budget exhausted"),
			errors.Fields{"max_calls": m.budget.MaxCalls},
		)
	}
	m.calls++
	return nil
}

// Iterations reports how many iterations have been charged.
func (m *Meter) Iterations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.iterations
}

// Calls reports how many calls have been charged.
func (m *Meter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
