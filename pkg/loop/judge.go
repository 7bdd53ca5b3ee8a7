package loop

import (
	"context"
	"strings"
)

// Judgment is the verdict on one trajectory. Confidence is in [0,1]; the
// pipeline treats low-confidence verdicts conservatively as failures so an
// uncertain judge never seeds success memories.
type Judgment struct {
	Success    bool    `json:"success"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Judge decides whether a finalized trajectory accomplished its task.
type Judge interface {
	Judge(ctx context.Context, trajectory *Trajectory, task Task) (Judgment, error)
}

// HeuristicJudge is a deterministic, LLM-free judge. It only inspects the
// shape of the trajectory, so it cannot verify answer correctness; use it as
// a baseline or a fallback when no model is available.
type HeuristicJudge struct{}

func (HeuristicJudge) Judge(_ context.Context, trajectory *Trajectory, _ Task) (Judgment, error) {
	if trajectory == nil || trajectory.Empty() {
		return Judgment{Success: false, Reason: "no answer produced", Confidence: 1.0}, nil
	}
	if strings.TrimSpace(trajectory.FinalAnswer) == "" {
		return Judgment{Success: false, Reason: "trajectory ended without a final answer", Confidence: 1.0}, nil
	}
	if failed, obs := lastStepFailed(trajectory); failed {
		return Judgment{
			Success:    false,
			Reason:     "final step reported an error: " + obs,
			Confidence: 0.8,
		}, nil
	}
	// An answer exists and nothing visibly failed. That is weak evidence of
	// success, so confidence stays modest.
	return Judgment{
		Success:    true,
		Reason:     "final answer produced without visible errors",
		Confidence: 0.6,
	}, nil
}

func lastStepFailed(t *Trajectory) (bool, string) {
	if len(t.Steps) == 0 {
		return false, ""
	}
	obs := strings.ToLower(t.Steps[len(t.Steps)-1].Observation)
	for _, marker := range []string{"error:", "failed:", "exception:", "timeout"} {
		if strings.Contains(obs, marker) {
			return true, t.Steps[len(t.Steps)-1].Observation
		}
	}
	return false, ""
}
