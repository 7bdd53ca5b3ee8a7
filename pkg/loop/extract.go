package loop

import (
	"context"
	"fmt"
	"strings"

	"github.com/substratehq/strata/pkg/memory"
)

// MaxExtractedItems bounds how many candidates one trajectory may yield.
// Extraction distills, it does not transcribe.
const MaxExtractedItems = 3

// Extractor distills a judged trajectory into candidate memory items.
// Implementations must frame success and failure differently: successes
// become transferable strategies, failures become preventive lessons.
// Zero candidates is a valid result.
type Extractor interface {
	Extract(ctx context.Context, trajectory *Trajectory, task Task, judgment Judgment) ([]memory.Item, error)
}

// HeuristicExtractor builds candidates from trajectory structure alone. It
// produces at most one item per trajectory; richer extraction belongs to an
// LLM-backed extractor.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(_ context.Context, trajectory *Trajectory, task Task, judgment Judgment) ([]memory.Item, error) {
	if trajectory == nil || trajectory.Empty() {
		return nil, nil
	}

	goal := strings.TrimSpace(task.Goal)
	if goal == "" {
		goal = "the task"
	}

	var item memory.Item
	if judgment.Success {
		item = memory.Item{
			Title:       fmt.Sprintf("Strategy for %s", truncateWords(goal, 12)),
			Description: fmt.Sprintf("approach that solved the task in %d steps", trajectory.Iterations()),
			Content:     successContent(trajectory),
			Source:      memory.SourceSuccess,
		}
	} else {
		item = memory.Item{
			Title:       fmt.Sprintf("Avoid: %s", truncateWords(failureCause(trajectory, judgment), 12)),
			Description: "preventive lesson from a failed attempt",
			Content:     failureContent(trajectory, judgment),
			Source:      memory.SourceFailure,
		}
	}
	item.Iterations = trajectory.Iterations()
	return []memory.Item{item}, nil
}

func successContent(t *Trajectory) string {
	var b strings.Builder
	b.WriteString("Sequence that worked:\n")
	for i, step := range t.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step.Action)
	}
	b.WriteString("Final answer: ")
	b.WriteString(t.FinalAnswer)
	return b.String()
}

func failureCause(t *Trajectory, j Judgment) string {
	if failed, obs := lastStepFailed(t); failed {
		return obs
	}
	return j.Reason
}

func failureContent(t *Trajectory, j Judgment) string {
	var b strings.Builder
	b.WriteString("Failure mode: ")
	b.WriteString(j.Reason)
	b.WriteString("\n")
	if len(t.Steps) > 0 {
		last := t.Steps[len(t.Steps)-1]
		fmt.Fprintf(&b, "Last action before failing: %s\n", last.Action)
		if last.Observation != "" {
			fmt.Fprintf(&b, "Observed: %s\n", last.Observation)
		}
	}
	b.WriteString("Next attempt should address this before repeating the approach.")
	return b.String()
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}
