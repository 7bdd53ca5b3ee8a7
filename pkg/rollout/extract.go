package rollout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/substratehq/strata/pkg/loop"
	"github.com/substratehq/strata/pkg/memory"
)

// ContrastiveExtract compares the best success against a failure on the same
// task and distills what separated them. It needs both sides; otherwise there
// is nothing to contrast and it returns nil.
func ContrastiveExtract(task loop.Task, success, failure *Rollout) []memory.Item {
	if success == nil || failure == nil || !success.Succeeded() || failure.Succeeded() {
		return nil
	}
	if success.Trajectory == nil || failure.Trajectory == nil {
		return nil
	}

	divergence := firstDivergence(success.Trajectory, failure.Trajectory)

	var b strings.Builder
	if divergence >= len(success.Trajectory.Steps) || divergence >= len(failure.Trajectory.Steps) {
		// One path is a prefix of the other: the attempts never took
		// different actions, one just stopped short.
		fmt.Fprintf(&b, "Two attempts at the same task took the same actions for %d steps; the losing one stopped before finishing.\n", divergence)
	} else {
		fmt.Fprintf(&b, "Two attempts at the same task diverged at step %d.\n", divergence+1)
	}
	fmt.Fprintf(&b, "Winning path (%d steps): %s\n", success.Iterations(), actionLine(success.Trajectory))
	fmt.Fprintf(&b, "Losing path (%d steps): %s\n", failure.Iterations(), actionLine(failure.Trajectory))
	if failure.Judgment != nil {
		fmt.Fprintf(&b, "The losing attempt failed because: %s\n", failure.Judgment.Reason)
	}

	return []memory.Item{{
		Title:       fmt.Sprintf("What separated success from failure on %s", truncateGoal(task)),
		Description: "contrast between a winning and a losing attempt at the same task",
		Content:     b.String(),
		Source:      memory.SourceContrastive,
		Iterations:  success.Iterations(),
	}}
}

// PatternExtract mines the actions shared by every successful rollout in a
// batch. One success is an anecdote; a pattern needs at least two.
func PatternExtract(task loop.Task, successes []*Rollout) []memory.Item {
	if len(successes) < 2 {
		return nil
	}

	shared := sharedActions(successes)
	if len(shared) == 0 {
		return nil
	}

	best := successes[0]
	for _, r := range successes[1:] {
		if r.Iterations() < best.Iterations() {
			best = r
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d independent successful attempts all performed:\n", len(successes))
	for _, action := range shared {
		fmt.Fprintf(&b, "- %s\n", action)
	}

	return []memory.Item{{
		Title:       fmt.Sprintf("Recurring winning moves for %s", truncateGoal(task)),
		Description: fmt.Sprintf("actions common to %d independent successes", len(successes)),
		Content:     b.String(),
		Source:      memory.SourcePattern,
		Iterations:  best.Iterations(),
	}}
}

// firstDivergence finds the first step index where the two trajectories take
// different actions.
func firstDivergence(a, b *loop.Trajectory) int {
	n := len(a.Steps)
	if len(b.Steps) < n {
		n = len(b.Steps)
	}
	for i := 0; i < n; i++ {
		if a.Steps[i].Action != b.Steps[i].Action {
			return i
		}
	}
	return n
}

func actionLine(t *loop.Trajectory) string {
	actions := make([]string, len(t.Steps))
	for i, step := range t.Steps {
		actions[i] = step.Action
	}
	return strings.Join(actions, " -> ")
}

func sharedActions(rollouts []*Rollout) []string {
	counts := make(map[string]int)
	for _, r := range rollouts {
		if r.Trajectory == nil {
			return nil
		}
		seen := make(map[string]bool)
		for _, step := range r.Trajectory.Steps {
			if !seen[step.Action] {
				seen[step.Action] = true
				counts[step.Action]++
			}
		}
	}

	var shared []string
	for action, n := range counts {
		if n == len(rollouts) {
			shared = append(shared, action)
		}
	}
	sort.Strings(shared)
	return shared
}

func truncateGoal(task loop.Task) string {
	goal := strings.TrimSpace(task.Goal)
	if goal == "" {
		return "this task"
	}
	words := strings.Fields(goal)
	if len(words) > 10 {
		return strings.Join(words[:10], " ")
	}
	return goal
}
