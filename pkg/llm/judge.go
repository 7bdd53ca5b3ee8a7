package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/loop"
)

// Judge asks the model whether a trajectory accomplished its task. A
// response that cannot be parsed is an uncertain judgment, which callers
// treat conservatively as failure.
type Judge struct {
	llm LLM
}

// NewJudge wires a model-backed judge.
func NewJudge(llm LLM) *Judge {
	return &Judge{llm: llm}
}

const judgePromptTemplate = `You are judging whether an agent accomplished its task.

Task: %s

%s

Respond with only a JSON object:
{"success": true or false, "reason": "one sentence", "confidence": 0.0 to 1.0}`

func (j *Judge) Judge(ctx context.Context, trajectory *loop.Trajectory, task loop.Task) (loop.Judgment, error) {
	if trajectory == nil || trajectory.Empty() {
		return loop.Judgment{Success: false, Reason: "no answer produced", Confidence: 1.0}, nil
	}

	prompt := fmt.Sprintf(judgePromptTemplate, task.Goal, renderTrajectory(trajectory))
	response, err := j.llm.Generate(ctx, prompt)
	if err != nil {
		return loop.Judgment{}, err
	}

	var judgment loop.Judgment
	if err := json.Unmarshal([]byte(stripFences(response)), &judgment); err != nil {
		return loop.Judgment{}, errors.Wrap(err, errors.JudgmentUncertain, "judge response is not valid JSON")
	}
	if judgment.Confidence < 0 || judgment.Confidence > 1 {
		return loop.Judgment{}, errors.New(errors.JudgmentUncertain, "judge confidence out of range")
	}
	return judgment, nil
}

func renderTrajectory(t *loop.Trajectory) string {
	var b strings.Builder
	b.WriteString("Trajectory:\n")
	for i, step := range t.Steps {
		fmt.Fprintf(&b, "%d. action: %s\n   observation: %s\n", i+1, step.Action, step.Observation)
	}
	fmt.Fprintf(&b, "Final answer: %s", t.FinalAnswer)
	return b.String()
}

// stripFences removes a surrounding markdown code fence, which models add
// despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
