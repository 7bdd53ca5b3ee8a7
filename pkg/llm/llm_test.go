package llm

import (
	"context"
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/loop"
	"github.com/substratehq/strata/pkg/memory"
)

type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func judgedTrajectory() *loop.Trajectory {
	traj := loop.NewTrajectory("task-1")
	_ = traj.Record("run scoped query", "got 14 rows")
	traj.Finalize("14 reactions")
	return traj
}

func TestJudgeParsesVerdict(t *testing.T) {
	fake := &fakeLLM{response: `{"success": true, "reason": "answer matches the data", "confidence": 0.9}`}
	judge := NewJudge(fake)

	judgment, err := judge.Judge(context.Background(), judgedTrajectory(), loop.Task{Goal: "count reactions"})
	require.NoError(t, err)

	assert.True(t, judgment.Success)
	assert.Equal(t, "answer matches the data", judgment.Reason)
	assert.InDelta(t, 0.9, judgment.Confidence, 0.001)

	// The trajectory and goal both reached the prompt
	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "count reactions")
	assert.Contains(t, fake.prompts[0], "run scoped query")
}

func TestJudgeStripsCodeFence(t *testing.T) {
	fake := &fakeLLM{response: "```json\n{\"success\": false, \"reason\": \"wrong count\", \"confidence\": 0.8}\n```"}
	judge := NewJudge(fake)

	judgment, err := judge.Judge(context.Background(), judgedTrajectory(), loop.Task{})
	require.NoError(t, err)
	assert.False(t, judgment.Success)
}

func TestJudgeMalformedResponse(t *testing.T) {
	fake := &fakeLLM{response: "I think it went well!"}
	judge := NewJudge(fake)

	_, err := judge.Judge(context.Background(), judgedTrajectory(), loop.Task{})
	require.Error(t, err)
	assert.Equal(t, errors.JudgmentUncertain, errors.CodeOf(err))
}

func TestJudgeConfidenceOutOfRange(t *testing.T) {
	fake := &fakeLLM{response: `{"success": true, "reason": "sure", "confidence": 7}`}
	judge := NewJudge(fake)

	_, err := judge.Judge(context.Background(), judgedTrajectory(), loop.Task{})
	require.Error(t, err)
	assert.Equal(t, errors.JudgmentUncertain, errors.CodeOf(err))
}

func TestJudgeEmptyTrajectoryShortCircuits(t *testing.T) {
	fake := &fakeLLM{err: stderrors.New("should not be called")}
	judge := NewJudge(fake)

	judgment, err := judge.Judge(context.Background(), loop.NewTrajectory("task-1"), loop.Task{})
	require.NoError(t, err)
	assert.False(t, judgment.Success)
	assert.Equal(t, "no answer produced", judgment.Reason)
	assert.Empty(t, fake.prompts)
}

func TestExtractorSuccessItems(t *testing.T) {
	fake := &fakeLLM{response: `[
		{"title": "Scope queries before joining", "description": "narrow first", "content": "filter on the selective predicate before any join", "tags": ["query"]},
		{"title": "Verify row counts", "description": "sanity check", "content": "compare returned counts against a cheap aggregate"}
	]`}
	extractor := NewExtractor(fake)

	items, err := extractor.Extract(context.Background(), judgedTrajectory(), loop.Task{Goal: "count reactions"},
		loop.Judgment{Success: true, Reason: "verified", Confidence: 0.9})
	require.NoError(t, err)
	require.Len(t, items, 2)

	for _, item := range items {
		assert.Equal(t, memory.SourceSuccess, item.Source)
		assert.Equal(t, 1, item.Iterations)
		assert.NoError(t, item.Validate())
	}
	assert.Contains(t, fake.prompts[0], "solved this task")
}

func TestExtractorFailureFraming(t *testing.T) {
	fake := &fakeLLM{response: `[{"title": "Bound every query", "description": "lesson", "content": "always attach a limit clause"}]`}
	extractor := NewExtractor(fake)

	items, err := extractor.Extract(context.Background(), judgedTrajectory(), loop.Task{Goal: "count reactions"},
		loop.Judgment{Success: false, Reason: "query timed out", Confidence: 0.9})
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, memory.SourceFailure, items[0].Source)
	assert.Contains(t, fake.prompts[0], "failed this task")
	assert.Contains(t, fake.prompts[0], "query timed out")
}

func TestExtractorMalformedResponse(t *testing.T) {
	fake := &fakeLLM{response: "here are some lessons: be careful"}
	extractor := NewExtractor(fake)

	_, err := extractor.Extract(context.Background(), judgedTrajectory(), loop.Task{},
		loop.Judgment{Success: true})
	require.Error(t, err)
	assert.Equal(t, errors.InvalidResponse, errors.CodeOf(err))
}

func TestExtractorDropsInvalidItems(t *testing.T) {
	fake := &fakeLLM{response: `[
		{"title": "", "description": "", "content": ""},
		{"title": "A valid lesson title", "description": "d", "content": "real content"}
	]`}
	extractor := NewExtractor(fake)

	items, err := extractor.Extract(context.Background(), judgedTrajectory(), loop.Task{},
		loop.Judgment{Success: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A valid lesson title", items[0].Title)
}

func TestExtractorClampsToMaxItems(t *testing.T) {
	fake := &fakeLLM{response: `[
		{"title": "Lesson number one here", "description": "d", "content": "c1"},
		{"title": "Lesson number two here", "description": "d", "content": "c2"},
		{"title": "Lesson number three here", "description": "d", "content": "c3"},
		{"title": "Lesson number four here", "description": "d", "content": "c4"}
	]`}
	extractor := NewExtractor(fake)

	items, err := extractor.Extract(context.Background(), judgedTrajectory(), loop.Task{},
		loop.Judgment{Success: true})
	require.NoError(t, err)
	assert.Len(t, items, loop.MaxExtractedItems)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripFences(tt.input))
		})
	}
}
