package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/logging"
	"github.com/substratehq/strata/pkg/loop"
	"github.com/substratehq/strata/pkg/memory"
)

// Extractor asks the model to distill a judged trajectory into candidate
// memory items. Malformed responses degrade to zero items at the caller;
// individually invalid items are dropped here.
type Extractor struct {
	llm    LLM
	logger *logging.Logger
}

// NewExtractor wires a model-backed extractor.
func NewExtractor(llm LLM) *Extractor {
	return &Extractor{llm: llm, logger: logging.GetLogger()}
}

const successExtractTemplate = `An agent just solved this task:

Task: %s

%s

Distill what made this attempt work into at most %d reusable strategies for
similar future tasks. Generalize beyond this task's specifics.

Respond with only a JSON array:
[{"title": "...", "description": "...", "content": "...", "tags": ["..."]}]

Return [] if nothing transfers.`

const failureExtractTemplate = `An agent just failed this task:

Task: %s

%s

Judged failure because: %s

Distill at most %d preventive lessons a future attempt should apply to avoid
this failure. Focus on what to do differently, not on blame.

Respond with only a JSON array:
[{"title": "...", "description": "...", "content": "...", "tags": ["..."]}]

Return [] if the failure teaches nothing reusable.`

type extractedItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags,omitempty"`
}

func (e *Extractor) Extract(ctx context.Context, trajectory *loop.Trajectory, task loop.Task, judgment loop.Judgment) ([]memory.Item, error) {
	if trajectory == nil || trajectory.Empty() {
		return nil, nil
	}

	var prompt string
	source := memory.SourceFailure
	if judgment.Success {
		source = memory.SourceSuccess
		prompt = fmt.Sprintf(successExtractTemplate, task.Goal, renderTrajectory(trajectory), loop.MaxExtractedItems)
	} else {
		prompt = fmt.Sprintf(failureExtractTemplate, task.Goal, renderTrajectory(trajectory), judgment.Reason, loop.MaxExtractedItems)
	}

	response, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var extracted []extractedItem
	if err := json.Unmarshal([]byte(stripFences(response)), &extracted); err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "extractor response is not a valid JSON array")
	}

	items := make([]memory.Item, 0, len(extracted))
	for _, raw := range extracted {
		item := memory.Item{
			Title:       raw.Title,
			Description: raw.Description,
			Content:     raw.Content,
			Tags:        raw.Tags,
			Source:      source,
			Iterations:  trajectory.Iterations(),
		}
		if err := item.Validate(); err != nil {
			e.logger.Warn(ctx, "dropping invalid extracted item %q: %v", raw.Title, err)
			continue
		}
		items = append(items, item)
		if len(items) == loop.MaxExtractedItems {
			break
		}
	}
	return items, nil
}
