package loop

import (
	"context"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/logging"
	"github.com/substratehq/strata/pkg/memory"
)

// DefaultMinConfidence is the floor below which a success verdict is
// downgraded to failure.
const DefaultMinConfidence = 0.5

// PipelineOptions tune the judge/extract/consolidate pass.
type PipelineOptions struct {
	// MinConfidence downgrades success judgments below it to failures.
	MinConfidence float64
	// Consolidate controls dedup behavior for extracted candidates.
	Consolidate memory.ConsolidateOptions
}

// DefaultPipelineOptions returns the standard single-attempt configuration.
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		MinConfidence: DefaultMinConfidence,
		Consolidate:   memory.DefaultConsolidateOptions(),
	}
}

// Pipeline runs the learning pass over one finalized trajectory: judge it,
// extract candidate items, consolidate them into the store. Judge and
// extractor failures degrade rather than abort: a broken judge yields a
// conservative failure verdict, a broken extractor yields zero items.
type Pipeline struct {
	store     *memory.Store
	judge     Judge
	extractor Extractor
	opts      PipelineOptions
	logger    *logging.Logger
}

// NewPipeline wires a pipeline over the given store.
func NewPipeline(store *memory.Store, judge Judge, extractor Extractor, opts PipelineOptions) *Pipeline {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	return &Pipeline{
		store:     store,
		judge:     judge,
		extractor: extractor,
		opts:      opts,
		logger:    logging.GetLogger(),
	}
}

// Runner executes one attempt: it records steps onto the trajectory and
// returns the final answer. Memory is handed over as a frozen snapshot so an
// attempt never observes writes made while it runs.
type Runner interface {
	Run(ctx context.Context, task Task, mem *memory.Snapshot, trajectory *Trajectory) (string, error)
}

// Result is what one pipeline pass produced.
type Result struct {
	Judgment Judgment         `json:"judgment"`
	Items    []memory.Item    `json:"items,omitempty"`
	Outcomes []memory.Outcome `json:"outcomes,omitempty"`
}

// Run executes one full attempt: snapshot memory, run the runner, then
// judge, extract, and consolidate. A runner error does not abort the pass;
// the failed attempt is judged like any other so its lesson still lands.
func (p *Pipeline) Run(ctx context.Context, task Task, runner Runner) (*Result, error) {
	snap, err := p.store.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "taking memory snapshot")
	}

	trajectory := NewTrajectory(task.ID)
	answer, err := runner.Run(ctx, task, snap, trajectory)
	if err != nil {
		p.logger.Warn(ctx, "attempt failed for task %s: %v", task.ID, err)
		answer = ""
	}
	trajectory.Finalize(answer)

	return p.Process(ctx, task, trajectory)
}

// Process judges a finalized trajectory and folds what it taught into the
// store. The trajectory must be finalized first.
func (p *Pipeline) Process(ctx context.Context, task Task, trajectory *Trajectory) (*Result, error) {
	if err := errors.CheckContext(ctx, "pipeline process"); err != nil {
		return nil, err
	}
	if trajectory == nil || !trajectory.Finalized() {
		return nil, errors.New(errors.InvalidInput, "trajectory must be finalized before processing")
	}

	judgment := p.judgeTrajectory(ctx, task, trajectory)
	items := p.extractItems(ctx, task, trajectory, judgment)

	outcomes, err := p.store.Consolidate(ctx, items, p.opts.Consolidate)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "consolidating extracted items")
	}
	return &Result{Judgment: judgment, Items: items, Outcomes: outcomes}, nil
}

func (p *Pipeline) judgeTrajectory(ctx context.Context, task Task, trajectory *Trajectory) Judgment {
	judgment, err := p.judge.Judge(ctx, trajectory, task)
	if err != nil {
		p.logger.Warn(ctx, "judge failed for trajectory %s, treating as failure: %v", trajectory.ID, err)
		return Judgment{Success: false, Reason: "judgment unavailable: " + err.Error(), Confidence: 0}
	}
	if judgment.Success && judgment.Confidence < p.opts.MinConfidence {
		// An uncertain success never seeds success memories.
		p.logger.Info(ctx, "downgrading low-confidence success (%.2f < %.2f) for trajectory %s",
			judgment.Confidence, p.opts.MinConfidence, trajectory.ID)
		judgment.Success = false
		judgment.Reason = "uncertain judgment treated as failure: " + judgment.Reason
	}
	return judgment
}

func (p *Pipeline) extractItems(ctx context.Context, task Task, trajectory *Trajectory, judgment Judgment) []memory.Item {
	items, err := p.extractor.Extract(ctx, trajectory, task, judgment)
	if err != nil {
		p.logger.Warn(ctx, "extraction failed for trajectory %s, keeping zero items: %v", trajectory.ID, err)
		return nil
	}
	if len(items) > MaxExtractedItems {
		p.logger.Warn(ctx, "extractor returned %d items for trajectory %s, keeping first %d",
			len(items), trajectory.ID, MaxExtractedItems)
		items = items[:MaxExtractedItems]
	}
	for i := range items {
		if items[i].Iterations == 0 {
			items[i].Iterations = trajectory.Iterations()
		}
	}
	return items
}
