package rollout

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/logging"
	"github.com/substratehq/strata/pkg/loop"
	"github.com/substratehq/strata/pkg/memory"
)

// Attempt is everything a runner gets for one rollout: the task, a frozen
// view of memory shared by the whole batch, the trajectory to record into,
// and the meter it must charge.
type Attempt struct {
	RolloutID  string
	Task       loop.Task
	Memory     *memory.Snapshot
	Trajectory *loop.Trajectory
	Meter      *Meter
}

// Runner executes one attempt and returns its final answer. Runners record
// steps on attempt.Trajectory and charge attempt.Meter as they go; returning
// an error marks the rollout failed.
type Runner interface {
	Run(ctx context.Context, attempt *Attempt) (string, error)
}

// Options tune a batch.
type Options struct {
	// Rollouts is how many parallel attempts the batch launches.
	Rollouts int
	// MaxParallel caps concurrent workers; zero means one worker per rollout.
	MaxParallel int
	// Budget applies to each rollout independently.
	Budget Budget
	// MinConfidence downgrades uncertain success judgments to failures.
	MinConfidence float64
	// Consolidate controls dedup for the batch's single consolidation pass.
	Consolidate memory.ConsolidateOptions
	// Contrastive and Pattern enable cross-rollout extraction.
	Contrastive bool
	Pattern     bool
}

// DefaultOptions returns the standard batch configuration.
func DefaultOptions() Options {
	return Options{
		Rollouts:      3,
		MaxParallel:   3,
		Budget:        DefaultBudget(),
		MinConfidence: loop.DefaultMinConfidence,
		Consolidate:   memory.DefaultConsolidateOptions(),
		Contrastive:   true,
		Pattern:       true,
	}
}

// BatchResult is the settled outcome of one batch.
type BatchResult struct {
	BatchID  string           `json:"batch_id"`
	TaskID   string           `json:"task_id"`
	Rollouts []*Rollout       `json:"rollouts"`
	Best     *Rollout         `json:"best,omitempty"`
	Items    []memory.Item    `json:"items,omitempty"`
	Outcomes []memory.Outcome `json:"outcomes,omitempty"`
}

// Coordinator runs batches of parallel rollouts over a shared memory store.
type Coordinator struct {
	store     *memory.Store
	runner    Runner
	judge     loop.Judge
	extractor loop.Extractor
	opts      Options
	logger    *logging.Logger
}

// NewCoordinator wires a coordinator. Judge and extractor apply to every
// rollout in a batch.
func NewCoordinator(store *memory.Store, runner Runner, judge loop.Judge, extractor loop.Extractor, opts Options) *Coordinator {
	if opts.Rollouts <= 0 {
		opts.Rollouts = 1
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = opts.Rollouts
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = loop.DefaultMinConfidence
	}
	return &Coordinator{
		store:     store,
		runner:    runner,
		judge:     judge,
		extractor: extractor,
		opts:      opts,
		logger:    logging.GetLogger(),
	}
}

// RunBatch launches the configured number of rollouts against one task.
// All rollouts share a single memory snapshot taken at batch start, so
// siblings never observe each other mid-flight. Consolidation happens once,
// after every rollout has settled and been judged.
func (c *Coordinator) RunBatch(ctx context.Context, task loop.Task) (*BatchResult, error) {
	if err := errors.CheckContext(ctx, "run batch"); err != nil {
		return nil, err
	}

	batchID := uuid.New().String()
	ctx = logging.WithBatchID(ctx, batchID)
	c.logger.Info(ctx, "starting batch of %d rollouts for task %s", c.opts.Rollouts, task.ID)

	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "taking batch memory snapshot")
	}

	rollouts := make([]*Rollout, c.opts.Rollouts)
	p := pool.New().WithMaxGoroutines(c.opts.MaxParallel)
	for i := range rollouts {
		r := newRollout(task.ID)
		rollouts[i] = r
		p.Go(func() {
			c.runOne(ctx, task, snap, r)
		})
	}
	// Barrier: nothing below runs until every rollout has settled.
	p.Wait()

	for _, r := range rollouts {
		c.judgeRollout(ctx, task, r)
		c.extractRollout(ctx, task, r)
	}

	best := SelectBest(rollouts)

	items := c.collectItems(task, rollouts, best)
	outcomes, err := c.store.Consolidate(ctx, items, c.opts.Consolidate)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "consolidating batch items")
	}

	c.logger.Info(ctx, "batch settled: %d rollouts, %d candidate items, %d outcomes",
		len(rollouts), len(items), len(outcomes))

	return &BatchResult{
		BatchID:  batchID,
		TaskID:   task.ID,
		Rollouts: rollouts,
		Best:     best,
		Items:    items,
		Outcomes: outcomes,
	}, nil
}

func (c *Coordinator) runOne(ctx context.Context, task loop.Task, snap *memory.Snapshot, r *Rollout) {
	ctx = logging.WithRolloutID(ctx, r.ID)

	if c.opts.Budget.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Budget.Timeout)
		defer cancel()
	}

	if err := r.transition(StateRunning); err != nil {
		r.Err = err
		return
	}
	r.StartedAt = time.Now()

	traj := loop.NewTrajectory(task.ID)
	attempt := &Attempt{
		RolloutID:  r.ID,
		Task:       task,
		Memory:     snap,
		Trajectory: traj,
		Meter:      NewMeter(c.opts.Budget),
	}

	answer, err := c.runner.Run(ctx, attempt)
	traj.Finalize(answer)
	r.Trajectory = traj
	r.Err = err

	switch {
	case err == nil:
		_ = r.transition(StateSucceeded)
	case isTimeout(ctx, err):
		r.Err = errors.Wrap(err, errors.Timeout, "rollout hit its deadline")
		_ = r.transition(StateTimedOut)
		c.logger.Warn(ctx, "rollout %s timed out after %d iterations", r.ID, traj.Iterations())
	default:
		_ = r.transition(StateFailed)
		c.logger.Warn(ctx, "rollout %s failed: %v", r.ID, err)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	return errors.CodeOf(err) == errors.Timeout
}

func (c *Coordinator) judgeRollout(ctx context.Context, task loop.Task, r *Rollout) {
	ctx = logging.WithRolloutID(ctx, r.ID)

	var judgment loop.Judgment
	if r.TimedOut() {
		judgment = loop.Judgment{Success: false, Reason: "rollout timed out", Confidence: 1.0}
	} else {
		var err error
		judgment, err = c.judge.Judge(ctx, r.Trajectory, task)
		if err != nil {
			c.logger.Warn(ctx, "judge failed for rollout %s, treating as failure: %v", r.ID, err)
			judgment = loop.Judgment{Success: false, Reason: "judgment unavailable: " + err.Error()}
		}
		if judgment.Success && judgment.Confidence < c.opts.MinConfidence {
			judgment.Success = false
			judgment.Reason = "uncertain judgment treated as failure: " + judgment.Reason
		}
	}
	r.Judgment = &judgment
	_ = r.transition(StateJudged)
}

func (c *Coordinator) extractRollout(ctx context.Context, task loop.Task, r *Rollout) {
	ctx = logging.WithRolloutID(ctx, r.ID)

	items, err := c.extractor.Extract(ctx, r.Trajectory, task, *r.Judgment)
	if err != nil {
		c.logger.Warn(ctx, "extraction failed for rollout %s, keeping zero items: %v", r.ID, err)
		items = nil
	}
	if len(items) > loop.MaxExtractedItems {
		items = items[:loop.MaxExtractedItems]
	}
	for i := range items {
		if items[i].Iterations == 0 {
			items[i].Iterations = r.Iterations()
		}
	}
	r.Items = items
	_ = r.transition(StateExtracted)
}

// collectItems gathers every rollout's extracted items plus the
// cross-rollout contrastive and pattern items into one consolidation batch.
func (c *Coordinator) collectItems(task loop.Task, rollouts []*Rollout, best *Rollout) []memory.Item {
	var items []memory.Item
	for _, r := range rollouts {
		items = append(items, r.Items...)
	}

	if c.opts.Contrastive && best != nil && best.Succeeded() {
		if worst := worstFailure(rollouts); worst != nil {
			items = append(items, ContrastiveExtract(task, best, worst)...)
		}
	}

	if c.opts.Pattern {
		var successes []*Rollout
		for _, r := range rollouts {
			if !r.TimedOut() && r.Succeeded() {
				successes = append(successes, r)
			}
		}
		items = append(items, PatternExtract(task, successes)...)
	}
	return items
}

// worstFailure picks the judged failure that did the most work, the clearest
// contrast against the winner. Timed-out rollouts are skipped; their
// trajectories are truncated mid-thought.
func worstFailure(rollouts []*Rollout) *Rollout {
	var worst *Rollout
	for _, r := range rollouts {
		if r.TimedOut() || r.Succeeded() || r.Trajectory == nil {
			continue
		}
		if worst == nil || r.Iterations() > worst.Iterations() {
			worst = r
		}
	}
	return worst
}
