package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/logging"
)

// Op is the per-candidate consolidation outcome.
type Op string

const (
	OpAdd     Op = "ADD"     // stored as a new item
	OpSkip    Op = "SKIP"    // duplicate of an existing item, not stored
	OpReplace Op = "REPLACE" // stored; the near-duplicate it beats is superseded
)

// Outcome reports what consolidation did with one candidate.
type Outcome struct {
	CandidateID string `json:"candidate_id"`
	Op          Op     `json:"op"`
	ExistingID  string `json:"existing_id,omitempty"` // the item matched during dedup
	Reason      string `json:"reason,omitempty"`
}

// ConsolidateOptions tunes deduplication. The similarity thresholds are
// empirical, not principled; they are deliberately configurable.
type ConsolidateOptions struct {
	Dedup            bool
	TitleThreshold   float64 // token-overlap ratio on titles
	ContentThreshold float64 // Jaccard index on content token sets
}

// DefaultConsolidateOptions returns the standard thresholds.
func DefaultConsolidateOptions() ConsolidateOptions {
	return ConsolidateOptions{
		Dedup:            true,
		TitleThreshold:   0.8,
		ContentThreshold: 0.75,
	}
}

// Consolidate appends candidate items to the store with deduplication.
// Writes are append-only and serialized: REPLACE supersedes an existing
// item's visibility but the superseded row is retained, never erased.
// Candidates only dedupe against live items of the same source polarity.
//
// Resubmitting a byte-identical candidate is idempotent: its deterministic
// id already exists, so the outcome is SKIP.
func (s *Store) Consolidate(ctx context.Context, candidates []Item, opts ConsolidateOptions) ([]Outcome, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	logger := logging.GetLogger()

	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := s.loadLive(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to begin transaction")
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logger.Error(ctx, "failed to rollback consolidation: %v", err)
		}
	}()

	outcomes := make([]Outcome, 0, len(candidates))
	for _, candidate := range candidates {
		outcome, updatedLive, err := s.consolidateOne(ctx, tx, candidate, live, opts)
		if err != nil {
			return nil, err
		}
		live = updatedLive
		outcomes = append(outcomes, outcome)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to commit consolidation")
	}

	logger.Debug(ctx, "consolidated %d candidates: %s", len(candidates), summarize(outcomes))
	return outcomes, nil
}

// consolidateOne decides ADD/SKIP/REPLACE for a single candidate and stages
// the writes in the transaction. The returned live slice includes the
// candidate when stored, so later candidates in the same batch dedupe
// against it.
func (s *Store) consolidateOne(ctx context.Context, tx *sql.Tx, candidate Item, live []Item, opts ConsolidateOptions) (Outcome, []Item, error) {
	if candidate.ID == "" {
		candidate.ID = candidate.ComputeID()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = time.Now()
	}

	if err := candidate.Validate(); err != nil {
		// Malformed candidates are rejected, never partially stored
		return Outcome{CandidateID: candidate.ID, Op: OpSkip, Reason: err.Error()}, live, nil
	}

	// Idempotence: a resubmitted candidate maps to an id that already exists
	exists, err := s.idExists(ctx, tx, candidate.ID)
	if err != nil {
		return Outcome{}, nil, err
	}
	if exists {
		return Outcome{CandidateID: candidate.ID, Op: OpSkip, Reason: "already stored"}, live, nil
	}

	if opts.Dedup {
		for i := range live {
			existing := &live[i]
			if existing.Source != candidate.Source {
				// Polarity boundary: success never dedupes against failure
				continue
			}
			if titleSimilarity(candidate.Title, existing.Title) < opts.TitleThreshold {
				continue
			}
			if contentSimilarity(candidate.Content, existing.Content) < opts.ContentThreshold {
				continue
			}

			// Near-duplicate found. Replace only on a strictly better
			// quality signal: fewer iterations in the source trajectory.
			if candidate.Iterations > 0 && existing.Iterations > 0 && candidate.Iterations < existing.Iterations {
				if err := insertItem(ctx, tx, candidate); err != nil {
					return Outcome{}, nil, err
				}
				if _, err := tx.ExecContext(ctx,
					"UPDATE items SET superseded_by = ? WHERE id = ?", candidate.ID, existing.ID); err != nil {
					return Outcome{}, nil, errors.WithFields(
						errors.Wrap(err, errors.Unknown, "failed to supersede item"),
						errors.Fields{"id": existing.ID},
					)
				}
				supersededID := existing.ID
				// Candidate takes the superseded item's slot in the live set
				next := make([]Item, 0, len(live))
				for j := range live {
					if live[j].ID != supersededID {
						next = append(next, live[j])
					}
				}
				next = append(next, candidate)
				return Outcome{
					CandidateID: candidate.ID,
					Op:          OpReplace,
					ExistingID:  supersededID,
				}, next, nil
			}

			return Outcome{
				CandidateID: candidate.ID,
				Op:          OpSkip,
				ExistingID:  existing.ID,
				Reason:      "near-duplicate of existing item",
			}, live, nil
		}
	}

	if err := insertItem(ctx, tx, candidate); err != nil {
		return Outcome{}, nil, err
	}
	return Outcome{CandidateID: candidate.ID, Op: OpAdd}, append(live, candidate), nil
}

// idExists checks both live and superseded rows inside the transaction.
func (s *Store) idExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE id = ?", id).Scan(&n); err != nil {
		return false, errors.Wrap(err, errors.Unknown, "failed to check item id")
	}
	return n > 0, nil
}

func summarize(outcomes []Outcome) string {
	var added, skipped, replaced int
	for _, o := range outcomes {
		switch o.Op {
		case OpAdd:
			added++
		case OpSkip:
			skipped++
		case OpReplace:
			replaced++
		}
	}
	return fmt.Sprintf("%d added, %d skipped, %d replaced", added, skipped, replaced)
}
