package memory

import (
	"time"

	"github.com/substratehq/strata/pkg/errors"
)

// Snapshot is an immutable point-in-time view of the store. Rollouts in a
// parallel batch each hold the same snapshot; none of their reads touch the
// live store, so concurrent execution shares no mutable state.
type Snapshot struct {
	items   []Item
	takenAt time.Time
}

// TakenAt reports when the snapshot was captured.
func (s *Snapshot) TakenAt() time.Time {
	return s.takenAt
}

// Len returns the number of items in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.items)
}

// Search ranks snapshot items with the same scoring as the live store.
func (s *Snapshot) Search(query string, k int, sources ...Source) []SearchResult {
	return rankItems(query, s.items, k, sources)
}

// Get retrieves full items by id with the same cap semantics as the live
// store: the cap must be positive, and over-cap requests are rejected
// atomically.
func (s *Snapshot) Get(ids []string, maxN int) ([]Item, error) {
	if maxN < 1 {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "retrieval cap must be positive"),
			errors.Fields{"max": maxN},
		)
	}
	if len(ids) > maxN {
		return nil, errors.WithFields(
			errors.New(errors.CapExceeded, "requested more items than the retrieval cap"),
			errors.Fields{"requested": len(ids), "max": maxN},
		)
	}

	byID := make(map[string]*Item, len(s.items))
	for i := range s.items {
		byID[s.items[i].ID] = &s.items[i]
	}

	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			return nil, errors.WithFields(
				errors.New(errors.ResourceNotFound, "unknown item"),
				errors.Fields{"id": id},
			)
		}
		out = append(out, *item)
	}
	return out, nil
}

// Items returns a copy of every item in the snapshot.
func (s *Snapshot) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}
