package memory

import (
	"context"
	"path/filepath"
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratehq/strata/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedItems(t *testing.T, store *Store, items ...Item) []Outcome {
	t.Helper()
	outcomes, err := store.Consolidate(context.Background(), items, ConsolidateOptions{Dedup: false})
	require.NoError(t, err)
	return outcomes
}

func testItem(title, content string, source Source) Item {
	return Item{
		Title:       title,
		Description: "test item",
		Content:     content,
		Source:      source,
	}
}

func TestGetRejectsOverCapAtomically(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	outcomes := seedItems(t, store,
		testItem("first strategy", "content one", SourceSuccess),
		testItem("second strategy", "content two", SourceSuccess),
		testItem("third strategy", "content three", SourceSuccess),
	)

	ids := []string{outcomes[0].CandidateID, outcomes[1].CandidateID, outcomes[2].CandidateID}

	_, err := store.Get(ctx, ids, 2)
	require.Error(t, err)

	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	assert.Equal(t, errors.CapExceeded, e.Code())

	// Within the cap the same ids resolve fine
	items, err := store.Get(ctx, ids[:2], 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestGetRejectsNonPositiveCap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	outcomes := seedItems(t, store, testItem("capped item", "content", SourceSuccess))
	ids := []string{outcomes[0].CandidateID}

	// A non-positive cap never means "uncapped"
	for _, maxN := range []int{0, -1} {
		_, err := store.Get(ctx, ids, maxN)
		require.Error(t, err)
		assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
	}
}

func TestSnapshotGetRejectsNonPositiveCap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	outcomes := seedItems(t, store, testItem("capped item", "content", SourceSuccess))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)

	_, err = snap.Get([]string{outcomes[0].CandidateID}, 0)
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
}

func TestGetUnknownID(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), []string{"m-missing"}, 10)
	require.Error(t, err)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
}

func TestSearchRanksSeededItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedItems(t, store,
		testItem("Link Activities to Reactions via catalyzedReaction", "use the catalyzedReaction property", SourceSuccess),
		testItem("Prefer LIMIT clauses", "bound result sizes", SourceFailure),
		testItem("Reaction label conventions", "labels are camelCase", SourceSeed),
	)

	results, err := store.Search(ctx, "reaction linking", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	titles := make([]string, 0, len(results))
	for _, r := range results {
		titles = append(titles, r.Title)
	}
	assert.Contains(t, titles, "Link Activities to Reactions via catalyzedReaction")
}

func TestSearchReturnsMetadataOnly(t *testing.T) {
	store := newTestStore(t)

	seedItems(t, store, testItem("bounded views", "full content here", SourceSuccess))

	results, err := store.Search(context.Background(), "bounded views", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Title)
	assert.NotEmpty(t, results[0].ID)
	// SearchResult has no content field by construction; spot-check score
	assert.Greater(t, results[0].Score, 0.0)
}

func TestRecordUse(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	outcomes := seedItems(t, store, testItem("usage tracked", "content", SourceSuccess))
	id := outcomes[0].CandidateID

	require.NoError(t, store.RecordUse(ctx, id, true))
	require.NoError(t, store.RecordUse(ctx, id, true))
	require.NoError(t, store.RecordUse(ctx, id, false))

	items, err := store.Get(ctx, []string{id}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, items[0].Usage.Helpful)
	assert.Equal(t, 1, items[0].Usage.Harmful)
	assert.InDelta(t, 2.0/3.0, items[0].Usage.SuccessRate(), 0.001)
}

func TestRecordUseUnknownID(t *testing.T) {
	store := newTestStore(t)
	err := store.RecordUse(context.Background(), "m-missing", true)
	require.Error(t, err)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.db")
	ctx := context.Background()

	store, err := NewStore(path)
	require.NoError(t, err)
	outcomes, err := store.Consolidate(ctx, []Item{testItem("durable item", "survives restart", SourceSuccess)}, DefaultConsolidateOptions())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	items, err := reopened.Get(ctx, []string{outcomes[0].CandidateID}, 1)
	require.NoError(t, err)
	assert.Equal(t, "durable item", items[0].Title)
}

func TestSnapshotIsolatedFromLiveWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedItems(t, store, testItem("present at snapshot", "content", SourceSuccess))

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())

	// A write after the snapshot is invisible to it
	seedItems(t, store, testItem("added after snapshot", "content two", SourceSuccess))
	assert.Equal(t, 1, snap.Len())

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSnapshotGetCapSemantics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	outcomes := seedItems(t, store,
		testItem("snap one", "a", SourceSuccess),
		testItem("snap two", "b", SourceSuccess),
	)

	snap, err := store.Snapshot(ctx)
	require.NoError(t, err)

	ids := []string{outcomes[0].CandidateID, outcomes[1].CandidateID}
	_, err = snap.Get(ids, 1)
	require.Error(t, err)
	assert.Equal(t, errors.CapExceeded, errors.CodeOf(err))

	items, err := snap.Get(ids, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestItemValidation(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{"valid", testItem("a fine title", "content", SourceSuccess), false},
		{"missing title", Item{Description: "d", Content: "c", Source: SourceSuccess}, true},
		{"missing content", Item{Title: "title here", Description: "d", Source: SourceSuccess}, true},
		{"bad source", Item{Title: "title here", Description: "d", Content: "c", Source: "bogus"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestComputeIDDeterministic(t *testing.T) {
	a := testItem("same title", "same content", SourceSuccess)
	b := testItem("same title", "same content", SourceSuccess)
	assert.Equal(t, a.ComputeID(), b.ComputeID())

	// Polarity is part of identity
	c := testItem("same title", "same content", SourceFailure)
	assert.NotEqual(t, a.ComputeID(), c.ComputeID())
}
