package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/substratehq/strata/pkg/errors"
)

// Store is the durable procedural-memory store backed by SQLite. Reads are
// concurrent; the write path (consolidation, usage updates) is serialized
// behind the mutex, and WAL mode keeps readers unblocked during writes.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	initialized sync.Once
}

// NewStore opens (or creates) a memory store at the given path.
// Use ":memory:" for an in-memory database.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Unknown, "failed to open SQLite database"),
			errors.Fields{"path": path},
		)
	}

	store := &Store{
		db:   db,
		path: path,
	}
	if err := store.ensureInitialized(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureInitialized() error {
	var initErr error
	s.initialized.Do(func() {
		// WAL mode for one-writer/many-reader access
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.Unknown, "failed to enable WAL mode")
			return
		}

		query := `
        CREATE TABLE IF NOT EXISTS items (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            content TEXT NOT NULL,
            source TEXT NOT NULL,
            tags TEXT NOT NULL DEFAULT '[]',
            created_at TEXT NOT NULL,
            iterations INTEGER NOT NULL DEFAULT 0,
            helpful INTEGER NOT NULL DEFAULT 0,
            harmful INTEGER NOT NULL DEFAULT 0,
            superseded_by TEXT
        );

        CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);
        `

		if _, err := s.db.Exec(query); err != nil {
			initErr = errors.WithFields(
				errors.Wrap(err, errors.Unknown, "failed to initialize items table"),
				errors.Fields{"query": query},
			)
			return
		}
	})
	return initErr
}

// Search ranks live items against the query and returns at most k
// metadata-only results, optionally restricted to the given sources.
func (s *Store) Search(ctx context.Context, query string, k int, sources ...Source) ([]SearchResult, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.loadLive(ctx)
	if err != nil {
		return nil, err
	}
	return rankItems(query, items, k, sources), nil
}

// Get retrieves full items by id. The cap must be positive; a request for
// more than maxN ids is rejected atomically with CapExceeded: no partial
// result is returned. Superseded items are not retrievable.
func (s *Store) Get(ctx context.Context, ids []string, maxN int) ([]Item, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
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

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		item, err := s.getOne(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// RecordUse updates an item's usage counters after it was injected into a
// later attempt. Counters are the only mutable part of an item.
func (s *Store) RecordUse(ctx context.Context, id string, helpful bool) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	column := "harmful"
	if helpful {
		column = "helpful"
	}

	res, err := s.db.ExecContext(ctx, "UPDATE items SET "+column+" = "+column+" + 1 WHERE id = ?", id)
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.Unknown, "failed to update usage stats"),
			errors.Fields{"id": id},
		)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to read affected rows")
	}
	if affected == 0 {
		return errors.WithFields(
			errors.New(errors.ResourceNotFound, "unknown item"),
			errors.Fields{"id": id},
		)
	}
	return nil
}

// Snapshot returns an immutable point-in-time copy of the live items.
// Rollouts read from snapshots so no shared mutable state exists while a
// batch is in flight.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.loadLive(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{items: items, takenAt: time.Now()}, nil
}

// Len returns the number of live (non-superseded) items.
func (s *Store) Len(ctx context.Context) (int, error) {
	if err := s.ensureInitialized(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE superseded_by IS NULL").Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.Unknown, "failed to count items")
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to close database connection")
	}
	return nil
}

// loadLive reads every non-superseded item. Caller must hold a lock.
func (s *Store) loadLive(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, title, description, content, source, tags, created_at, iterations, helpful, harmful
        FROM items WHERE superseded_by IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to load items")
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "error iterating items")
	}
	return items, nil
}

// getOne reads a single live item. Caller must hold a lock.
func (s *Store) getOne(ctx context.Context, id string) (Item, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, title, description, content, source, tags, created_at, iterations, helpful, harmful
        FROM items WHERE id = ? AND superseded_by IS NULL`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return Item{}, errors.WithFields(
			errors.New(errors.ResourceNotFound, "unknown item"),
			errors.Fields{"id": id},
		)
	}
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (Item, error) {
	var item Item
	var tagsJSON, createdAt, source string

	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Content,
		&source, &tagsJSON, &createdAt, &item.Iterations,
		&item.Usage.Helpful, &item.Usage.Harmful)
	if err == sql.ErrNoRows {
		return Item{}, err
	}
	if err != nil {
		return Item{}, errors.Wrap(err, errors.Unknown, "failed to scan item")
	}

	item.Source = Source(source)
	if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
		return Item{}, errors.WithFields(
			errors.Wrap(err, errors.InvalidResponse, "failed to decode item tags"),
			errors.Fields{"id": item.ID},
		)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		item.CreatedAt = t
	}
	return item, nil
}

// insertItem writes a new item row inside the given transaction.
func insertItem(ctx context.Context, tx *sql.Tx, item Item) error {
	tagsJSON, err := json.Marshal(item.Tags)
	if err != nil {
		return errors.Wrap(err, errors.InvalidInput, "failed to encode item tags")
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO items (id, title, description, content, source, tags, created_at, iterations, helpful, harmful)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Description, item.Content, string(item.Source),
		string(tagsJSON), item.CreatedAt.Format(time.RFC3339Nano), item.Iterations,
		item.Usage.Helpful, item.Usage.Harmful)
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.Unknown, "failed to insert item"),
			errors.Fields{"id": item.ID},
		)
	}
	return nil
}
