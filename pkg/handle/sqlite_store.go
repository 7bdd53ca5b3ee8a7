package handle

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/substratehq/strata/pkg/errors"
)

// SQLiteStore is a durable Store backed by SQLite. WAL mode keeps reads
// concurrent while writes stay serialized behind the mutex.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	initialized sync.Once
}

// NewSQLiteStore opens (or creates) a handle store at the given path.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.Unknown, "failed to open SQLite database"),
			errors.Fields{"path": path},
		)
	}

	store := &SQLiteStore{
		db:   db,
		path: path,
	}
	if err := store.ensureInitialized(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) ensureInitialized() error {
	var initErr error
	s.initialized.Do(func() {
		// WAL mode for one-writer/many-reader access
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.Unknown, "failed to enable WAL mode")
			return
		}

		query := `
        CREATE TABLE IF NOT EXISTS handles (
            id TEXT PRIMARY KEY,
            dtype TEXT NOT NULL,
            size INTEGER NOT NULL,
            preview TEXT NOT NULL,
            content TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );
        `

		if _, err := s.db.Exec(query); err != nil {
			initErr = errors.WithFields(
				errors.Wrap(err, errors.Unknown, "failed to initialize handle table"),
				errors.Fields{"query": query},
			)
			return
		}
	})
	return initErr
}

func (s *SQLiteStore) Put(ctx context.Context, content, dtype string) (Handle, error) {
	if err := s.ensureInitialized(); err != nil {
		return Handle{}, err
	}
	if dtype == "" {
		dtype = DTypeText
	}
	h := newHandle(content, dtype)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Content-addressed ids make duplicate inserts a no-op
	query := `
    INSERT INTO handles (id, dtype, size, preview, content)
    VALUES (?, ?, ?, ?, ?)
    ON CONFLICT(id) DO NOTHING
    `

	if _, err := s.db.ExecContext(ctx, query, h.ID, h.DType, h.Size, h.Preview, content); err != nil {
		return Handle{}, errors.WithFields(
			errors.Wrap(err, errors.Unknown, "failed to store content"),
			errors.Fields{"id": h.ID, "dtype": dtype},
		)
	}

	return h, nil
}

func (s *SQLiteStore) Stat(ctx context.Context, id string) (Handle, error) {
	if err := s.ensureInitialized(); err != nil {
		return Handle{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var h Handle
	query := "SELECT id, dtype, size, preview FROM handles WHERE id = ?"

	err := s.db.QueryRowContext(ctx, query, id).Scan(&h.ID, &h.DType, &h.Size, &h.Preview)
	if err == sql.ErrNoRows {
		return Handle{}, errors.WithFields(
			errors.New(errors.ResourceNotFound, "unknown handle"),
			errors.Fields{"id": id},
		)
	}
	if err != nil {
		return Handle{}, errors.WithFields(
			errors.Wrap(err, errors.Unknown, "failed to stat handle"),
			errors.Fields{"id": id},
		)
	}

	return h, nil
}

func (s *SQLiteStore) raw(ctx context.Context, id string) (string, error) {
	if err := s.ensureInitialized(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var content string
	err := s.db.QueryRowContext(ctx, "SELECT content FROM handles WHERE id = ?", id).Scan(&content)
	if err == sql.ErrNoRows {
		return "", errors.WithFields(
			errors.New(errors.ResourceNotFound, "unknown handle"),
			errors.Fields{"id": id},
		)
	}
	if err != nil {
		return "", errors.WithFields(
			errors.Wrap(err, errors.Unknown, "failed to load content"),
			errors.Fields{"id": id},
		)
	}

	return content, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to close database connection")
	}
	return nil
}
