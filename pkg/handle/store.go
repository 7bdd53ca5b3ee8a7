package handle

import (
	"context"
	"sync"

	"github.com/substratehq/strata/pkg/errors"
)

// Store is the handle store. Put returns bounded metadata only; raw content
// never leaves the package except through a bounded View.
//
// The unexported raw method deliberately restricts implementations to this
// package: no caller outside it can retrieve unbounded content.
type Store interface {
	// Put stores content and returns its handle. Storing identical content
	// again returns the same handle.
	Put(ctx context.Context, content, dtype string) (Handle, error)

	// Stat returns the handle record for a previously stored id.
	Stat(ctx context.Context, id string) (Handle, error)

	// raw returns the full stored content. Internal to bounded views.
	raw(ctx context.Context, id string) (string, error)
}

// MemStore is an in-memory Store for tests and ephemeral sandboxes.
type MemStore struct {
	mu       sync.RWMutex
	handles  map[string]Handle
	contents map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		handles:  make(map[string]Handle),
		contents: make(map[string]string),
	}
}

func (s *MemStore) Put(ctx context.Context, content, dtype string) (Handle, error) {
	if dtype == "" {
		dtype = DTypeText
	}
	h := newHandle(content, dtype)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.handles[h.ID]; ok {
		return existing, nil
	}
	s.handles[h.ID] = h
	s.contents[h.ID] = content
	return h, nil
}

func (s *MemStore) Stat(ctx context.Context, id string) (Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.handles[id]
	if !ok {
		return Handle{}, errors.WithFields(
			errors.New(errors.ResourceNotFound, "unknown handle"),
			errors.Fields{"id": id},
		)
	}
	return h, nil
}

func (s *MemStore) raw(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.contents[id]
	if !ok {
		return "", errors.WithFields(
			errors.New(errors.ResourceNotFound, "unknown handle"),
			errors.Fields{"id": id},
		)
	}
	return content, nil
}
