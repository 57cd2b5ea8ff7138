// Package memory provides the in-process RecordStore, used in tests and as
// the default backend for single-node runs.
package memory

import (
	"context"
	"sync"

	"github.com/parley-labs/parley/pkg/domain"
)

// Store keeps records in a map guarded by a RWMutex. Records are deep
// copied on the way in and out so callers never share mutable state with
// the store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.Record
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]*domain.Record)}
}

func (s *Store) Save(_ context.Context, rec *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

func (s *Store) Load(_ context.Context, sessionID string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.records, sessionID)
	return nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}
