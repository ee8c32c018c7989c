// Package memory provides an in-memory storage implementation, used by tests
// and by one-shot runs that have no database configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage"
)

// Store is an in-memory implementation of the storage interface.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*domain.SyncRun
}

// Ensure Store implements the storage interface.
var _ storage.Storage = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]*domain.SyncRun)}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateSyncRun(ctx context.Context, run *domain.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *run
	s.runs[run.ID] = &copy
	return nil
}

func (s *Store) GetSyncRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copy := *run
	return &copy, nil
}

func (s *Store) ListSyncRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*domain.SyncRun, 0, len(s.runs))
	for _, run := range s.runs {
		copy := *run
		runs = append(runs, &copy)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *Store) GetLatestSyncRun(ctx context.Context) (*domain.SyncRun, error) {
	runs, err := s.ListSyncRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, domain.ErrNotFound
	}
	return runs[0], nil
}
