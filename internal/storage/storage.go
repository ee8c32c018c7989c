package storage

import (
	"context"

	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
)

// Storage defines the interface for the run-history store.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Sync runs
	CreateSyncRun(ctx context.Context, run *domain.SyncRun) error
	GetSyncRun(ctx context.Context, id string) (*domain.SyncRun, error)
	ListSyncRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error)
	GetLatestSyncRun(ctx context.Context) (*domain.SyncRun, error)
}
