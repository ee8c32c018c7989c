// Package sql implements the storage interface over sqlite or postgres.
package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Ensure Store implements the storage interface.
var _ storage.Storage = (*Store)(nil)

// New creates a new SQL store and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSyncRun(ctx context.Context, run *domain.SyncRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, resource_id, kind, status, prefix_count, entry_count, source_url, dry_run, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.ResourceID, run.Kind, run.Status, run.PrefixCount, run.EntryCount,
		run.SourceURL, run.DryRun, run.Error, run.CreatedAt)
	return err
}

func (s *Store) GetSyncRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	var run domain.SyncRun
	err := s.db.GetContext(ctx, &run,
		`SELECT id, resource_id, kind, status, prefix_count, entry_count, source_url, dry_run, error, created_at
		 FROM sync_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Store) ListSyncRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []*domain.SyncRun
	err := s.db.SelectContext(ctx, &runs,
		`SELECT id, resource_id, kind, status, prefix_count, entry_count, source_url, dry_run, error, created_at
		 FROM sync_runs ORDER BY created_at DESC LIMIT $1`, limit)
	return runs, err
}

func (s *Store) GetLatestSyncRun(ctx context.Context) (*domain.SyncRun, error) {
	var run domain.SyncRun
	err := s.db.GetContext(ctx, &run,
		`SELECT id, resource_id, kind, status, prefix_count, entry_count, source_url, dry_run, error, created_at
		 FROM sync_runs ORDER BY created_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
