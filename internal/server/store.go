package server

import (
	"context"
	"fmt"

	"github.com/JakeFAU/page-summarizer/internal/config"
	memoryStorage "github.com/JakeFAU/page-summarizer/internal/storage/memory"
	pgstore "github.com/JakeFAU/page-summarizer/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/page-summarizer/internal/storage/sqlite"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

// RecordStore is a summary.Store that can also list by status, which every
// backend supports and the orphan sweep needs.
type RecordStore interface {
	summary.Store
	ListByStatus(ctx context.Context, status summary.Status) ([]summary.Record, error)
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// OpenStore builds the record store selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, clock summary.Clock) (RecordStore, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		store, err := pgstore.NewSummaryStore(ctx, pgstore.Config{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
		}, clock)
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		return store, nil
	case config.BackendSQLite:
		store, err := sqlitestore.Open(cfg.DSN, clock)
		if err != nil {
			return nil, fmt.Errorf("sqlite store init failed: %w", err)
		}
		return store, nil
	case config.BackendMemory, "":
		return memoryStorage.NewSummaryStore(clock), nil
	default:
		return nil, &summary.ConfigError{Key: "database.backend", Msg: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}

// Migrate applies schema migrations when the store has a schema.
func Migrate(ctx context.Context, store summary.Store) (bool, error) {
	m, ok := store.(migrator)
	if !ok {
		return false, nil
	}
	if err := m.Migrate(ctx); err != nil {
		return true, fmt.Errorf("migrate: %w", err)
	}
	return true, nil
}
