// Package postgres provides the Postgres-backed summary store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/page-summarizer/internal/storage"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

const table = "summaries"

var columns = []string{"id", "url", "summary", "status", "created_at"}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
	Ping(context.Context) error
	Close()
}

// SummaryStore persists summary records in Postgres.
type SummaryStore struct {
	pool  pool
	clock summary.Clock
	psql  sq.StatementBuilderType
}

// NewSummaryStore connects a pgx pool using cfg.
func NewSummaryStore(ctx context.Context, cfg Config, clock summary.Clock) (*SummaryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewSummaryStoreWithPool(p, clock)
}

// NewSummaryStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSummaryStoreWithPool(p pool, clock summary.Clock) (*SummaryStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SummaryStore{
		pool:  p,
		clock: clock,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Migrate applies any pending schema migrations.
func (s *SummaryStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, storage.CreateVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}
	pending, err := storage.Pending(storage.PostgresMigrations, applied)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SummaryStore) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()
	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema_migrations: %w", err)
	}
	return applied, nil
}

func (s *SummaryStore) apply(ctx context.Context, m storage.Migration) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	for _, stmt := range m.Statements {
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	if _, err = tx.Exec(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Version, m.Name); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// Create inserts a pending record for url.
func (s *SummaryStore) Create(ctx context.Context, url string) (summary.Record, error) {
	query, args, err := s.psql.Insert(table).
		Columns("url", "summary", "status", "created_at").
		Values(url, "", string(summary.StatusPending), s.clock.Now()).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return summary.Record{}, fmt.Errorf("build insert: %w", err)
	}
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return summary.Record{}, fmt.Errorf("insert summary: %w", err)
	}
	return rec, nil
}

// Get fetches a record by id.
func (s *SummaryStore) Get(ctx context.Context, id int64) (summary.Record, error) {
	query, args, err := s.psql.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return summary.Record{}, fmt.Errorf("build select: %w", err)
	}
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return summary.Record{}, notFound(err, "get summary")
	}
	return rec, nil
}

// UpdateContent writes url and summary text. Status is never touched.
func (s *SummaryStore) UpdateContent(ctx context.Context, id int64, url, text string) (summary.Record, error) {
	query, args, err := s.psql.Update(table).
		Set("url", url).
		Set("summary", text).
		Where(sq.Eq{"id": id}).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return summary.Record{}, fmt.Errorf("build update: %w", err)
	}
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return summary.Record{}, notFound(err, "update summary")
	}
	return rec, nil
}

// SetStatus moves a record to status to when its current status allows it.
func (s *SummaryStore) SetStatus(ctx context.Context, id int64, to summary.Status) (summary.Record, error) {
	return s.transition(ctx, s.psql.Update(table).Set("status", string(to)), id, to)
}

// SetOutcome moves a record to status to and writes its summary text in one statement.
func (s *SummaryStore) SetOutcome(ctx context.Context, id int64, to summary.Status, text string) (summary.Record, error) {
	return s.transition(ctx, s.psql.Update(table).Set("status", string(to)).Set("summary", text), id, to)
}

func (s *SummaryStore) transition(ctx context.Context, builder sq.UpdateBuilder, id int64, to summary.Status) (summary.Record, error) {
	query, args, err := builder.
		Where(sq.Eq{"id": id}).
		Where(storage.StatusGuard(to)).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return summary.Record{}, fmt.Errorf("build status update: %w", err)
	}
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return summary.Record{}, fmt.Errorf("set %s status: %w", to, err)
	}
	// No row matched: either the record is gone or its status forbids the move.
	if _, err := s.Get(ctx, id); err != nil {
		return summary.Record{}, err
	}
	return summary.Record{}, summary.ErrInvalidTransition
}

// Delete removes a record and returns it.
func (s *SummaryStore) Delete(ctx context.Context, id int64) (summary.Record, error) {
	query, args, err := s.psql.Delete(table).Where(sq.Eq{"id": id}).Suffix(returning()).ToSql()
	if err != nil {
		return summary.Record{}, fmt.Errorf("build delete: %w", err)
	}
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return summary.Record{}, notFound(err, "delete summary")
	}
	return rec, nil
}

// List returns every record ordered by id.
func (s *SummaryStore) List(ctx context.Context) ([]summary.Record, error) {
	return s.list(ctx, s.psql.Select(columns...).From(table).OrderBy("id"))
}

// ListByStatus returns records currently in status, ordered by id.
func (s *SummaryStore) ListByStatus(ctx context.Context, status summary.Status) ([]summary.Record, error) {
	return s.list(ctx, s.psql.Select(columns...).From(table).Where(sq.Eq{"status": string(status)}).OrderBy("id"))
}

func (s *SummaryStore) list(ctx context.Context, builder sq.SelectBuilder) ([]summary.Record, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()
	out := []summary.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

// Ping checks database connectivity.
func (s *SummaryStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *SummaryStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func returning() string {
	return "RETURNING id, url, summary, status, created_at"
}

func scanRecord(row pgx.Row) (summary.Record, error) {
	var (
		rec    summary.Record
		status string
	)
	if err := row.Scan(&rec.ID, &rec.URL, &rec.Summary, &status, &rec.CreatedAt); err != nil {
		return summary.Record{}, err
	}
	parsed, err := summary.ParseStatus(status)
	if err != nil {
		return summary.Record{}, err
	}
	rec.Status = parsed
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return summary.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
