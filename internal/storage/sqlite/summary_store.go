// Package sqlite provides a single-file summary store on the pure-Go SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/page-summarizer/internal/storage"
	"github.com/JakeFAU/page-summarizer/internal/summary"
)

const table = "summaries"

var columns = []string{"id", "url", "summary", "status", "created_at"}

// SummaryStore persists summary records in SQLite.
type SummaryStore struct {
	db    *sql.DB
	clock summary.Clock
	sql   sq.StatementBuilderType
}

// busyTimeout is how long a connection waits on another writer's lock before
// reporting SQLITE_BUSY.
const busyTimeout = 5 * time.Second

// Open opens (creating if needed) the database at dsn. Every pooled connection
// gets a busy timeout and foreign keys through DSN pragmas; file databases also
// run in WAL mode so readers never block the single writer. In-memory databases
// are pinned to one connection so every query sees the same data.
func Open(dsn string, clock summary.Clock) (*SummaryStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	inMemory := isMemoryDSN(dsn)
	db, err := sql.Open("sqlite", withPragmas(dsn, inMemory))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if inMemory {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	return &SummaryStore{
		db:    db,
		clock: clock,
		sql:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// withPragmas appends the connection pragmas the driver applies on every new connection.
func withPragmas(dsn string, inMemory bool) string {
	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
		"_pragma=foreign_keys(1)",
	}
	if !inMemory {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_txlock=immediate")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

// Migrate applies any pending schema migrations.
func (s *SummaryStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, storage.CreateVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied := map[int]bool{}
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("query schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close schema_migrations rows: %w", err)
	}

	pending, err := storage.Pending(storage.SQLiteMigrations, applied)
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

func (s *SummaryStore) apply(ctx context.Context, m storage.Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// Create inserts a pending record for url.
func (s *SummaryStore) Create(ctx context.Context, url string) (summary.Record, error) {
	query, args, err := s.sql.Insert(table).
		Columns("url", "summary", "status", "created_at").
		Values(url, "", string(summary.StatusPending), formatTime(s.clock.Now())).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return summary.Record{}, fmt.Errorf("build insert: %w", err)
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return summary.Record{}, fmt.Errorf("insert summary: %w", err)
	}
	return rec, nil
}

// Get fetches a record by id.
func (s *SummaryStore) Get(ctx context.Context, id int64) (summary.Record, error) {
	query, args, err := s.sql.Select(columns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return summary.Record{}, fmt.Errorf("build select: %w", err)
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return summary.Record{}, notFound(err, "get summary")
	}
	return rec, nil
}

// UpdateContent writes url and summary text. Status is never touched.
func (s *SummaryStore) UpdateContent(ctx context.Context, id int64, url, text string) (summary.Record, error) {
	query, args, err := s.sql.Update(table).
		Set("url", url).
		Set("summary", text).
		Where(sq.Eq{"id": id}).
		Suffix(returning()).
		ToSql()
	if err != nil {
		return summary.Record{}, fmt.Errorf("build update: %w", err)
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return summary.Record{}, notFound(err, "update summary")
	}
	return rec, nil
}

// SetStatus moves a record to status to when its current status allows it.
func (s *SummaryStore) SetStatus(ctx context.Context, id int64, to summary.Status) (summary.Record, error) {
	return s.transition(ctx, s.sql.Update(table).Set("status", string(to)), id, to)
}

// SetOutcome moves a record to status to and writes its summary text in one statement.
func (s *SummaryStore) SetOutcome(ctx context.Context, id int64, to summary.Status, text string) (summary.Record, error) {
	return s.transition(ctx, s.sql.Update(table).Set("status", string(to)).Set("summary", text), id, to)
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
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return summary.Record{}, fmt.Errorf("set %s status: %w", to, err)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return summary.Record{}, err
	}
	return summary.Record{}, summary.ErrInvalidTransition
}

// Delete removes a record and returns it.
func (s *SummaryStore) Delete(ctx context.Context, id int64) (summary.Record, error) {
	query, args, err := s.sql.Delete(table).Where(sq.Eq{"id": id}).Suffix(returning()).ToSql()
	if err != nil {
		return summary.Record{}, fmt.Errorf("build delete: %w", err)
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return summary.Record{}, notFound(err, "delete summary")
	}
	return rec, nil
}

// List returns every record ordered by id.
func (s *SummaryStore) List(ctx context.Context) ([]summary.Record, error) {
	return s.list(ctx, s.sql.Select(columns...).From(table).OrderBy("id"))
}

// ListByStatus returns records currently in status, ordered by id.
func (s *SummaryStore) ListByStatus(ctx context.Context, status summary.Status) ([]summary.Record, error) {
	return s.list(ctx, s.sql.Select(columns...).From(table).Where(sq.Eq{"status": string(status)}).OrderBy("id"))
}

func (s *SummaryStore) list(ctx context.Context, builder sq.SelectBuilder) ([]summary.Record, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
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

// Ping checks that the database file is reachable.
func (s *SummaryStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *SummaryStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func returning() string {
	return "RETURNING id, url, summary, status, created_at"
}

func scanRecord(row scanner) (summary.Record, error) {
	var (
		rec     summary.Record
		status  string
		created string
	)
	if err := row.Scan(&rec.ID, &rec.URL, &rec.Summary, &status, &created); err != nil {
		return summary.Record{}, err
	}
	parsed, err := summary.ParseStatus(status)
	if err != nil {
		return summary.Record{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return summary.Record{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	rec.Status = parsed
	rec.CreatedAt = ts
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return summary.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
