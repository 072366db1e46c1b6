// Package storage holds what the SQL-backed record stores share: the schema
// migrations for each dialect, the bookkeeping used to apply them, and the
// status guard used by field-scoped writes.
package storage

import (
	"fmt"
	"sort"
)

// Migration is one versioned schema change. Statements run in order inside a
// single transaction and the version is recorded in schema_migrations.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// PostgresMigrations creates the summaries table and then adds the status column,
// mirroring the two revisions the schema went through.
var PostgresMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_summaries",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS summaries (
				id BIGSERIAL PRIMARY KEY,
				url TEXT NOT NULL,
				summary TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
		},
	},
	{
		Version: 2,
		Name:    "add_summary_status",
		Statements: []string{
			`ALTER TABLE summaries ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'processing', 'completed', 'failed'))`,
			`CREATE INDEX IF NOT EXISTS idx_summaries_status ON summaries (status)`,
		},
	},
}

// SQLiteMigrations is the SQLite rendition of PostgresMigrations.
var SQLiteMigrations = []Migration{
	{
		Version: 1,
		Name:    "create_summaries",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS summaries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				url TEXT NOT NULL,
				summary TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
		},
	},
	{
		Version: 2,
		Name:    "add_summary_status",
		Statements: []string{
			`ALTER TABLE summaries ADD COLUMN status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'processing', 'completed', 'failed'))`,
			`CREATE INDEX IF NOT EXISTS idx_summaries_status ON summaries (status)`,
		},
	},
}

// CreateVersionTable is the bookkeeping table shared by both dialects.
const CreateVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Pending returns the migrations whose versions are not in applied, ordered by version.
func Pending(all []Migration, applied map[int]bool) ([]Migration, error) {
	seen := make(map[int]bool, len(all))
	out := make([]Migration, 0, len(all))
	for _, m := range all {
		if m.Version <= 0 {
			return nil, fmt.Errorf("migration %q has invalid version %d", m.Name, m.Version)
		}
		if seen[m.Version] {
			return nil, fmt.Errorf("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = true
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
