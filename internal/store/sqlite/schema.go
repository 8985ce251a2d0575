// Package sqlite implements store.Store on SQLite (mattn/go-sqlite3) or a remote
// libSQL database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/starford/postjournal/internal/store"
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite3"
	DriverLibSQL = "libsql"
)

const (
	schemaComponent = "postjournal"
	schemaVersion   = 1
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_versions (
	component  TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	id                  TEXT PRIMARY KEY,
	tone_guide          TEXT NOT NULL DEFAULT '',
	topics              TEXT NOT NULL DEFAULT '[]',
	api_key             TEXT NOT NULL DEFAULT '',
	onboarding_complete INTEGER NOT NULL DEFAULT 0,
	updated_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_entries (
	owner_id        TEXT NOT NULL,
	date            TEXT NOT NULL,
	entry_text      TEXT NOT NULL DEFAULT '',
	generated_ideas TEXT NOT NULL DEFAULT '[]',
	saved_indices   TEXT NOT NULL DEFAULT '{}',
	updated_at      TEXT NOT NULL,
	PRIMARY KEY (owner_id, date)
);

CREATE TABLE IF NOT EXISTS ideas (
	id             TEXT PRIMARY KEY,
	owner_id       TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL DEFAULT '',
	image_idea     TEXT NOT NULL DEFAULT '',
	content_type   TEXT NOT NULL DEFAULT 'building',
	status         TEXT NOT NULL DEFAULT '',
	status_color   TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL DEFAULT '',
	trend_source   TEXT NOT NULL DEFAULT '',
	from_date      TEXT NOT NULL DEFAULT '',
	scheduled_date TEXT,
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ideas_owner ON ideas(owner_id, created_at);

CREATE TABLE IF NOT EXISTS calendar_posts (
	id       TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	idea_id  TEXT NOT NULL REFERENCES ideas(id) ON DELETE CASCADE,
	date     TEXT NOT NULL,
	label    TEXT NOT NULL DEFAULT '',
	type     TEXT NOT NULL DEFAULT 'building',
	posted   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_calendar_owner_date ON calendar_posts(owner_id, date);
CREATE INDEX IF NOT EXISTS idx_calendar_owner_idea ON calendar_posts(owner_id, idea_id);
`

// DB is a SQL-backed store.Store.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

var _ store.Store = (*DB)(nil)

// Open opens (or creates) the database and brings the schema up to date.
func Open(driver, dsn string) (*DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if driver == DriverSQLite {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if err := migrate(context.Background(), conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SchemaVersion returns the applied schema version, 0 for an empty database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	return currentVersion(ctx, db.conn)
}

func currentVersion(ctx context.Context, q querier) (int, error) {
	var v int
	err := q.QueryRowContext(ctx, `SELECT version FROM schema_versions WHERE component = ?`, schemaComponent).Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil && strings.Contains(err.Error(), "no such table"):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("sqlite: read schema version: %w", err)
	}
	return v, nil
}

func migrate(ctx context.Context, conn *sql.DB) error {
	v, err := currentVersion(ctx, conn)
	if err != nil {
		return err
	}
	if v > schemaVersion {
		return fmt.Errorf("sqlite: schema version %d is newer than supported %d", v, schemaVersion)
	}
	if v == schemaVersion {
		return nil
	}
	if _, err := conn.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("sqlite: apply schema v1: %w", err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO schema_versions (component, version, applied_at) VALUES (?, ?, ?)
		ON CONFLICT(component) DO UPDATE SET version = excluded.version, applied_at = excluded.applied_at
	`, schemaComponent, schemaVersion, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) stamp() time.Time {
	return db.now().UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
