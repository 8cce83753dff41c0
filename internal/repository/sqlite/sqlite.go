// Package sqlite implements the repository interfaces on an embedded
// SQLite database.
//
// The driver is modernc.org/sqlite, a pure Go translation of SQLite, so
// builds need no C toolchain and tests can run against ":memory:".
// A sql.DB is a connection pool, not a single connection; the pool is
// shared by all three repositories in this package.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import: the driver registers itself with database/sql under
	// the name "sqlite" at init time.
	_ "modernc.org/sqlite"
)

// DB wraps the connection pool and implements SnippetRepository,
// UserRepository and SettingsRepository.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an in-memory database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time, and ":memory:" databases exist
	// per connection, so the pool is capped at a single connection.
	conn.SetMaxOpenConns(1)

	// Surface bad paths and permission problems now instead of on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress, which a
	// web server needs. Foreign keys are off by default in SQLite.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Callers should defer this right
// after New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe
// to run on every start; column additions go through addColumnIfNotExists
// so upgrades from older databases stay idempotent.
func (db *DB) migrate() error {
	// Snippets. The slug has a partial unique index: trashed rows keep
	// their slug but stop reserving it, so a new snippet can take it over.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT NOT NULL,
			slug       TEXT NOT NULL,
			type       TEXT NOT NULL,
			code       TEXT NOT NULL DEFAULT '',
			active     INTEGER NOT NULL DEFAULT 0,
			mode       TEXT NOT NULL DEFAULT 'auto_insert',
			conditions TEXT,
			deleted    INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_snippets_slug
			ON snippets(slug) WHERE deleted = 0;
		CREATE INDEX IF NOT EXISTS idx_snippets_type ON snippets(type);
		CREATE INDEX IF NOT EXISTS idx_snippets_active ON snippets(active, deleted);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	// Users. github_id is unique but 0 for password-only accounts, hence
	// the partial index.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			github_id     INTEGER NOT NULL DEFAULT 0,
			login         TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
			ON users(github_id) WHERE github_id != 0;
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// author_id arrived after the initial schema. ALTER TABLE errors when
	// the column exists, so the add goes through the pragma check.
	if err := db.addColumnIfNotExists("snippets", "author_id",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding author_id to snippets: %w", err)
	}
	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_snippets_author_id ON snippets(author_id);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets author_id index: %w", err)
	}

	// Settings. A plain key/value table for runtime configuration that
	// must survive restarts (AI key, feature toggles).
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating settings table: %w", err)
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE migrations idempotent: SQLite
// errors when the column already exists, so pragma_table_info is checked
// first.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
