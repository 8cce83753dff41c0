package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/edgecode/snippetd/internal/repository"
)

var _ repository.SettingsRepository = (*DB)(nil)

// GetSetting returns the value for a key, or an empty string when the key
// has never been set. Missing keys are not an error: defaults live in the
// caller.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("sqlite: getting setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting writes a key/value pair, replacing any previous value.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting %q: %w", key, err)
	}
	return nil
}
