package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/edgecode/snippetd/internal/apperror"
	"github.com/edgecode/snippetd/internal/model"
	"github.com/edgecode/snippetd/internal/repository"
)

// Compile-time check that *DB satisfies the interface. If a method goes
// missing the build breaks here instead of at the call site.
var _ repository.SnippetRepository = (*DB)(nil)

const snippetColumns = `id, title, slug, type, code, active, mode, conditions, author_id, deleted, created_at, updated_at`

// Create inserts a new snippet. The database assigns the ID; the caller's
// struct is updated in place with the ID and timestamps.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	now := time.Now().UTC()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (title, slug, type, code, active, mode, conditions, author_id, deleted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.Title,
		snippet.Slug,
		snippet.Type,
		snippet.Code,
		snippet.Active,
		snippet.Mode,
		nullableText(snippet.Conditions),
		snippet.AuthorID,
		snippet.Deleted,
		snippet.CreatedAt,
		snippet.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("slug_exists",
				fmt.Sprintf("a snippet with slug %q already exists", snippet.Slug))
		}
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading snippet id: %w", err)
	}
	snippet.ID = id

	return nil
}

// GetByID retrieves a snippet by ID, trashed rows included. Callers that
// care about trash state check the Deleted flag themselves.
func (db *DB) GetByID(ctx context.Context, id int64) (*model.Snippet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id)

	snippet, err := scanSnippet(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %d: %w", id, err)
	}
	return snippet, nil
}

// GetBySlug retrieves a snippet by slug, skipping trashed rows. Slugs are
// only unique among live snippets, so including trash would be ambiguous.
func (db *DB) GetBySlug(ctx context.Context, slug string) (*model.Snippet, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE slug = ? AND deleted = 0`, slug)

	snippet, err := scanSnippet(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", slug)
		}
		return nil, fmt.Errorf("sqlite: getting snippet by slug %q: %w", slug, err)
	}
	return snippet, nil
}

// List retrieves snippets matching the filters, newest first. The id tie
// breaker keeps ordering stable when rows share a created_at second.
func (db *DB) List(ctx context.Context, f repository.Filters) ([]model.Snippet, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	where, args := buildFilterClause(f)
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets`+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		snippet, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *snippet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// Count returns the number of snippets matching the filters, ignoring
// pagination. Handlers use it for the pagination headers.
func (db *DB) Count(ctx context.Context, f repository.Filters) (int, error) {
	where, args := buildFilterClause(f)

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snippets`+where, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting snippets: %w", err)
	}
	return count, nil
}

// Update rewrites every mutable column. ID and created_at never change.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, slug = ?, type = ?, code = ?, active = ?, mode = ?,
		     conditions = ?, author_id = ?, deleted = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Title,
		snippet.Slug,
		snippet.Type,
		snippet.Code,
		snippet.Active,
		snippet.Mode,
		nullableText(snippet.Conditions),
		snippet.AuthorID,
		snippet.Deleted,
		snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("slug_exists",
				fmt.Sprintf("a snippet with slug %q already exists", snippet.Slug))
		}
		return fmt.Errorf("sqlite: updating snippet %d: %w", snippet.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", snippet.ID)
	}

	return nil
}

// Delete removes a snippet permanently. The trash flow soft-deletes via
// Update first; this is the "delete forever" path.
func (db *DB) Delete(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", id)
	}

	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnippet(s scanner) (*model.Snippet, error) {
	var snippet model.Snippet
	var conditions sql.NullString

	err := s.Scan(
		&snippet.ID,
		&snippet.Title,
		&snippet.Slug,
		&snippet.Type,
		&snippet.Code,
		&snippet.Active,
		&snippet.Mode,
		&conditions,
		&snippet.AuthorID,
		&snippet.Deleted,
		&snippet.CreatedAt,
		&snippet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	snippet.Conditions = conditions.String
	return &snippet, nil
}

// buildFilterClause turns Filters into a WHERE clause plus its arguments.
// When Deleted is unset, trashed rows are excluded: every listing surface
// except the trash view wants live rows only.
func buildFilterClause(f repository.Filters) (string, []any) {
	var clauses []string
	var args []any

	if f.Deleted != nil {
		clauses = append(clauses, "deleted = ?")
		args = append(args, *f.Deleted)
	} else {
		clauses = append(clauses, "deleted = 0")
	}
	if f.Type != nil {
		clauses = append(clauses, "type = ?")
		args = append(args, *f.Type)
	}
	if f.Active != nil {
		clauses = append(clauses, "active = ?")
		args = append(args, *f.Active)
	}
	if f.AuthorID != nil {
		clauses = append(clauses, "author_id = ?")
		args = append(args, *f.AuthorID)
	}
	if f.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR code LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// nullableText stores an empty string as NULL so "no conditions" is one
// representation in the database, not two.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation detects a UNIQUE constraint failure. The pure Go
// driver does not export a typed error for this, so the message is the
// only signal available.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
