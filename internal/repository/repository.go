// Package repository defines the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite);
// tests substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/edgecode/snippetd/internal/model"
)

// Filters narrows List and Count queries. Nil pointer fields mean
// "don't filter on this". Deleted defaults to excluding trashed rows
// when nil.
type Filters struct {
	Type     *string
	Active   *bool
	AuthorID *string
	Deleted  *bool
	Search   string

	Limit  int
	Offset int
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id int64) (*model.Snippet, error)
	// GetBySlug only considers rows that are not trashed.
	GetBySlug(ctx context.Context, slug string) (*model.Snippet, error)
	List(ctx context.Context, f Filters) ([]model.Snippet, error)
	Count(ctx context.Context, f Filters) (int, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	// Delete removes the row permanently. Soft deletion goes through
	// Update with the Deleted flag set.
	Delete(ctx context.Context, id int64) error
}

// UserRepository methods carry the User suffix so one sqlite.DB can
// implement this interface alongside SnippetRepository.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

// SettingsRepository is a small key/value store for runtime configuration
// such as the AI API key. GetSetting returns an empty string for unknown
// keys rather than an error.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}
