package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/edgecode/snippetd/internal/apperror"
	"github.com/edgecode/snippetd/internal/model"
	"github.com/edgecode/snippetd/internal/repository"
	"github.com/edgecode/snippetd/internal/syntax"
)

// strPtr gives test inputs a code literal without a temp variable.
func strPtr(s string) *string { return &s }

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces.
// The services only see the interface, so they can't tell these apart
// from the sqlite versions. Each mock stores copies, never the caller's
// pointers, so a test can't accidentally mutate stored state.

type mockSnippetRepo struct {
	snippets map[int64]*model.Snippet
	nextID   int64

	// failNext, when set, makes the next call return this error.
	failNext error
}

func newMockSnippetRepo() *mockSnippetRepo {
	return &mockSnippetRepo{snippets: make(map[int64]*model.Snippet)}
}

func (m *mockSnippetRepo) fail() error {
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	return nil
}

func (m *mockSnippetRepo) Create(_ context.Context, snippet *model.Snippet) error {
	if err := m.fail(); err != nil {
		return err
	}
	for _, existing := range m.snippets {
		if !existing.Deleted && existing.Slug == snippet.Slug {
			return apperror.Conflict("slug_exists", fmt.Sprintf("a snippet with slug %q already exists", snippet.Slug))
		}
	}
	m.nextID++
	snippet.ID = m.nextID
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *mockSnippetRepo) GetByID(_ context.Context, id int64) (*model.Snippet, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	snippet, ok := m.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	result := *snippet
	return &result, nil
}

func (m *mockSnippetRepo) GetBySlug(_ context.Context, slug string) (*model.Snippet, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	for _, snippet := range m.snippets {
		if !snippet.Deleted && snippet.Slug == slug {
			result := *snippet
			return &result, nil
		}
	}
	return nil, apperror.NotFound("snippet", slug)
}

func (m *mockSnippetRepo) List(_ context.Context, f repository.Filters) ([]model.Snippet, error) {
	if err := m.fail(); err != nil {
		return nil, err
	}
	matched := m.filter(f)

	if f.Offset >= len(matched) {
		return []model.Snippet{}, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

func (m *mockSnippetRepo) Count(_ context.Context, f repository.Filters) (int, error) {
	if err := m.fail(); err != nil {
		return 0, err
	}
	return len(m.filter(f)), nil
}

// filter applies Filters the way the real store does: trash excluded by
// default, newest rows first.
func (m *mockSnippetRepo) filter(f repository.Filters) []model.Snippet {
	var matched []model.Snippet
	for _, s := range m.snippets {
		deleted := false
		if f.Deleted != nil {
			deleted = *f.Deleted
		}
		if s.Deleted != deleted {
			continue
		}
		if f.Type != nil && s.Type != *f.Type {
			continue
		}
		if f.Active != nil && s.Active != *f.Active {
			continue
		}
		if f.AuthorID != nil && s.AuthorID != *f.AuthorID {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(s.Title), needle) &&
				!strings.Contains(strings.ToLower(s.Code), needle) {
				continue
			}
		}
		matched = append(matched, *s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return matched
}

func (m *mockSnippetRepo) Update(_ context.Context, snippet *model.Snippet) error {
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.snippets[snippet.ID]; !ok {
		return apperror.NotFound("snippet", snippet.ID)
	}
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *mockSnippetRepo) Delete(_ context.Context, id int64) error {
	if err := m.fail(); err != nil {
		return err
	}
	if _, ok := m.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(m.snippets, id)
	return nil
}

type mockUserRepo struct {
	users  map[string]*model.User
	nextID int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *model.User) error {
	for _, existing := range m.users {
		if existing.Login == user.Login {
			return apperror.Conflict("login_exists", fmt.Sprintf("login %q already exists", user.Login))
		}
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *user
	return &result, nil
}

func (m *mockUserRepo) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	for _, user := range m.users {
		if user.Login == login {
			result := *user
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", login)
}

func (m *mockUserRepo) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	if githubID != 0 {
		for _, user := range m.users {
			if user.GitHubID == githubID {
				result := *user
				return &result, nil
			}
		}
	}
	return nil, apperror.NotFound("user", githubID)
}

func (m *mockUserRepo) UpdateUser(_ context.Context, user *model.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

type mockSettingsRepo struct {
	values map[string]string
}

func newMockSettingsRepo() *mockSettingsRepo {
	return &mockSettingsRepo{values: make(map[string]string)}
}

func (m *mockSettingsRepo) GetSetting(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *mockSettingsRepo) SetSetting(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

// =========================================================================
// FAKE SYNTAX CHECKER
// =========================================================================

// fakeChecker accepts everything unless rejectWith is set.
type fakeChecker struct {
	rejectWith string
	rejectLine int
}

func (c *fakeChecker) Validate(_, _ string) syntax.Result {
	if c.rejectWith != "" {
		return syntax.Result{Valid: false, Error: c.rejectWith, Line: c.rejectLine}
	}
	return syntax.Result{Valid: true}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
