// Package service contains the business logic layer.
//
// Handlers parse HTTP and write responses; services validate, enforce
// rules, and orchestrate; repositories talk to the database. Services
// depend on the repository interfaces, never on sqlite directly, so tests
// substitute in-memory mocks.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgecode/snippetd/internal/apperror"
	"github.com/edgecode/snippetd/internal/conditions"
	"github.com/edgecode/snippetd/internal/model"
	"github.com/edgecode/snippetd/internal/repository"
	"github.com/edgecode/snippetd/internal/slug"
	"github.com/edgecode/snippetd/internal/syntax"
)

const (
	MaxTitleLength   = 200
	MaxCodeLength    = 500000 // ~500KB, generous even for bundled JS
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// SyntaxChecker is the slice of the syntax validator the service needs.
type SyntaxChecker interface {
	Validate(code, typ string) syntax.Result
}

// SnippetService handles snippet business logic: validation, slug
// management, lifecycle (trash/restore), and condition matching.
type SnippetService struct {
	repo    repository.SnippetRepository
	checker SyntaxChecker
	logger  *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, checker SyntaxChecker, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:    repo,
		checker: checker,
		logger:  logger,
	}
}

// SnippetInput carries the client-settable fields for create and update.
// On update, nil pointers and empty strings mean "leave unchanged". Code
// is a pointer because empty code is a legitimate value to store;
// Conditions nil means unchanged, a zero Set clears them.
type SnippetInput struct {
	Title      string
	Slug       string
	Type       string
	Code       *string
	Active     *bool
	Mode       string
	Conditions *conditions.Set
}

// Create validates and saves a new snippet. The slug is derived from the
// title unless one is supplied; a clash with a live snippet is a conflict.
func (s *SnippetService) Create(ctx context.Context, authorID string, in SnippetInput) (*model.Snippet, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "snippet title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("snippet title must be %d characters or less", MaxTitleLength))
	}

	typ := strings.ToLower(strings.TrimSpace(in.Type))
	if !model.ValidType(typ) {
		return nil, apperror.ValidationFailed("type", "type must be one of php, js, css, html")
	}

	mode := in.Mode
	if mode == "" {
		mode = model.ModeAutoInsert
	}
	if !model.ValidMode(mode) {
		return nil, apperror.ValidationFailed("mode", "mode must be auto_insert or shortcode")
	}

	var code string
	if in.Code != nil {
		code = *in.Code
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	if result := s.checker.Validate(code, typ); !result.Valid {
		return nil, apperror.SyntaxInvalid(result.Error, result.Line)
	}

	slugValue := strings.TrimSpace(in.Slug)
	if slugValue == "" {
		slugValue = slug.Make(title)
	} else {
		slugValue = slug.Make(slugValue)
	}
	if slugValue == "" {
		return nil, apperror.ValidationFailed("slug",
			"a slug could not be derived from the title; provide one explicitly")
	}

	if err := s.ensureSlugFree(ctx, slugValue, 0); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Title:      title,
		Slug:       slugValue,
		Type:       typ,
		Code:       code,
		Mode:       mode,
		AuthorID:   authorID,
		Conditions: encodeConditions(in.Conditions),
	}
	if in.Active != nil {
		snippet.Active = *in.Active
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.Int64("id", snippet.ID),
		slog.String("slug", snippet.Slug),
		slog.String("type", snippet.Type),
	)

	return snippet, nil
}

// GetByID retrieves a snippet, trashed ones included so the trash view
// and restore work.
func (s *SnippetService) GetByID(ctx context.Context, id int64) (*model.Snippet, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "snippet ID must be a positive integer")
	}
	return s.repo.GetByID(ctx, id)
}

// ListParams narrows and pages List results.
type ListParams struct {
	Type    string
	Active  *bool
	Deleted *bool
	Search  string
	Page    int
	PerPage int
}

// List returns one page of snippets plus the total match count for the
// pagination headers.
func (s *SnippetService) List(ctx context.Context, p ListParams) ([]model.Snippet, int, error) {
	perPage := p.PerPage
	if perPage <= 0 {
		perPage = DefaultListLimit
	}
	if perPage > MaxListLimit {
		perPage = MaxListLimit
	}
	page := p.Page
	if page < 1 {
		page = 1
	}

	f := repository.Filters{
		Active:  p.Active,
		Deleted: p.Deleted,
		Search:  strings.TrimSpace(p.Search),
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	}
	if typ := strings.ToLower(strings.TrimSpace(p.Type)); typ != "" {
		if !model.ValidType(typ) {
			return nil, 0, apperror.ValidationFailed("type", "type must be one of php, js, css, html")
		}
		f.Type = &typ
	}

	snippets, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("listing snippets: %w", err)
	}

	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("counting snippets: %w", err)
	}

	return snippets, total, nil
}

// Update applies the input to an existing snippet. Empty Title/Type/Mode
// and nil Code/Active/Conditions leave the field unchanged. Syntax is
// re-validated only when the update carries code.
func (s *SnippetService) Update(ctx context.Context, id int64, in SnippetInput) (*model.Snippet, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		if len(title) > MaxTitleLength {
			return nil, apperror.ValidationFailed("title",
				fmt.Sprintf("snippet title must be %d characters or less", MaxTitleLength))
		}
		snippet.Title = title
	}

	if typ := strings.ToLower(strings.TrimSpace(in.Type)); typ != "" {
		if !model.ValidType(typ) {
			return nil, apperror.ValidationFailed("type", "type must be one of php, js, css, html")
		}
		snippet.Type = typ
	}

	if in.Mode != "" {
		if !model.ValidMode(in.Mode) {
			return nil, apperror.ValidationFailed("mode", "mode must be auto_insert or shortcode")
		}
		snippet.Mode = in.Mode
	}

	if in.Code != nil {
		if len(*in.Code) > MaxCodeLength {
			return nil, apperror.ValidationFailed("code",
				fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
		}
		snippet.Code = *in.Code
		if result := s.checker.Validate(snippet.Code, snippet.Type); !result.Valid {
			return nil, apperror.SyntaxInvalid(result.Error, result.Line)
		}
	}

	if newSlug := strings.TrimSpace(in.Slug); newSlug != "" {
		newSlug = slug.Make(newSlug)
		if newSlug == "" {
			return nil, apperror.ValidationFailed("slug", "slug must contain letters or digits")
		}
		if newSlug != snippet.Slug {
			if err := s.ensureSlugFree(ctx, newSlug, snippet.ID); err != nil {
				return nil, err
			}
			snippet.Slug = newSlug
		}
	}

	if in.Active != nil {
		snippet.Active = *in.Active
	}
	if in.Conditions != nil {
		snippet.Conditions = encodeConditions(in.Conditions)
	}

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated", slog.Int64("id", snippet.ID), slog.String("slug", snippet.Slug))
	return snippet, nil
}

// Toggle flips the active flag and returns the updated snippet. Trashed
// snippets can't be toggled; restore them first.
func (s *SnippetService) Toggle(ctx context.Context, id int64) (*model.Snippet, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if snippet.Deleted {
		return nil, apperror.ValidationFailed("id", "cannot toggle a trashed snippet")
	}

	snippet.Active = !snippet.Active
	if err := s.repo.Update(ctx, snippet); err != nil {
		return nil, fmt.Errorf("toggling snippet: %w", err)
	}

	s.logger.Info("snippet toggled",
		slog.Int64("id", snippet.ID),
		slog.Bool("active", snippet.Active),
	)
	return snippet, nil
}

// Delete removes a snippet permanently. It returns the snippet as it
// was before deletion so the handler can echo the prior representation.
// Reversible removal goes through Trash instead.
func (s *SnippetService) Delete(ctx context.Context, id int64) (*model.Snippet, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := *snippet

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("deleting snippet: %w", err)
	}
	s.logger.Info("snippet deleted", slog.Int64("id", id))
	return &previous, nil
}

// Trash soft-deletes a snippet: it disappears from normal listings and
// stops rendering, but keeps its row so Restore can bring it back.
// Trashing releases the slug for reuse. Trashing twice is a no-op.
func (s *SnippetService) Trash(ctx context.Context, id int64) (*model.Snippet, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if snippet.Deleted {
		return snippet, nil
	}

	snippet.Deleted = true
	snippet.Active = false
	if err := s.repo.Update(ctx, snippet); err != nil {
		return nil, fmt.Errorf("trashing snippet: %w", err)
	}

	s.logger.Info("snippet trashed", slog.Int64("id", id))
	return snippet, nil
}

// Restore brings a trashed snippet back, inactive. If its slug has been
// taken over in the meantime the restore is a conflict.
func (s *SnippetService) Restore(ctx context.Context, id int64) (*model.Snippet, error) {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !snippet.Deleted {
		return snippet, nil
	}

	if err := s.ensureSlugFree(ctx, snippet.Slug, snippet.ID); err != nil {
		return nil, err
	}

	snippet.Deleted = false
	snippet.Active = false
	if err := s.repo.Update(ctx, snippet); err != nil {
		return nil, fmt.Errorf("restoring snippet: %w", err)
	}

	s.logger.Info("snippet restored", slog.Int64("id", id))
	return snippet, nil
}

// BulkResult reports what a bulk action did.
type BulkResult struct {
	Action    string   `json:"action"`
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Bulk applies one action to many snippets. Failures on individual rows
// don't abort the batch; they are collected and reported.
func (s *SnippetService) Bulk(ctx context.Context, action string, ids []int64) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, apperror.ValidationFailed("ids", "at least one snippet ID is required")
	}

	result := &BulkResult{Action: action}
	for _, id := range ids {
		var err error
		switch action {
		case "activate", "deactivate":
			err = s.setActive(ctx, id, action == "activate")
		case "trash":
			_, err = s.Trash(ctx, id)
		case "restore":
			_, err = s.Restore(ctx, id)
		case "delete":
			_, err = s.Delete(ctx, id)
		default:
			return nil, apperror.ValidationFailed("action",
				"action must be one of activate, deactivate, trash, restore, delete")
		}

		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("snippet %d: %v", id, err))
			continue
		}
		result.Processed++
	}

	s.logger.Info("bulk action applied",
		slog.String("action", action),
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *SnippetService) setActive(ctx context.Context, id int64, active bool) error {
	snippet, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if snippet.Deleted {
		return apperror.ValidationFailed("id", "cannot activate a trashed snippet")
	}
	if snippet.Active == active {
		return nil
	}
	snippet.Active = active
	return s.repo.Update(ctx, snippet)
}

// Render returns the active auto-insert snippets whose conditions match
// the request context, in creation order (oldest first) so output order
// is stable.
func (s *SnippetService) Render(ctx context.Context, rctx conditions.RequestContext) ([]model.Snippet, error) {
	active := true
	var candidates []model.Snippet
	for offset := 0; ; offset += MaxListLimit {
		page, err := s.repo.List(ctx, repository.Filters{
			Active: &active,
			Limit:  MaxListLimit,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("loading active snippets: %w", err)
		}
		candidates = append(candidates, page...)
		if len(page) < MaxListLimit {
			break
		}
	}

	matched := make([]model.Snippet, 0, len(candidates))
	// List is newest first; walk backwards for insertion order.
	for i := len(candidates) - 1; i >= 0; i-- {
		snippet := candidates[i]
		if snippet.Mode != model.ModeAutoInsert {
			continue
		}
		set := conditions.Parse(snippet.Conditions)
		if set.Matches(rctx) {
			matched = append(matched, snippet)
		}
	}

	return matched, nil
}

// Shortcode resolves a snippet by slug for embedding. Only live, active
// snippets resolve; anything else is a 404 to avoid leaking drafts.
func (s *SnippetService) Shortcode(ctx context.Context, slugValue string) (*model.Snippet, error) {
	slugValue = strings.TrimSpace(slugValue)
	if slugValue == "" {
		return nil, apperror.ValidationFailed("slug", "slug is required")
	}

	snippet, err := s.repo.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if !snippet.Active {
		return nil, apperror.NotFound("snippet", slugValue)
	}

	return snippet, nil
}

// ConditionOptions lists the values the condition editor can offer.
type ConditionOptions struct {
	PageTypes     []conditions.Option `json:"page_types"`
	DeviceTypes   []conditions.Option `json:"device_types"`
	LoginStatuses []conditions.Option `json:"login_statuses"`
	UserRoles     []conditions.Option `json:"user_roles"`
}

func (s *SnippetService) ConditionOptions() ConditionOptions {
	return ConditionOptions{
		PageTypes:     conditions.PageTypes(),
		DeviceTypes:   conditions.DeviceTypes(),
		LoginStatuses: conditions.LoginStatuses(),
		UserRoles:     conditions.UserRoles(),
	}
}

// ensureSlugFree checks that no live snippet other than excludeID holds
// the slug.
func (s *SnippetService) ensureSlugFree(ctx context.Context, slugValue string, excludeID int64) error {
	existing, err := s.repo.GetBySlug(ctx, slugValue)
	if err != nil {
		// Not found means the slug is free.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("checking slug %q: %w", slugValue, err)
	}
	if existing.ID == excludeID {
		return nil
	}
	return apperror.Conflict("slug_exists",
		fmt.Sprintf("a snippet with slug %q already exists", slugValue))
}

// encodeConditions serializes a condition set, storing nothing for nil or
// zero sets so unconditioned snippets stay NULL in the database.
func encodeConditions(set *conditions.Set) string {
	if set == nil || set.IsZero() {
		return ""
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return ""
	}
	return string(raw)
}
