package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgecode/snippetd/internal/apperror"
	"github.com/edgecode/snippetd/internal/conditions"
	"github.com/edgecode/snippetd/internal/format"
	"github.com/edgecode/snippetd/internal/model"
	"github.com/edgecode/snippetd/internal/repository"
	"github.com/edgecode/snippetd/internal/slug"
)

// exportVersion is the envelope version written by Export. Import accepts
// anything; the version exists so a future schema change can branch on it.
const exportVersion = "1.0"

// TransferService handles bulk import and export of snippets. Imports
// accept the native envelope as well as the WPCode and Code Snippets
// export formats, normalized by the format package before insertion.
type TransferService struct {
	repo    repository.SnippetRepository
	siteURL string
	logger  *slog.Logger
}

func NewTransferService(repo repository.SnippetRepository, siteURL string, logger *slog.Logger) *TransferService {
	return &TransferService{
		repo:    repo,
		siteURL: siteURL,
		logger:  logger,
	}
}

// Export collects every non-trashed snippet into a portable document.
// exportedBy is the login of the requesting user, recorded for provenance.
func (s *TransferService) Export(ctx context.Context, exportedBy string) (*format.Document, error) {
	return s.exportFiltered(ctx, exportedBy, nil)
}

// ExportByIDs exports only the named snippets. Unknown or trashed IDs are
// silently skipped so a stale selection in the UI doesn't fail the whole
// download.
func (s *TransferService) ExportByIDs(ctx context.Context, exportedBy string, ids []int64) (*format.Document, error) {
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return s.exportFiltered(ctx, exportedBy, wanted)
}

func (s *TransferService) exportFiltered(ctx context.Context, exportedBy string, wanted map[int64]bool) (*format.Document, error) {
	var (
		records []format.Record
		offset  int
	)
	for {
		page, err := s.repo.List(ctx, repository.Filters{Limit: MaxListLimit, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("listing snippets for export: %w", err)
		}
		for _, sn := range page {
			if wanted != nil && !wanted[sn.ID] {
				continue
			}
			records = append(records, snippetToRecord(sn))
		}
		if len(page) < MaxListLimit {
			break
		}
		offset += MaxListLimit
	}

	return &format.Document{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		ExportedBy: exportedBy,
		SiteURL:    s.siteURL,
		Snippets:   records,
	}, nil
}

func snippetToRecord(sn model.Snippet) format.Record {
	rec := format.Record{
		Title:  sn.Title,
		Slug:   sn.Slug,
		Type:   sn.Type,
		Code:   sn.Code,
		Active: sn.Active,
		Mode:   sn.Mode,
	}
	if set := conditions.Parse(sn.Conditions); !set.IsZero() {
		rec.Conditions = &set
	}
	return rec
}

// ImportOptions controls how slug collisions and activation are handled.
// SkipDuplicates and Overwrite are mutually exclusive; when neither is
// set a colliding record fails and the rest continue.
type ImportOptions struct {
	SkipDuplicates     bool `json:"skip_duplicates"`
	Overwrite          bool `json:"overwrite"`
	DeactivateOnImport bool `json:"deactivate_on_import"`
}

// ImportResult summarizes one import run. Messages carries one line per
// skipped or failed record so the caller can show what happened.
type ImportResult struct {
	Format   string   `json:"format"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Messages []string `json:"messages,omitempty"`
}

// Import detects the payload format, converts it to the native shape, and
// inserts record by record. One bad record never aborts the run.
func (s *TransferService) Import(ctx context.Context, raw []byte, authorID string, opts ImportOptions) (*ImportResult, error) {
	if len(raw) == 0 {
		return nil, apperror.ValidationFailed("file", "import file is empty")
	}
	if opts.SkipDuplicates && opts.Overwrite {
		return nil, apperror.ValidationFailed("options", "skip_duplicates and overwrite cannot both be set")
	}

	// Unknown payloads are not rejected here. They pass through conversion
	// unchanged and each record stands or falls on its own validation.
	f := format.Detect(raw)

	doc, err := format.Convert(raw, f)
	if err != nil {
		return nil, apperror.ValidationFailed("file", "could not parse import file: "+err.Error())
	}
	if len(doc.Snippets) == 0 {
		return nil, apperror.ValidationFailed("file", "import file contains no snippets")
	}

	result := &ImportResult{Format: f.Name()}
	for i, rec := range doc.Snippets {
		if err := s.importRecord(ctx, rec, authorID, opts); err != nil {
			var skip *skippedError
			if errors.As(err, &skip) {
				result.Skipped++
				result.Messages = append(result.Messages, skip.Error())
				continue
			}
			result.Failed++
			result.Messages = append(result.Messages, fmt.Sprintf("record %d (%s): %v", i+1, recordLabel(rec), err))
			continue
		}
		result.Imported++
	}

	s.logger.Info("import finished",
		slog.String("format", result.Format),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// skippedError marks a record intentionally left alone, as opposed to one
// that failed.
type skippedError struct {
	msg string
}

func (e *skippedError) Error() string { return e.msg }

func (s *TransferService) importRecord(ctx context.Context, rec format.Record, authorID string, opts ImportOptions) error {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		title = "Imported Snippet"
	}
	if len(title) > MaxTitleLength {
		title = title[:MaxTitleLength]
	}
	if !model.ValidType(rec.Type) {
		return fmt.Errorf("unknown type %q", rec.Type)
	}
	if len(rec.Code) > MaxCodeLength {
		return errors.New("code exceeds the maximum length")
	}

	slugValue := strings.TrimSpace(rec.Slug)
	if slugValue == "" {
		slugValue = slug.Make(title)
	}
	if slugValue == "" {
		return errors.New("record has no usable slug")
	}

	mode := rec.Mode
	if !model.ValidMode(mode) {
		mode = model.ModeAutoInsert
	}

	active := rec.Active
	if opts.DeactivateOnImport {
		active = false
	}

	existing, err := s.repo.GetBySlug(ctx, slugValue)
	switch {
	case err == nil:
		if opts.SkipDuplicates {
			return &skippedError{msg: fmt.Sprintf("record %q: slug %q already exists, skipped", title, slugValue)}
		}
		if !opts.Overwrite {
			return apperror.Conflict("slug_exists", fmt.Sprintf("slug %q already exists", slugValue))
		}
		existing.Title = title
		existing.Type = rec.Type
		existing.Code = rec.Code
		existing.Active = active
		existing.Mode = mode
		existing.Conditions = encodeConditions(rec.Conditions)
		return s.repo.Update(ctx, existing)
	case errors.Is(err, apperror.ErrNotFound):
		// Slug is free, fall through to create.
	default:
		return err
	}

	return s.repo.Create(ctx, &model.Snippet{
		Title:      title,
		Slug:       slugValue,
		Type:       rec.Type,
		Code:       rec.Code,
		Active:     active,
		Mode:       mode,
		Conditions: encodeConditions(rec.Conditions),
		AuthorID:   authorID,
	})
}

func recordLabel(rec format.Record) string {
	if t := strings.TrimSpace(rec.Title); t != "" {
		return t
	}
	if rec.Slug != "" {
		return rec.Slug
	}
	return "untitled"
}
