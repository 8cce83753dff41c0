package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/edgecode/snippetd/internal/apperror"
	"github.com/edgecode/snippetd/internal/conditions"
)

func newTestTransferService(t *testing.T) (*TransferService, *SnippetService, *mockSnippetRepo) {
	t.Helper()
	repo := newMockSnippetRepo()
	snippets := NewSnippetService(repo, &fakeChecker{}, testLogger())
	transfer := NewTransferService(repo, "https://snippets.example.com", testLogger())
	return transfer, snippets, repo
}

// =========================================================================
// EXPORT TESTS
// =========================================================================

func TestExport_Envelope(t *testing.T) {
	transfer, snippets, _ := newTestTransferService(t)
	active := true
	mustCreate(t, snippets, SnippetInput{Title: "Header CSS", Type: "css", Code: strPtr("h1{}"), Active: &active})
	mustCreate(t, snippets, SnippetInput{
		Title:      "Mobile Banner",
		Type:       "html",
		Conditions: &conditions.Set{DeviceType: []string{"mobile"}},
	})

	doc, err := transfer.Export(context.Background(), "admin")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if doc.Version != "1.0" {
		t.Errorf("Version = %q, want %q", doc.Version, "1.0")
	}
	if doc.ExportedBy != "admin" {
		t.Errorf("ExportedBy = %q, want %q", doc.ExportedBy, "admin")
	}
	if doc.SiteURL != "https://snippets.example.com" {
		t.Errorf("SiteURL = %q", doc.SiteURL)
	}
	if len(doc.Snippets) != 2 {
		t.Fatalf("len(Snippets) = %d, want 2", len(doc.Snippets))
	}

	var banner bool
	for _, rec := range doc.Snippets {
		if rec.Slug == "mobile-banner" {
			banner = true
			if rec.Conditions == nil || len(rec.Conditions.DeviceType) != 1 {
				t.Errorf("conditions not carried into export: %+v", rec.Conditions)
			}
		}
	}
	if !banner {
		t.Error("mobile-banner missing from export")
	}
}

func TestExport_ExcludesTrash(t *testing.T) {
	transfer, snippets, _ := newTestTransferService(t)
	keep := mustCreate(t, snippets, SnippetInput{Title: "Keep", Type: "js"})
	binned := mustCreate(t, snippets, SnippetInput{Title: "Binned", Type: "js"})
	if _, err := snippets.Trash(context.Background(), binned.ID); err != nil {
		t.Fatalf("Trash() error = %v", err)
	}

	doc, err := transfer.Export(context.Background(), "admin")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(doc.Snippets) != 1 || doc.Snippets[0].Slug != keep.Slug {
		t.Errorf("Snippets = %+v, want only %q", doc.Snippets, keep.Slug)
	}
}

func TestExportByIDs_SkipsUnknown(t *testing.T) {
	transfer, snippets, _ := newTestTransferService(t)
	a := mustCreate(t, snippets, SnippetInput{Title: "A", Type: "js"})
	mustCreate(t, snippets, SnippetInput{Title: "B", Type: "js"})

	doc, err := transfer.ExportByIDs(context.Background(), "admin", []int64{a.ID, 999})
	if err != nil {
		t.Fatalf("ExportByIDs() error = %v", err)
	}
	if len(doc.Snippets) != 1 || doc.Snippets[0].Slug != "a" {
		t.Errorf("Snippets = %+v, want only slug %q", doc.Snippets, "a")
	}
}

// =========================================================================
// IMPORT TESTS
// =========================================================================

func TestImport_NativeRoundTrip(t *testing.T) {
	source, sourceSnippets, _ := newTestTransferService(t)
	active := true
	mustCreate(t, sourceSnippets, SnippetInput{
		Title:  "Footer Script",
		Type:   "js",
		Code:   strPtr("console.log(1);"),
		Active: &active,
		Conditions: &conditions.Set{
			PageType:    []string{"home"},
			LoginStatus: "logged_in",
		},
	})

	doc, err := source.Export(context.Background(), "admin")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	target, _, targetRepo := newTestTransferService(t)
	result, err := target.Import(context.Background(), raw, "importer", ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if result.Format != "Edge Code Snippets" {
		t.Errorf("Format = %q", result.Format)
	}
	if result.Imported != 1 || result.Failed != 0 || result.Skipped != 0 {
		t.Errorf("result = %+v, want 1 imported", result)
	}

	imported, err := targetRepo.GetBySlug(context.Background(), "footer-script")
	if err != nil {
		t.Fatalf("imported snippet missing: %v", err)
	}
	if imported.Code != "console.log(1);" || !imported.Active {
		t.Errorf("imported = %+v, want code and active preserved", imported)
	}
	set := conditions.Parse(imported.Conditions)
	if len(set.PageType) != 1 || set.LoginStatus != "logged_in" {
		t.Errorf("conditions = %+v, want round-tripped rule", set)
	}
	if imported.AuthorID != "importer" {
		t.Errorf("AuthorID = %q, want %q", imported.AuthorID, "importer")
	}
}

func TestImport_WPCodeFormat(t *testing.T) {
	transfer, _, repo := newTestTransferService(t)
	raw := []byte(`[
		{"title": "Tracking Pixel", "code": "console.log('x');", "code_type": "javascript", "auto_insert": 1, "location": "frontend"}
	]`)

	result, err := transfer.Import(context.Background(), raw, "importer", ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Format != "WPCode" {
		t.Errorf("Format = %q, want WPCode", result.Format)
	}
	if result.Imported != 1 {
		t.Fatalf("result = %+v, want 1 imported", result)
	}

	imported, err := repo.GetBySlug(context.Background(), "tracking-pixel")
	if err != nil {
		t.Fatalf("imported snippet missing: %v", err)
	}
	if imported.Type != "js" {
		t.Errorf("Type = %q, want %q", imported.Type, "js")
	}
}

func TestImport_SkipDuplicates(t *testing.T) {
	transfer, snippets, _ := newTestTransferService(t)
	mustCreate(t, snippets, SnippetInput{Title: "Existing", Type: "css", Code: strPtr("old{}")})

	raw := []byte(`{"version": "1.0", "snippets": [
		{"title": "Existing", "slug": "existing", "type": "css", "code": "new{}"},
		{"title": "Fresh", "slug": "fresh", "type": "css", "code": "fresh{}"}
	]}`)

	result, err := transfer.Import(context.Background(), raw, "", ImportOptions{SkipDuplicates: true})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 1 || result.Skipped != 1 || result.Failed != 0 {
		t.Errorf("result = %+v, want 1 imported, 1 skipped", result)
	}
	if len(result.Messages) != 1 || !strings.Contains(result.Messages[0], "existing") {
		t.Errorf("Messages = %v, want skip note naming the slug", result.Messages)
	}

	kept, err := transfer.repo.GetBySlug(context.Background(), "existing")
	if err != nil {
		t.Fatalf("GetBySlug() error = %v", err)
	}
	if kept.Code != "old{}" {
		t.Errorf("Code = %q, want untouched %q", kept.Code, "old{}")
	}
}

func TestImport_Overwrite(t *testing.T) {
	transfer, snippets, repo := newTestTransferService(t)
	original := mustCreate(t, snippets, SnippetInput{Title: "Existing", Type: "css", Code: strPtr("old{}")})

	raw := []byte(`{"version": "1.0", "snippets": [
		{"title": "Existing Updated", "slug": "existing", "type": "css", "code": "new{}", "active": true}
	]}`)

	result, err := transfer.Import(context.Background(), raw, "", ImportOptions{Overwrite: true})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("result = %+v, want 1 imported", result)
	}

	updated, _ := repo.GetByID(context.Background(), original.ID)
	if updated.Code != "new{}" || updated.Title != "Existing Updated" {
		t.Errorf("updated = %+v, want overwritten fields", updated)
	}
}

func TestImport_DuplicateWithoutOptionFails(t *testing.T) {
	transfer, snippets, _ := newTestTransferService(t)
	mustCreate(t, snippets, SnippetInput{Title: "Existing", Type: "css"})

	raw := []byte(`{"version": "1.0", "snippets": [
		{"title": "Existing", "slug": "existing", "type": "css", "code": ""}
	]}`)

	result, err := transfer.Import(context.Background(), raw, "", ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Failed != 1 || result.Imported != 0 {
		t.Errorf("result = %+v, want 1 failed", result)
	}
}

func TestImport_DeactivateOnImport(t *testing.T) {
	transfer, _, repo := newTestTransferService(t)
	raw := []byte(`{"version": "1.0", "snippets": [
		{"title": "Live Elsewhere", "slug": "live-elsewhere", "type": "js", "code": "x()", "active": true}
	]}`)

	if _, err := transfer.Import(context.Background(), raw, "", ImportOptions{DeactivateOnImport: true}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	imported, _ := repo.GetBySlug(context.Background(), "live-elsewhere")
	if imported.Active {
		t.Error("deactivate_on_import should clear the active flag")
	}
}

func TestImport_BadRecordDoesNotAbortRun(t *testing.T) {
	transfer, _, repo := newTestTransferService(t)
	raw := []byte(`{"version": "1.0", "snippets": [
		{"title": "Bad Type", "slug": "bad-type", "type": "python", "code": "pass"},
		{"title": "Good", "slug": "good", "type": "php", "code": "<?php"}
	]}`)

	result, err := transfer.Import(context.Background(), raw, "", ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want 1 imported, 1 failed", result)
	}
	if _, err := repo.GetBySlug(context.Background(), "good"); err != nil {
		t.Errorf("good record should have been imported: %v", err)
	}
}

func TestImport_UnknownFormatFallsThroughToRecords(t *testing.T) {
	transfer, _, repo := newTestTransferService(t)

	// Not native, not a competitor export. Whatever decodes as a record
	// still reaches per-record validation: one usable, one nonsense.
	raw := []byte(`[
		{"title": "Plausible", "type": "js", "code": "x();"},
		{"title": "Nonsense", "type": "wat", "code": "?"}
	]`)

	result, err := transfer.Import(context.Background(), raw, "", ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Format != "Unknown Format" {
		t.Errorf("Format = %q, want Unknown Format", result.Format)
	}
	if result.Imported != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want 1 imported, 1 failed", result)
	}
	if _, err := repo.GetBySlug(context.Background(), "plausible"); err != nil {
		t.Errorf("plausible record should have been imported: %v", err)
	}
}

func TestImport_UnparseableFile(t *testing.T) {
	transfer, _, _ := newTestTransferService(t)

	_, err := transfer.Import(context.Background(), []byte(`{{{`), "", ImportOptions{})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestImport_RejectsConflictingOptions(t *testing.T) {
	transfer, _, _ := newTestTransferService(t)

	_, err := transfer.Import(context.Background(), []byte(`{}`), "", ImportOptions{
		SkipDuplicates: true,
		Overwrite:      true,
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}
