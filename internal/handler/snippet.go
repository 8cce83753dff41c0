// Package handler contains the HTTP request handlers.
//
// Handlers parse the incoming request, call a service, and write the
// response. Business rules live in the service layer; a handler never
// touches the database directly.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/edgecode/snippetd/internal/auth"
	"github.com/edgecode/snippetd/internal/conditions"
	"github.com/edgecode/snippetd/internal/model"
	"github.com/edgecode/snippetd/internal/service"
)

// SnippetHandler exposes snippet CRUD, lifecycle and delivery endpoints.
type SnippetHandler struct {
	snippets *service.SnippetService
	preview  *service.PreviewService
	logger   *slog.Logger
}

func NewSnippetHandler(snippets *service.SnippetService, preview *service.PreviewService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{
		snippets: snippets,
		preview:  preview,
		logger:   logger,
	}
}

// snippetRequest is the client-settable snippet payload for create and
// update. Pointers distinguish "absent" from zero values.
type snippetRequest struct {
	Title      string          `json:"title"`
	Slug       string          `json:"slug"`
	Type       string          `json:"type"`
	Code       *string         `json:"code"`
	Active     *bool           `json:"active"`
	Mode       string          `json:"mode"`
	Conditions *conditions.Set `json:"conditions"`
}

func (req snippetRequest) input() service.SnippetInput {
	return service.SnippetInput{
		Title:      req.Title,
		Slug:       req.Slug,
		Type:       req.Type,
		Code:       req.Code,
		Active:     req.Active,
		Mode:       req.Mode,
		Conditions: req.Conditions,
	}
}

// HandleList returns one page of snippets.
//
// HTTP: GET /api/snippets?type=&active=&deleted=&search=&page=&per_page=
//
// The total match count travels in X-Total-Count and X-Total-Pages
// headers so the body stays a plain array.
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := service.ListParams{
		Type:   q.Get("type"),
		Search: q.Get("search"),
	}
	if v := q.Get("active"); v != "" {
		active := v == "true" || v == "1"
		params.Active = &active
	}
	if v := q.Get("deleted"); v != "" {
		deleted := v == "true" || v == "1"
		params.Deleted = &deleted
	}
	params.Page, _ = strconv.Atoi(q.Get("page"))
	params.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	snippets, total, err := h.snippets.List(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	perPage := params.PerPage
	if perPage <= 0 {
		perPage = service.DefaultListLimit
	}
	if perPage > service.MaxListLimit {
		perPage = service.MaxListLimit
	}
	totalPages := (total + perPage - 1) / perPage

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	w.Header().Set("X-Total-Pages", strconv.Itoa(totalPages))
	writeJSON(w, http.StatusOK, snippets)
}

// HandleGetByID returns a single snippet, trashed ones included.
//
// HTTP: GET /api/snippets/{id}
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	snippet, err := h.snippets.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleCreate saves a new snippet.
//
// HTTP: POST /api/snippets
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if !parseJSONBody(w, r, &req) {
		return
	}

	authorID, _ := auth.UserIDFromContext(r.Context())
	snippet, err := h.snippets.Create(r.Context(), authorID, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	var req snippetRequest
	if !parseJSONBody(w, r, &req) {
		return
	}

	snippet, err := h.snippets.Update(r.Context(), id, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleToggle flips the active flag.
//
// HTTP: POST /api/snippets/{id}/toggle
func (h *SnippetHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	snippet, err := h.snippets.Toggle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// deleteResponse echoes what was removed. Previous is the snippet as it
// was before the call, the last copy a client will see of it.
type deleteResponse struct {
	Deleted  bool           `json:"deleted"`
	Previous *model.Snippet `json:"previous"`
}

// HandleDelete removes a snippet permanently and echoes its prior
// representation. Reversible removal is the bulk "trash" action.
//
// HTTP: DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	previous, err := h.snippets.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: true, Previous: previous})
}

// HandleRestore brings a trashed snippet back.
//
// HTTP: POST /api/snippets/{id}/restore
func (h *SnippetHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	snippet, err := h.snippets.Restore(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleBulk applies one action to many snippets.
//
// HTTP: POST /api/snippets/bulk
// BODY: {"action": "activate", "ids": [1, 2, 3]}
func (h *SnippetHandler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string  `json:"action"`
		IDs    []int64 `json:"ids"`
	}
	if !parseJSONBody(w, r, &req) {
		return
	}

	result, err := h.snippets.Bulk(r.Context(), req.Action, req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleConditions lists the values the condition editor can offer.
//
// HTTP: GET /api/conditions
func (h *SnippetHandler) HandleConditions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snippets.ConditionOptions())
}

// HandleRender returns the active auto-insert snippets matching the
// described page, in insertion order. This is the endpoint a site calls
// on page load to know what to inject.
//
// HTTP: GET /api/render?page_type=&device=&logged_in=
//
// logged_in describes the visitor of the rendered page, not the caller of
// this API; when absent it falls back to whether this request itself
// carries a valid session.
func (h *SnippetHandler) HandleRender(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	_, authenticated := auth.UserIDFromContext(r.Context())
	loggedIn := authenticated
	if v := q.Get("logged_in"); v != "" {
		loggedIn = v == "true" || v == "1"
	}

	rctx := conditions.RequestContext{
		PageType: q.Get("page_type"),
		Device:   q.Get("device"),
		LoggedIn: loggedIn,
	}

	snippets, err := h.snippets.Render(r.Context(), rctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleShortcode resolves one active snippet by slug for embedding.
//
// HTTP: GET /api/shortcode/{slug}
func (h *SnippetHandler) HandleShortcode(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(r.PathValue("slug"))

	snippet, err := h.snippets.Shortcode(r.Context(), slug)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandlePreview executes a stored snippet in the sandbox and returns its
// output.
//
// HTTP: POST /api/snippets/{id}/preview
func (h *SnippetHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	result, err := h.preview.Preview(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// snippetID parses the {id} path parameter, writing the error response
// itself so callers can just bail out.
func snippetID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "snippet ID must be a positive integer",
			Field:   "id",
		})
		return 0, false
	}
	return id, true
}
