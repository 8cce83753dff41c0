package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/edgecode/snippetd/internal/auth"
	"github.com/edgecode/snippetd/internal/service"
)

// maxImportSize caps the import payload at 10 MB. A legitimate export of
// even hundreds of snippets is far below this.
const maxImportSize = 10 << 20

// TransferHandler exposes bulk import and export.
type TransferHandler struct {
	transfer *service.TransferService
	auth     *service.AuthService
	logger   *slog.Logger
}

func NewTransferHandler(transfer *service.TransferService, auth *service.AuthService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		transfer: transfer,
		auth:     auth,
		logger:   logger,
	}
}

// HandleExport downloads snippets as a portable JSON document.
//
// HTTP: GET /api/export?ids=1,2,3
//
// Without ids every live snippet is exported. The response carries a
// Content-Disposition header so browsers save it as a file.
func (h *TransferHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	exportedBy := h.requesterLogin(r)

	var (
		doc interface{}
		err error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("ids")); raw != "" {
		ids, parseErr := parseIDList(raw)
		if parseErr != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "ids must be a comma-separated list of snippet IDs",
				Field:   "ids",
			})
			return
		}
		doc, err = h.transfer.ExportByIDs(r.Context(), exportedBy, ids)
	} else {
		doc, err = h.transfer.Export(r.Context(), exportedBy)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	filename := "snippets-export-" + time.Now().UTC().Format("2006-01-02") + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// HandleImport uploads a snippets file.
//
// HTTP: POST /api/import?skip_duplicates=&overwrite=&deactivate=
//
// The body is the raw export file; the options travel as query parameters
// so the payload stays the unmodified file content.
func (h *TransferHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := service.ImportOptions{
		SkipDuplicates:     q.Get("skip_duplicates") == "true",
		Overwrite:          q.Get("overwrite") == "true",
		DeactivateOnImport: q.Get("deactivate") == "true",
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize+1))
	if err != nil {
		h.logger.Warn("import upload read failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "could not read the uploaded file",
		})
		return
	}
	if len(raw) > maxImportSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "validation_error",
			Message: "import file exceeds the 10 MB limit",
		})
		return
	}

	authorID := h.requesterID(r)
	result, err := h.transfer.Import(r.Context(), raw, authorID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// requesterLogin resolves the authenticated caller's login for export
// provenance. Failing that, the raw user ID still identifies them.
func (h *TransferHandler) requesterLogin(r *http.Request) string {
	id := h.requesterID(r)
	if id == "" {
		return ""
	}
	if user, err := h.auth.GetUserByID(r.Context(), id); err == nil {
		return user.Login
	}
	return id
}

func (h *TransferHandler) requesterID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
