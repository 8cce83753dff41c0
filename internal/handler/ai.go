package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/edgecode/snippetd/internal/service"
)

// aiWriteBudget is how long an AI request may keep its connection open:
// up to three provider attempts of two minutes each plus backoff, with
// slack. The server's global write timeout is far shorter, sized for
// database-backed handlers, so the AI handlers push their own deadline.
const aiWriteBudget = 7 * time.Minute

// AIHandler exposes the AI assistance endpoints.
type AIHandler struct {
	ai     *service.AIService
	logger *slog.Logger
}

func NewAIHandler(ai *service.AIService, logger *slog.Logger) *AIHandler {
	return &AIHandler{ai: ai, logger: logger}
}

// extendWriteDeadline moves the connection write deadline past the slow
// provider round trips so the response is not cut off mid-flight.
// Best-effort: writers that don't support deadlines (test recorders)
// keep whatever timeout they already have.
func extendWriteDeadline(w http.ResponseWriter) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Now().Add(aiWriteBudget))
}

// HandleGenerate produces snippet code from a description.
//
// HTTP: POST /api/ai/generate
// BODY: {"description": "a cookie consent banner", "type": "js"}
func (h *AIHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		Type        string `json:"type"`
	}
	if !parseJSONBody(w, r, &req) {
		return
	}

	extendWriteDeadline(w)
	result, err := h.ai.Generate(r.Context(), req.Description, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleImprove rewrites existing code with a chosen focus.
//
// HTTP: POST /api/ai/improve
// BODY: {"code": "...", "type": "php", "focus": "security"}
func (h *AIHandler) HandleImprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code  string `json:"code"`
		Type  string `json:"type"`
		Focus string `json:"focus"`
	}
	if !parseJSONBody(w, r, &req) {
		return
	}

	extendWriteDeadline(w)
	result, err := h.ai.Improve(r.Context(), req.Code, req.Type, req.Focus)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleExplain returns a prose explanation of the given code.
//
// HTTP: POST /api/ai/explain
// BODY: {"code": "...", "type": "php"}
func (h *AIHandler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
		Type string `json:"type"`
	}
	if !parseJSONBody(w, r, &req) {
		return
	}

	extendWriteDeadline(w)
	explanation, err := h.ai.Explain(r.Context(), req.Code, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"explanation": explanation})
}

// HandleGetSettings returns the current AI configuration with the API key
// masked.
//
// HTTP: GET /api/ai/settings
func (h *AIHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.ai.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings stores a new API key and/or toggles AI assistance.
// Absent fields are left unchanged.
//
// HTTP: PUT /api/ai/settings
// BODY: {"api_key": "...", "enabled": true}
func (h *AIHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey  *string `json:"api_key"`
		Enabled *bool   `json:"enabled"`
	}
	if !parseJSONBody(w, r, &req) {
		return
	}

	// Storing a new key probes it against the provider first, which can
	// take as long as any other AI round trip.
	extendWriteDeadline(w)
	settings, err := h.ai.UpdateSettings(r.Context(), req.APIKey, req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
