package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/edgecode/snippetd/internal/ai"
	"github.com/edgecode/snippetd/internal/auth"
	"github.com/edgecode/snippetd/internal/repository/sqlite"
	"github.com/edgecode/snippetd/internal/service"
	"github.com/edgecode/snippetd/internal/syntax"
)

// =========================================================================
// TEST HARNESS
// =========================================================================
//
// Handler tests run against the real router, services and an in-memory
// sqlite database, so a request exercises the whole stack below the
// network layer. Only the Docker sandbox and the AI provider are stubbed.

type testEnv struct {
	router   *chi.Mux
	db       *sqlite.DB
	tokens   *auth.TokenService
	auth     *service.AuthService
	snippets *service.SnippetService
	aiStub   *stubAIClient
}

// stubAIClient stands in for the Gemini client in handler tests.
type stubAIClient struct {
	validKey string
}

func (c *stubAIClient) Generate(_ context.Context, description, typ string) (*ai.GenerateResult, error) {
	return &ai.GenerateResult{Code: "// code for: " + description, Type: typ}, nil
}

func (c *stubAIClient) Improve(_ context.Context, code, _, _ string) (*ai.ImproveResult, error) {
	return &ai.ImproveResult{Code: code, Changes: "none"}, nil
}

func (c *stubAIClient) Explain(_ context.Context, _, _ string) (string, error) {
	return "explanation", nil
}

func (c *stubAIClient) ValidateKey(_ context.Context, apiKey string) bool {
	return apiKey == c.validKey
}

// permissiveChecker accepts any code. Syntax rules have their own tests;
// handler tests focus on HTTP behavior.
type permissiveChecker struct{}

func (permissiveChecker) Validate(_, _ string) syntax.Result {
	return syntax.Result{Valid: true}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789abcdef")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	passwords := auth.NewPasswordServiceForTest(4)

	authService := service.NewAuthService(db, tokens, passwords, logger)
	snippetService := service.NewSnippetService(db, permissiveChecker{}, logger)
	previewService := service.NewPreviewService(db, nil, logger)
	transferService := service.NewTransferService(db, "https://test.example.com", logger)

	aiStub := &stubAIClient{validKey: "good-key"}
	aiService := service.NewAIService(db, "", func(string) service.AIClient { return aiStub }, logger)

	authHandler := NewAuthHandler(authService, nil, logger)
	snippetHandler := NewSnippetHandler(snippetService, previewService, logger)
	transferHandler := NewTransferHandler(transferService, authService, logger)
	aiHandler := NewAIHandler(aiService, logger)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.With(auth.OptionalAuth(tokens)).Get("/render", snippetHandler.HandleRender)
		r.Get("/shortcode/{slug}", snippetHandler.HandleShortcode)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)

			r.Get("/snippets", snippetHandler.HandleList)
			r.Post("/snippets", snippetHandler.HandleCreate)
			r.Post("/snippets/bulk", snippetHandler.HandleBulk)
			r.Get("/snippets/{id}", snippetHandler.HandleGetByID)
			r.Put("/snippets/{id}", snippetHandler.HandleUpdate)
			r.Delete("/snippets/{id}", snippetHandler.HandleDelete)
			r.Post("/snippets/{id}/toggle", snippetHandler.HandleToggle)
			r.Post("/snippets/{id}/restore", snippetHandler.HandleRestore)
			r.Post("/snippets/{id}/preview", snippetHandler.HandlePreview)

			r.Get("/conditions", snippetHandler.HandleConditions)

			r.Get("/export", transferHandler.HandleExport)
			r.Post("/import", transferHandler.HandleImport)

			r.Post("/ai/generate", aiHandler.HandleGenerate)
			r.Post("/ai/improve", aiHandler.HandleImprove)
			r.Post("/ai/explain", aiHandler.HandleExplain)
			r.Get("/ai/settings", aiHandler.HandleGetSettings)
			r.Put("/ai/settings", aiHandler.HandleUpdateSettings)
		})
	})

	return &testEnv{
		router:   router,
		db:       db,
		tokens:   tokens,
		auth:     authService,
		snippets: snippetService,
		aiStub:   aiStub,
	}
}

// sessionCookie creates an admin account and returns a valid session
// cookie for it.
func (env *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	if err := env.auth.EnsureAdmin(context.Background(), "admin", "test-password"); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	result, err := env.auth.LoginPassword(context.Background(), "admin", "test-password")
	if err != nil {
		t.Fatalf("LoginPassword() error = %v", err)
	}
	return &http.Cookie{Name: auth.CookieName, Value: result.Token}
}

// do runs one request through the router. body may be nil, a []byte, or
// any JSON-marshalable value.
func (env *testEnv) do(t *testing.T, method, target string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a response body, failing the test on bad JSON.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// createSnippet seeds a snippet via the API and returns its decoded form.
func (env *testEnv) createSnippet(t *testing.T, cookie *http.Cookie, payload map[string]interface{}) map[string]interface{} {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/snippets", payload, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	var snippet map[string]interface{}
	decode(t, rec, &snippet)
	return snippet
}
