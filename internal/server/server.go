// Package server sets up the HTTP server, router, and all route
// definitions.
//
// This is the composition root: the one place where the repository,
// services, handlers and middleware are wired together. Each layer only
// receives what it needs: services get repository interfaces, handlers
// get services, and nothing below the handlers knows about HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/edgecode/snippetd/internal/ai"
	"github.com/edgecode/snippetd/internal/auth"
	"github.com/edgecode/snippetd/internal/executor"
	"github.com/edgecode/snippetd/internal/handler"
	"github.com/edgecode/snippetd/internal/middleware"
	sqliteRepo "github.com/edgecode/snippetd/internal/repository/sqlite"
	"github.com/edgecode/snippetd/internal/service"
	"github.com/edgecode/snippetd/internal/syntax"
)

// Config holds server configuration, loaded from the environment by
// cmd/server.
type Config struct {
	Port    int
	DBPath  string
	SiteURL string

	// JWTSecret signs session tokens. Required: every mutating route
	// sits behind authentication.
	JWTSecret string

	// AdminLogin/AdminPassword bootstrap a local password account at
	// startup, so a fresh deployment has a way in before OAuth is set up.
	AdminLogin    string
	AdminPassword string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// AIAPIKey is the environment fallback; a key stored through the
	// settings API takes precedence.
	AIAPIKey  string
	AIBaseURL string
}

// Server owns the router, the database connection and the HTTP lifecycle.
// The database is closed during graceful shutdown, which flushes the WAL
// and releases the file lock.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain. exec may be nil; previews then
// report that the sandbox is unavailable instead of failing startup.
func New(cfg Config, logger *slog.Logger, exec executor.Executor) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret must be configured")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(exec); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes(exec executor.Executor) error {
	// Global middleware, in execution order.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// Auth plumbing.
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	} else {
		s.logger.Warn("GitHub OAuth not configured, only password login is available")
	}

	// Services. The sqlite DB satisfies all three repository interfaces.
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	snippetService := service.NewSnippetService(s.db, syntax.New(), s.logger)
	previewService := service.NewPreviewService(s.db, exec, s.logger)
	transferService := service.NewTransferService(s.db, s.config.SiteURL, s.logger)
	aiService := service.NewAIService(s.db, s.config.AIAPIKey, func(apiKey string) service.AIClient {
		return ai.NewClient(ai.Config{APIKey: apiKey, BaseURL: s.config.AIBaseURL}, s.logger)
	}, s.logger)

	// Bootstrap admin account, if configured.
	if s.config.AdminPassword != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := authService.EnsureAdmin(ctx, s.config.AdminLogin, s.config.AdminPassword); err != nil {
			return fmt.Errorf("bootstrapping admin account: %w", err)
		}
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, previewService, s.logger)
	transferHandler := handler.NewTransferHandler(transferService, authService, s.logger)
	aiHandler := handler.NewAIHandler(aiService, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	s.router.Route("/api", func(r chi.Router) {
		// Public surface: login, plus the two delivery endpoints a site
		// calls to display snippets.
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.With(optionalAuth).Get("/render", snippetHandler.HandleRender)
		r.Get("/shortcode/{slug}", snippetHandler.HandleShortcode)

		// Admin surface: everything else requires a session.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

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

	return nil
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	// The write timeout fits the database-backed handlers. The AI
	// handlers wait on a remote provider for minutes and extend their
	// own connection deadline per request.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
