// Package main is the entry point for the snippetd server.
//
// main stays minimal: read configuration from the environment, build the
// optional Docker sandbox, hand everything to internal/server. All real
// logic lives in the imported packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/edgecode/snippetd/internal/executor"
	"github.com/edgecode/snippetd/internal/executor/docker"
	"github.com/edgecode/snippetd/internal/server"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := "data/snippetd.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET must be a long random string, e.g.:
	//   JWT_SECRET=$(openssl rand -hex 32)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	siteURL := os.Getenv("SITE_URL")
	if siteURL == "" {
		siteURL = fmt.Sprintf("http://localhost:%d", port)
	}

	githubCallbackURL := os.Getenv("GITHUB_CALLBACK_URL")
	if githubCallbackURL == "" {
		githubCallbackURL = siteURL + "/auth/github/callback"
	}

	adminLogin := os.Getenv("ADMIN_LOGIN")
	if adminLogin == "" {
		adminLogin = "admin"
	}

	// The preview sandbox is optional. Without Docker the server still
	// runs; preview requests report the sandbox as unavailable.
	var exec executor.Executor
	if os.Getenv("PREVIEW_DISABLED") == "" {
		dockerExec, err := docker.New(docker.DefaultConfig(), logger)
		if err != nil {
			logger.Warn("Docker sandbox unavailable, snippet previews are disabled",
				slog.String("error", err.Error()),
			)
		} else {
			defer dockerExec.Close()
			exec = dockerExec
		}
	}

	cfg := server.Config{
		Port:               port,
		DBPath:             dbPath,
		SiteURL:            siteURL,
		JWTSecret:          jwtSecret,
		AdminLogin:         adminLogin,
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  githubCallbackURL,
		AIAPIKey:           os.Getenv("AI_API_KEY"),
		AIBaseURL:          os.Getenv("AI_API_URL"),
	}

	srv, err := server.New(cfg, logger, exec)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down via SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
