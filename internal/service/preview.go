package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgecode/snippetd/internal/apperror"
	"github.com/edgecode/snippetd/internal/executor"
	"github.com/edgecode/snippetd/internal/model"
	"github.com/edgecode/snippetd/internal/repository"
)

// PreviewService runs stored snippets in the sandbox. The executor is
// optional; when the server starts without Docker, previews return a
// validation error instead of failing at startup.
type PreviewService struct {
	repo   repository.SnippetRepository
	exec   executor.Executor
	logger *slog.Logger
}

func NewPreviewService(repo repository.SnippetRepository, exec executor.Executor, logger *slog.Logger) *PreviewService {
	return &PreviewService{
		repo:   repo,
		exec:   exec,
		logger: logger,
	}
}

// Enabled reports whether a sandbox is attached.
func (s *PreviewService) Enabled() bool {
	return s.exec != nil
}

// Preview executes the snippet with the given ID and returns its output.
// Only PHP and JS run; CSS and HTML have no runtime to preview against.
func (s *PreviewService) Preview(ctx context.Context, id int64) (*executor.PreviewResult, error) {
	if s.exec == nil {
		return nil, apperror.ValidationFailed("preview", "the preview sandbox is not enabled on this server")
	}

	snippet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch snippet.Type {
	case model.TypePHP, model.TypeJS:
		// Executable.
	default:
		return nil, apperror.ValidationFailed("type",
			fmt.Sprintf("%s snippets cannot be previewed; only php and js run in the sandbox", snippet.Type))
	}
	if !s.exec.Supports(snippet.Type) {
		return nil, apperror.ValidationFailed("type",
			fmt.Sprintf("no sandbox is configured for %s snippets", snippet.Type))
	}

	result, err := s.exec.Execute(ctx, executor.PreviewRequest{
		Type: snippet.Type,
		Code: snippet.Code,
	})
	if err != nil {
		s.logger.Error("preview failed",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("running preview: %w", err)
	}

	s.logger.Info("preview executed",
		slog.Int64("id", id),
		slog.Int("exitCode", result.ExitCode),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}
