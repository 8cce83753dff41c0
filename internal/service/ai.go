package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/edgecode/snippetd/internal/ai"
	"github.com/edgecode/snippetd/internal/apperror"
	"github.com/edgecode/snippetd/internal/model"
	"github.com/edgecode/snippetd/internal/repository"
)

// Settings keys for AI configuration. Stored in the settings table so
// they survive restarts and can be changed from the admin UI.
const (
	settingAIAPIKey  = "ai_api_key"
	settingAIEnabled = "ai_enabled"
)

// AIClient is the slice of the Gemini client the service needs. Tests
// substitute a stub.
type AIClient interface {
	Generate(ctx context.Context, description, typ string) (*ai.GenerateResult, error)
	Improve(ctx context.Context, code, typ, focus string) (*ai.ImproveResult, error)
	Explain(ctx context.Context, code, typ string) (string, error)
	ValidateKey(ctx context.Context, apiKey string) bool
}

// AIService wires the Gemini client to stored settings. The API key can
// come from the environment or the settings table; the settings table
// wins because it's what the admin UI writes.
type AIService struct {
	settings  repository.SettingsRepository
	envKey    string
	newClient func(apiKey string) AIClient
	logger    *slog.Logger
}

func NewAIService(settings repository.SettingsRepository, envKey string, newClient func(apiKey string) AIClient, logger *slog.Logger) *AIService {
	return &AIService{
		settings:  settings,
		envKey:    envKey,
		newClient: newClient,
		logger:    logger,
	}
}

// client builds a Gemini client with the currently effective API key.
// A new client per call keeps key rotation immediate.
func (s *AIService) client(ctx context.Context) (AIClient, error) {
	key, err := s.effectiveKey(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, apperror.ValidationFailed("api_key", "AI API key not configured")
	}

	enabled, err := s.enabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, apperror.Forbidden("AI assistance is disabled")
	}

	return s.newClient(key), nil
}

func (s *AIService) effectiveKey(ctx context.Context) (string, error) {
	key, err := s.settings.GetSetting(ctx, settingAIAPIKey)
	if err != nil {
		return "", err
	}
	if key == "" {
		key = s.envKey
	}
	return key, nil
}

// enabled defaults to true when never set: configuring a key is the real
// opt-in.
func (s *AIService) enabled(ctx context.Context) (bool, error) {
	value, err := s.settings.GetSetting(ctx, settingAIEnabled)
	if err != nil {
		return false, err
	}
	return value == "" || value == "1", nil
}

// Generate produces snippet code from a natural language description.
func (s *AIService) Generate(ctx context.Context, description, typ string) (*ai.GenerateResult, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperror.ValidationFailed("description", "description is required")
	}
	typ = strings.ToLower(strings.TrimSpace(typ))
	if !model.ValidType(typ) {
		return nil, apperror.ValidationFailed("type", "type must be one of php, js, css, html")
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.Generate(ctx, description, typ)
	if err != nil {
		s.logger.Warn("ai generate failed", slog.String("type", typ), slog.String("error", err.Error()))
		return nil, err
	}
	return result, nil
}

// Improve rewrites existing code with the given focus.
func (s *AIService) Improve(ctx context.Context, code, typ, focus string) (*ai.ImproveResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	typ = strings.ToLower(strings.TrimSpace(typ))
	if !model.ValidType(typ) {
		return nil, apperror.ValidationFailed("type", "type must be one of php, js, css, html")
	}

	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.Improve(ctx, code, typ, focus)
	if err != nil {
		s.logger.Warn("ai improve failed", slog.String("type", typ), slog.String("error", err.Error()))
		return nil, err
	}
	return result, nil
}

// Explain returns a prose explanation of the given code.
func (s *AIService) Explain(ctx context.Context, code, typ string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", apperror.ValidationFailed("code", "code is required")
	}
	typ = strings.ToLower(strings.TrimSpace(typ))
	if !model.ValidType(typ) {
		return "", apperror.ValidationFailed("type", "type must be one of php, js, css, html")
	}

	client, err := s.client(ctx)
	if err != nil {
		return "", err
	}

	explanation, err := client.Explain(ctx, code, typ)
	if err != nil {
		s.logger.Warn("ai explain failed", slog.String("type", typ), slog.String("error", err.Error()))
		return "", err
	}
	return explanation, nil
}

// AISettings is what the settings endpoint exposes. The key itself never
// leaves the server; only a masked tail is shown.
type AISettings struct {
	Enabled    bool   `json:"enabled"`
	Configured bool   `json:"configured"`
	APIKey     string `json:"api_key_masked"`
}

func (s *AIService) Settings(ctx context.Context) (*AISettings, error) {
	key, err := s.effectiveKey(ctx)
	if err != nil {
		return nil, err
	}
	enabled, err := s.enabled(ctx)
	if err != nil {
		return nil, err
	}

	return &AISettings{
		Enabled:    enabled,
		Configured: key != "",
		APIKey:     maskKey(key),
	}, nil
}

// UpdateSettings stores a new API key and/or the enabled flag. A new key
// is probed against the API before it is persisted, so a typo'd key is
// rejected immediately instead of breaking every later request.
func (s *AIService) UpdateSettings(ctx context.Context, apiKey *string, enabled *bool) (*AISettings, error) {
	if apiKey != nil {
		key := strings.TrimSpace(*apiKey)
		if key != "" {
			if !s.newClient(key).ValidateKey(ctx, key) {
				return nil, apperror.ValidationFailed("api_key", "the API key was rejected by the AI provider")
			}
		}
		if err := s.settings.SetSetting(ctx, settingAIAPIKey, key); err != nil {
			return nil, err
		}
		s.logger.Info("ai api key updated", slog.Bool("cleared", key == ""))
	}

	if enabled != nil {
		value := "0"
		if *enabled {
			value = "1"
		}
		if err := s.settings.SetSetting(ctx, settingAIEnabled, value); err != nil {
			return nil, err
		}
	}

	return s.Settings(ctx)
}

// maskKey hides all but the last four characters.
func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
