// Package ai talks to the Gemini generateContent API to generate, improve,
// and explain snippet code.
//
// The client is a thin wrapper over net/http. Requests that fail with a
// timeout are retried up to two times with a fixed two second pause;
// non-timeout failures are returned immediately. All failures surface as
// upstream errors with a stable code (timeout_error, network_error,
// api_error, empty_response) so handlers can map them without string
// matching.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/edgecode/snippetd/internal/apperror"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"
	defaultTimeout = 120 * time.Second

	maxRetries = 2
	retryPause = 2 * time.Second
)

// Config holds client settings. Zero values fall back to defaults;
// only APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the transport, used by tests.
	HTTPClient *http.Client
}

// Client is a Gemini API client. Safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	// sleep is swapped out in tests so retries don't stall the suite
	sleep func(time.Duration)
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    httpClient,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GenerateResult is the outcome of a generation call.
type GenerateResult struct {
	Code string `json:"code"`
	Raw  string `json:"raw"`
	Type string `json:"type"`
}

// ImproveResult is the outcome of an improvement call. Code is empty when
// the model ignored the required response format.
type ImproveResult struct {
	Code    string `json:"code"`
	Changes string `json:"changes"`
	Raw     string `json:"raw"`
}

// Generate produces code of the given type from a natural language
// description.
func (c *Client) Generate(ctx context.Context, description, typ string) (*GenerateResult, error) {
	if !c.Configured() {
		return nil, apperror.ValidationFailed("api_key", "API key not configured")
	}

	content, err := c.complete(ctx, buildGeneratePrompt(description, typ))
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Code: extractCode(content, typ),
		Raw:  content,
		Type: typ,
	}, nil
}

// Improve rewrites existing code with the given improvement focus
// (security, performance, readability, error_handling, or general).
func (c *Client) Improve(ctx context.Context, code, typ, focus string) (*ImproveResult, error) {
	if !c.Configured() {
		return nil, apperror.ValidationFailed("api_key", "API key not configured")
	}

	content, err := c.complete(ctx, buildImprovePrompt(code, typ, focus))
	if err != nil {
		return nil, err
	}

	return &ImproveResult{
		Code:    extractImprovedCode(content),
		Changes: extractChanges(content),
		Raw:     content,
	}, nil
}

// Explain returns a prose explanation of the given code.
func (c *Client) Explain(ctx context.Context, code, typ string) (string, error) {
	if !c.Configured() {
		return "", apperror.ValidationFailed("api_key", "API key not configured")
	}

	return c.complete(ctx, buildExplainPrompt(code, typ))
}

// ValidateKey checks a key by running a small canned generation with it.
// Any successful response that contains code counts as valid.
func (c *Client) ValidateKey(ctx context.Context, apiKey string) bool {
	if apiKey == "" {
		return false
	}

	probe := NewClient(Config{
		APIKey:     apiKey,
		BaseURL:    c.baseURL,
		HTTPClient: c.http,
	}, c.logger)
	probe.sleep = c.sleep

	res, err := probe.Generate(ctx, `Create a simple PHP function that returns "Hello World"`, "php")
	return err == nil && res.Code != ""
}

// ============================================================================
// WIRE FORMAT
// ============================================================================

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopK             int     `json:"topK"`
	TopP             float64 `json:"topP"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error"`
}

type geminiCandidate struct {
	Content struct {
		Parts []geminiPart `json:"parts"`
		Text  string       `json:"text"`
	} `json:"content"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func newRequest(prompt string) geminiRequest {
	return geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:      0.3,
			TopK:             40,
			TopP:             0.95,
			ResponseMimeType: "text/plain",
		},
		SafetySettings: []safetySetting{
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
		},
	}
}

// ============================================================================
// TRANSPORT
// ============================================================================

// complete sends one prompt and returns the model's text content.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqID := xid.New().String()

	body, err := json.Marshal(newRequest(prompt))
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Info("retrying ai request", "request_id", reqID, "attempt", attempt)
			c.sleep(retryPause)
		}

		content, err := c.doRequest(ctx, body)
		if err == nil {
			return content, nil
		}

		// Only timeouts are worth retrying. API rejections and network
		// refusals will not fix themselves in two seconds.
		if !isTimeout(err) {
			return "", err
		}
		lastErr = err
	}

	c.logger.Warn("ai request exhausted retries", "request_id", reqID, "error", lastErr)
	return "", apperror.Upstream("timeout_error",
		"The AI request timed out after multiple attempts. Please try again with a shorter prompt.")
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", timeoutErr{err}
		}
		return "", apperror.Upstream("network_error",
			"Network error occurred. Please check your internet connection and try again.")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperror.Upstream("network_error", "Failed to read AI response.")
	}

	if resp.StatusCode != http.StatusOK {
		var parsed geminiResponse
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", apperror.Upstream("api_error", msg)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", apperror.Upstream("api_error", "Invalid response from AI")
	}
	if parsed.Error != nil {
		return "", apperror.Upstream("api_error", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return "", apperror.Upstream("empty_response", "No response from AI")
	}

	content := extractContent(parsed.Candidates[0])
	if strings.TrimSpace(content) == "" {
		return "", apperror.Upstream("empty_response", "Empty response from AI")
	}

	return content, nil
}

// extractContent pulls the text out of a candidate under both the
// text/plain format (single part) and the older multi-part format.
func extractContent(c geminiCandidate) string {
	if len(c.Content.Parts) == 1 {
		return c.Content.Parts[0].Text
	}
	if len(c.Content.Parts) > 1 {
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				b.WriteString(p.Text)
				b.WriteString("\n")
			}
		}
		return strings.TrimSpace(b.String())
	}
	return c.Content.Text
}

// timeoutErr marks a transport error as timeout-class so the retry loop
// can recognise it after wrapping.
type timeoutErr struct{ err error }

func (t timeoutErr) Error() string { return t.err.Error() }
func (t timeoutErr) Unwrap() error { return t.err }

func isTimeout(err error) bool {
	var te timeoutErr
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
