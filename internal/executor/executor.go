// Package executor defines the interface for running snippet code in an
// isolated environment. Only executable snippet types (PHP and JS) can be
// previewed; CSS and HTML have nothing to run.
package executor

import (
	"context"
	"time"
)

// PreviewRequest asks for one snippet to be executed.
type PreviewRequest struct {
	// Type is the snippet type, "php" or "js".
	Type string `json:"type"`
	Code string `json:"code"`
}

// PreviewResult is the captured output of a preview run.
type PreviewResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Executor runs snippet code in an isolated environment.
type Executor interface {
	// Supports reports whether the executor can run the given snippet type.
	Supports(typ string) bool
	Execute(ctx context.Context, req PreviewRequest) (*PreviewResult, error)
}
