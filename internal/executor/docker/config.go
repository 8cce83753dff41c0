package docker

import (
	"time"

	"github.com/edgecode/snippetd/internal/model"
)

// Config holds the configuration for Docker-based snippet previews.
type Config struct {
	// Images maps a snippet type to the Docker image that runs it.
	Images map[string]string
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// Timeout is the maximum amount of time one preview can take.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers kept per language.
	PoolSize int
}

// DefaultConfig provides sensible defaults for the preview sandbox.
func DefaultConfig() Config {
	return Config{
		Images: map[string]string{
			model.TypePHP: "php:8.3-cli-alpine",
			model.TypeJS:  "node:22-alpine",
		},
		// 128 MB memory limit
		MemoryLimit: 128 * 1024 * 1024,
		// 0.5 CPU shares
		CPULimit: 0.5,
		// 5 second default timeout
		Timeout:  5 * time.Second,
		PoolSize: 2,
	}
}
