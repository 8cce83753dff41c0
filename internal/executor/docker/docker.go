// Package docker implements the preview executor on top of the Docker
// API, with a pool of pre-warmed containers per language so previews
// don't pay container startup time.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/edgecode/snippetd/internal/executor"
	"github.com/edgecode/snippetd/internal/model"
)

// Executor implements executor.Executor using Docker, one container pool
// per supported language.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pools  map[string]*Pool
}

// New creates a Docker Executor, pulls the configured images and starts
// warming the per-language pools.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for typ, img := range cfg.Images {
		logger.Info("ensuring docker image is available",
			slog.String("type", typ), slog.String("image", img))
		reader, err := cli.ImagePull(ctx, img, image.PullOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to pull image %s: %w", img, err)
		}
		// Read everything to block until the pull is complete.
		io.Copy(io.Discard, reader)
		reader.Close()
	}
	logger.Info("docker images ready")

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pools:  make(map[string]*Pool, len(cfg.Images)),
	}

	for typ, img := range cfg.Images {
		pool := NewPool(cli, img, cfg, logger)
		pool.Start()
		exec.pools[typ] = pool
	}

	return exec, nil
}

// Close shuts down the container pools and the docker client.
func (e *Executor) Close() error {
	for _, pool := range e.pools {
		pool.Stop()
	}
	return e.cli.Close()
}

// Supports reports whether a pool exists for the snippet type.
func (e *Executor) Supports(typ string) bool {
	_, ok := e.pools[typ]
	return ok
}

// Execute runs the snippet in a sandboxed container of the matching
// language and captures its output.
func (e *Executor) Execute(ctx context.Context, req executor.PreviewRequest) (*executor.PreviewResult, error) {
	pool, ok := e.pools[req.Type]
	if !ok {
		return nil, fmt.Errorf("no sandbox for snippet type %q", req.Type)
	}

	cmd, err := previewCommand(req.Type, req.Code)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	containerID, err := pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	// The acquired container is single-use; remove it no matter what.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			e.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	executeCtx, executeCancel := context.WithTimeout(ctx, e.config.Timeout)
	defer executeCancel()

	// The pooled container idles on `sleep infinity`, so the snippet runs
	// as a docker exec inside it.
	execResp, err := e.cli.ContainerExecCreate(executeCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes stdout from stderr on the attach stream.
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	var finalExitCode int

	select {
	case <-done:
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err == nil {
			finalExitCode = inspectResp.ExitCode
		}
	case <-executeCtx.Done():
		// 124 mirrors the unix timeout command.
		finalExitCode = 124
		stderr.WriteString("\nPreview timed out.\n")
	}

	return &executor.PreviewResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: finalExitCode,
		Duration: time.Since(start),
	}, nil
}

var phpOpenTagRe = regexp.MustCompile(`^\s*<\?(php)?\s*`)

// previewCommand builds the in-container command for a snippet.
// Stored PHP snippets carry an opening tag, but `php -r` takes bare code,
// so the tag is stripped first.
func previewCommand(typ, code string) ([]string, error) {
	switch typ {
	case model.TypePHP:
		code = phpOpenTagRe.ReplaceAllString(code, "")
		code = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(code), "?>"))
		return []string{"php", "-r", code}, nil
	case model.TypeJS:
		return []string{"node", "-e", code}, nil
	default:
		return nil, errors.New("only php and js snippets can be previewed")
	}
}
