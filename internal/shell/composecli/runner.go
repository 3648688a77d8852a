// Package composecli shells out to the docker-compose binary for stack
// lifecycle operations. The engine API has no native notion of a compose
// project, so project-scoped down/up/ps go through the CLI.
package composecli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrCommandFailed = errors.New("docker-compose command failed")
	ErrTimeout       = errors.New("docker-compose command timed out")
	ErrNoContainer   = errors.New("service has no container")
)

// Per-command deadlines. A stack that cannot come down in 30s or up in 120s
// is treated as a failed deployment rather than left half-applied.
const (
	downTimeout = 30 * time.Second
	upTimeout   = 120 * time.Second
	psTimeout   = 30 * time.Second
)

// =============================================================================
// Runner
// =============================================================================

// Runner executes docker-compose commands scoped to a project.
type Runner struct {
	binary string
	logger *slog.Logger
}

// NewRunner creates a compose CLI runner. binary defaults to
// "docker-compose" when empty.
func NewRunner(binary string, logger *slog.Logger) *Runner {
	if binary == "" {
		binary = "docker-compose"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		binary: binary,
		logger: logger,
	}
}

// Down tears down a project's containers and networks. Missing projects are
// not an error; compose already treats them as a no-op.
func (r *Runner) Down(ctx context.Context, project, composeFile, workDir string) error {
	args := []string{"-p", project}
	if composeFile != "" {
		args = append(args, "-f", composeFile)
	}
	args = append(args, "down")

	_, err := r.run(ctx, workDir, downTimeout, args...)
	return err
}

// Up starts a project's containers detached from the given compose file.
func (r *Runner) Up(ctx context.Context, project, composeFile, workDir string) error {
	args := []string{"-p", project}
	if composeFile != "" {
		args = append(args, "-f", composeFile)
	}
	args = append(args, "up", "-d")

	_, err := r.run(ctx, workDir, upTimeout, args...)
	return err
}

// ServiceContainerID resolves the container ID of a service in a running
// project via "ps -q".
func (r *Runner) ServiceContainerID(ctx context.Context, project, composeFile, workDir, service string) (string, error) {
	args := []string{"-p", project}
	if composeFile != "" {
		args = append(args, "-f", composeFile)
	}
	args = append(args, "ps", "-q", service)

	out, err := r.run(ctx, workDir, psTimeout, args...)
	if err != nil {
		return "", err
	}

	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrNoContainer, service)
	}
	// ps -q can emit one line per replica; the first is the routed one.
	if idx := strings.IndexByte(id, '\n'); idx >= 0 {
		id = strings.TrimSpace(id[:idx])
	}
	return id, nil
}

func (r *Runner) run(ctx context.Context, workDir string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = workDir

	r.logger.Debug("running compose command", "args", strings.Join(args, " "), "dir", workDir)

	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w: %s %s", ErrTimeout, r.binary, strings.Join(args, " "))
	}
	if err != nil {
		r.logger.Error("compose command failed",
			"args", strings.Join(args, " "),
			"output", strings.TrimSpace(string(out)),
			"error", err)
		return "", fmt.Errorf("%w: %s: %s", ErrCommandFailed, err, strings.TrimSpace(string(out)))
	}

	return string(out), nil
}
