package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"ftr/internal/domain"
)

// waitDelay bounds how long Wait blocks on output pipes after the process is gone
const waitDelay = 2 * time.Second

// Runner executes forge as a child process
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new Runner
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Run executes inv and captures stdout and stderr in full.
// A non-zero exit is not an error: forge exits non-zero when tests fail.
// The returned error is set when the process could not be started, or when
// ctx was cancelled and the process killed; output captured so far is kept.
func (r *Runner) Run(ctx context.Context, inv Invocation) (domain.ExecResult, error) {
	result := domain.ExecResult{Command: inv.Args, Dir: inv.Dir}
	if len(inv.Args) == 0 {
		return result, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	cmd.Env = os.Environ()
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Signaled = result.ExitCode == -1
	default:
		return result, fmt.Errorf("launch %s: %w", inv.Args[0], err)
	}

	r.logger.Debug("forge finished", "dir", inv.Dir, "exit", result.ExitCode, "duration", result.Duration)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	return result, nil
}
