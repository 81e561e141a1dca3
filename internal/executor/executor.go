// Package executor runs validated commands as host subprocesses under a
// timeout. It never re-validates (the security package has already
// accepted the command by the time a SpawnSpec reaches Run) and it never
// interprets output beyond combining the two streams into the canonical
// form the log store records.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jkaninda/amri/internal/shell"
)

const (
	// maxCaptureBytes caps raw stdout/stderr capture to prevent OOM from
	// chatty commands. The log store applies its own per-entry cap later.
	maxCaptureBytes = 4 << 20 // 4 MB

	defaultTimeout = 30 * time.Second
)

// NoOutputPlaceholder is substituted when a successful command produces no
// output at all, so downstream line counting never sees an empty string.
const NoOutputPlaceholder = "Command completed successfully (no output)"

// ErrTimeout marks executions killed by the timeout supervisor.
var ErrTimeout = errors.New("command timed out")

// ErrSpawn marks commands that never started (bad executable, bad
// directory, resource exhaustion).
var ErrSpawn = errors.New("failed to start command")

// Result is the raw outcome of one subprocess run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CombinedOutput derives the single output string recorded for the run:
// a clean exit yields stdout alone; a failure yields an "exit code N"
// line followed by stderr then stdout, so the diagnostic context always
// survives. An empty combination becomes the fixed placeholder.
func (r *Result) CombinedOutput() string {
	var combined string
	if r.ExitCode == 0 {
		combined = r.Stdout
	} else {
		parts := []string{fmt.Sprintf("exit code %d", r.ExitCode)}
		if r.Stderr != "" {
			parts = append(parts, r.Stderr)
		}
		if r.Stdout != "" {
			parts = append(parts, r.Stdout)
		}
		combined = strings.Join(parts, "\n")
	}
	if strings.TrimSpace(combined) == "" {
		return NoOutputPlaceholder
	}
	return combined
}

// Executor supervises subprocess runs.
type Executor struct {
	logger *slog.Logger
}

// New creates an executor. A nil logger discards execution logs.
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{logger: logger}
}

// Run spawns the shell described by spec and waits for completion or
// timeout. A non-zero exit code is a result, not an error; only spawn
// failures, process-level faults, and timeouts return an error. The
// timeout always terminates the process (group) before Run returns.
func (e *Executor) Run(ctx context.Context, spec shell.SpawnSpec, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Executable, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	cmd.Env = append(os.Environ(), spec.ExtraEnv...)

	configureProcessGroup(cmd)
	// Kill the entire process group on context cancellation (timeout),
	// so children spawned by the command are also terminated.
	cmd.Cancel = func() error {
		killProcessGroup(cmd)
		return nil
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, remaining: maxCaptureBytes}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, remaining: maxCaptureBytes}

	e.logger.Info("executing command",
		slog.String("executable", spec.Executable),
		slog.String("dir", cmd.Dir),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	runErr := cmd.Wait()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		if ctx.Err() != nil {
			e.logger.Warn("command timed out",
				slog.Duration("timeout", timeout),
				slog.Duration("duration", duration),
			)
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}

		// Non-zero exit code is not an error, it's a result.
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitCodeFromProcessState(exitErr.ProcessState)
		} else {
			return nil, fmt.Errorf("command failed: %w", runErr)
		}
	}

	e.logger.Info("command completed",
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration),
		slog.Int("stdout_bytes", stdoutBuf.Len()),
		slog.Int("stderr_bytes", stderrBuf.Len()),
	)

	return &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// limitedWriter wraps a writer and stops writing after a byte limit.
// Excess data is silently discarded, not reported as an error.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.remaining <= 0 {
		return len(p), nil // Silently discard.
	}
	if len(p) > lw.remaining {
		full := len(p)
		n, err := lw.w.Write(p[:lw.remaining])
		lw.remaining -= n
		if err != nil {
			return n, err
		}
		return full, nil
	}
	n, err := lw.w.Write(p)
	lw.remaining -= n
	return n, err
}
