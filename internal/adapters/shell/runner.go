// Package shell implements the worker's process-spawn adapter: tokenizing
// an expanded command line, spawning the child with stdin reading from the
// null device and its stdout/stderr joined into one capture buffer, and
// reporting the result.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.trai.ch/cook/internal/core/ports"
	"go.trai.ch/zerr"
)

// Runner implements ports.CommandRunner using os/exec.
type Runner struct{}

// NewRunner creates a new Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// syncBuffer serializes concurrent writes from the stdout and stderr pipes
// into a single ordered-by-arrival buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Run tokenizes rule.Command with the POSIX-lite splitter, spawns it with
// stdin reading from the null device, and waits for it to exit. Its
// stdout and stderr are joined into a single buffer, plus tee'd to the
// context's telemetry Vertex when one is present.
func (r *Runner) Run(ctx context.Context, rule ports.CmdRule) (ports.RunResult, error) {
	argv := Tokenize(rule.Command)
	if len(argv) == 0 {
		return ports.RunResult{}, nil
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return ports.RunResult{}, zerr.Wrap(err, "failed to open null device")
	}
	defer func() { _ = devNull.Close() }()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // command comes from a trusted recipe
	cmd.Stdin = devNull

	combined := &syncBuffer{}
	var stdout, stderr io.Writer = combined, combined
	if v, ok := ports.VertexFromContext(ctx); ok {
		stdout = io.MultiWriter(combined, v.Stdout())
		stderr = io.MultiWriter(combined, v.Stderr())
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()

	result := ports.RunResult{Output: combined.buf.Bytes()}
	if runErr == nil {
		result.ExitCode = 0
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	// The process could not be spawned at all (missing binary, permissions).
	result.ExitCode = -1
	return result, zerr.With(zerr.Wrap(runErr, "failed to spawn command"), "name", rule.Name)
}
