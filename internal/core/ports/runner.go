// Package ports defines the core interfaces the engine depends on.
package ports

import (
	"context"

	"go.trai.ch/cook/internal/core/domain"
)

// CmdRule is the immutable snapshot of an edge's expanded command that a
// worker needs to run it. It owns no reference back into the graph: workers
// never touch the graph or command log directly.
type CmdRule struct {
	Name    string
	Command string
	Depfile string
	Deps    domain.DepsFormat
}

// RunResult carries a completed command's combined output and exit code.
type RunResult struct {
	// Output is stdout and stderr joined into a single buffer, in the order
	// bytes were produced by the child process.
	Output []byte
	// ExitCode is the process's exit status, or -1 if it could not be spawned.
	ExitCode int
}

// CommandRunner spawns one child process to completion per call.
//
//go:generate go run go.uber.org/mock/mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks
type CommandRunner interface {
	// Run tokenizes and spawns rule.Command, waits for it to exit, and
	// returns its combined output and exit code. A non-nil error indicates
	// the process could not be spawned at all; a non-zero ExitCode with a
	// nil error indicates it ran and failed.
	Run(ctx context.Context, rule CmdRule) (RunResult, error)
}
