// Package worker runs one edge's command to completion and reports the
// result back to the scheduler. A worker never touches the build graph or
// command log; it only reads an edge's expanded command line and, on
// success, the depfile it names.
package worker

import (
	"context"

	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/cook/internal/core/ports"
	"go.trai.ch/zerr"
)

// Result is everything the scheduler needs to advance an edge after its
// command has run, successfully or not.
type Result struct {
	Edge     *domain.Edge
	Deps     []string
	Output   []byte
	ExitCode int
	// Err is non-nil for a spawn failure, a non-zero exit, or a depfile
	// read failure. A nil Err means the edge completed successfully.
	Err error
}

// Run builds a CmdRule snapshot from edge, spawns it via runner, and, for
// GCC-style dependency rules, ingests the resulting depfile.
func Run(
	ctx context.Context,
	runner ports.CommandRunner,
	depfiles ports.DepfileReader,
	edge *domain.Edge,
	bindings map[string]string,
) Result {
	res := Result{Edge: edge}

	cmd, err := edge.Command(bindings)
	if err != nil {
		res.Err = err
		return res
	}
	depfilePath, err := edge.DepfilePath(bindings)
	if err != nil {
		res.Err = err
		return res
	}

	rule := ports.CmdRule{
		Name:    edge.Rule.Name,
		Command: cmd,
		Depfile: depfilePath,
		Deps:    edge.Rule.Deps,
	}

	runResult, err := runner.Run(ctx, rule)
	res.Output = runResult.Output
	res.ExitCode = runResult.ExitCode
	if err != nil {
		res.ExitCode = -1
		res.Err = zerr.With(zerr.Wrap(err, "failed to spawn command"), "rule", edge.Rule.Name)
		return res
	}
	if runResult.ExitCode != 0 {
		res.Err = zerr.With(domain.ErrWorkerFailed, "rule", edge.Rule.Name)
		return res
	}

	if edge.Rule.Deps == domain.DepsGCC {
		if depfilePath == "" {
			res.Err = zerr.With(domain.ErrDepfileMismatch, "rule", edge.Rule.Name)
			return res
		}
		deps, err := depfiles.Read(depfilePath, "")
		if err != nil {
			res.Err = err
			return res
		}
		res.Deps = deps
	}

	return res
}
