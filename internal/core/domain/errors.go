package domain

import "go.trai.ch/zerr"

var (
	// ErrRecipeParse is returned for any malformed recipe text: unknown key,
	// malformed binding, missing blank terminator, or bad integer.
	ErrRecipeParse = zerr.New("recipe parse error")

	// ErrUnknownRule is returned when a Build references a rule name that
	// was never declared.
	ErrUnknownRule = zerr.New("unknown rule")

	// ErrDuplicateOutputProducer is returned when two Builds claim the same
	// output path.
	ErrDuplicateOutputProducer = zerr.New("duplicate output producer")

	// ErrZeroJobs is returned when a Rule or Build resolves to a negative
	// jobs cost. A jobs value of zero is not an error: on a Rule it means the
	// default of 1, and on a Build it means no override.
	ErrZeroJobs = zerr.New("jobs must be positive")

	// ErrMissingPrimaryInput is returned when a node with no producing edge
	// is absent from disk at plan time.
	ErrMissingPrimaryInput = zerr.New("missing primary input")

	// ErrEmptyVariableName is returned when a template contains a bare "$"
	// followed by a character that cannot start a variable name.
	ErrEmptyVariableName = zerr.New("empty variable name")

	// ErrWorkerFailed is returned when a spawned command exits non-zero. A
	// command that cannot be spawned at all is reported as the wrapped spawn
	// error instead.
	ErrWorkerFailed = zerr.New("worker failed")

	// ErrDepfileMismatch is returned by the worker when a rule declares
	// gcc-style deps but names no depfile to read them from.
	ErrDepfileMismatch = zerr.New("depfile target mismatch")

	// ErrNoProgressPossible is returned when the scheduler's ready queue is
	// empty but edges remain unfinished, indicating a cycle in the graph.
	ErrNoProgressPossible = zerr.New("no progress possible")

	// ErrBuildFailed is the sentinel wrapped by a Failure message surfaced
	// from a worker, carrying description, command, output, and exit code
	// as structured metadata.
	ErrBuildFailed = zerr.New("build failed")

	// ErrUnknownTarget is returned when an explicitly requested target path
	// names no node in the graph.
	ErrUnknownTarget = zerr.New("unknown target")

	// ErrBuildExecutionFailed marks any error surfaced by the scheduler's
	// execution phase, as opposed to recipe loading or argument errors. It
	// is joined with the underlying cause via errors.Join so callers can
	// still use errors.Is to distinguish exit-code classes.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrOutputPathOutsideRoot is returned by Clean when a declared output
	// or depfile path resolves outside the working directory it was loaded
	// relative to, refusing to delete it.
	ErrOutputPathOutsideRoot = zerr.New("output path resolves outside working directory")
)
