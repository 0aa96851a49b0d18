// Package app implements the application layer for cook: wiring a loaded
// Recipe into a build graph, running it to completion, and cleaning up its
// artifacts.
package app

import (
	"context"
	"errors"
	"runtime"

	"go.trai.ch/cook/internal/adapters/commandlog"
	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/cook/internal/core/ports"
	"go.trai.ch/cook/internal/engine/scheduler"
	"go.trai.ch/cook/internal/engine/state"
	"go.trai.ch/zerr"
)

// App wires together a recipe loader and the adapters a build needs, and
// exposes the two operations the CLI drives: Run and Clean.
type App struct {
	recipeLoader ports.RecipeLoader
	runner       ports.CommandRunner
	depfiles     ports.DepfileReader
	telemetry    ports.Telemetry
	logger       ports.Logger
	// maxJobs overrides the default job budget (logical CPU count) when
	// non-zero. New leaves it at zero.
	maxJobs int
}

// New creates an App from its adapters.
func New(
	loader ports.RecipeLoader,
	runner ports.CommandRunner,
	depfiles ports.DepfileReader,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *App {
	return &App{
		recipeLoader: loader,
		runner:       runner,
		depfiles:     depfiles,
		telemetry:    telemetry,
		logger:       logger,
	}
}

// Run loads the recipe at recipePath, builds its graph, and freshens
// targets (or every sink, if targets is empty). A recipe-load or graph
// error is returned as-is; any failure once execution starts is joined
// with domain.ErrBuildExecutionFailed so callers can tell the two apart
// with errors.Is.
func (a *App) Run(ctx context.Context, recipePath string, targets []string) error {
	recipe, err := a.recipeLoader.Load(recipePath)
	if err != nil {
		return err
	}

	graph, err := domain.BuildGraph(recipe)
	if err != nil {
		return err
	}
	if err := graph.Validate(); err != nil {
		return err
	}

	cacheDir := recipe.CacheDir
	if cacheDir == "" {
		cacheDir = "."
	}

	log, err := commandlog.Open(cacheDir)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := log.Close(); closeErr != nil && a.logger != nil {
			a.logger.Error(zerr.Wrap(closeErr, "failed to close command log"))
		}
	}()

	maxJobs := a.maxJobs
	if maxJobs <= 0 {
		maxJobs = runtime.NumCPU()
	}

	eng := state.NewEngine(graph, log, recipe.Bindings)
	sched := scheduler.New(graph, eng, a.runner, a.depfiles, a.telemetry, a.logger, recipe.Bindings, maxJobs)

	if err := sched.Build(ctx, targets); err != nil {
		return errors.Join(domain.ErrBuildExecutionFailed, err)
	}
	return nil
}
