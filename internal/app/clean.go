package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/cook/internal/adapters/commandlog"
	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/zerr"
)

// Clean loads the recipe at recipePath and removes every produced output,
// its enclosing directory if that leaves it empty, every rule's depfile,
// and finally the command log.
func (a *App) Clean(_ context.Context, recipePath string) error {
	recipe, err := a.recipeLoader.Load(recipePath)
	if err != nil {
		return err
	}

	graph, err := domain.BuildGraph(recipe)
	if err != nil {
		return err
	}

	rootAbs, err := filepath.Abs(".")
	if err != nil {
		return zerr.Wrap(err, "failed to resolve working directory")
	}

	var errs error
	for _, n := range graph.Nodes {
		if n.InEdge < 0 {
			continue
		}
		path := n.Path.String()
		outAbs, err := containedPath(rootAbs, path)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if err := os.Remove(outAbs); err != nil && !os.IsNotExist(err) {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "failed to remove output"), "path", path))
			continue
		}
		removeIfEmptyDir(filepath.Dir(outAbs))
	}

	for _, edge := range graph.Edges {
		depfilePath, err := edge.DepfilePath(recipe.Bindings)
		if err != nil || depfilePath == "" {
			continue
		}
		depAbs, err := containedPath(rootAbs, depfilePath)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if err := os.Remove(depAbs); err != nil && !os.IsNotExist(err) {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "failed to remove depfile"), "path", depfilePath))
		}
	}

	cacheDir := recipe.CacheDir
	if cacheDir == "" {
		cacheDir = "."
	}
	if err := os.Remove(commandlog.Path(cacheDir)); err != nil && !os.IsNotExist(err) {
		errs = errors.Join(errs, zerr.Wrap(err, "failed to remove command log"))
	}

	if a.logger != nil && errs == nil {
		a.logger.Info("clean complete")
	}
	return errs
}

// containedPath resolves path to an absolute form and refuses it with
// ErrOutputPathOutsideRoot if it does not resolve inside root, so a
// malformed or traversal-crafted recipe path can never make Clean delete a
// file outside the working directory it was loaded relative to.
func containedPath(root, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to resolve output path"), "path", path)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to resolve relative path"), "path", path)
	}
	if strings.HasPrefix(rel, "..") {
		return "", zerr.With(domain.ErrOutputPathOutsideRoot, "path", path)
	}

	return abs, nil
}

// removeIfEmptyDir deletes dir if it exists and contains nothing.
// Failure is silent: leaving a directory behind is not a clean error.
func removeIfEmptyDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(dir)
}
