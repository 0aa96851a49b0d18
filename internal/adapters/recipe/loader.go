package recipe

import (
	"os"
	"path/filepath"

	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/zerr"
)

// Loader implements ports.RecipeLoader by reading a recipe file from disk.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the recipe at path, then rebases every path it
// declares so they remain valid relative to the process working directory
// even when the recipe file lives elsewhere.
func (l *Loader) Load(path string) (*domain.Recipe, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a user-supplied CLI argument
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read recipe")
	}

	r, err := Parse(string(data), path)
	if err != nil {
		return nil, err
	}

	if err := rebase(r, filepath.Dir(path)); err != nil {
		return nil, zerr.Wrap(err, "failed to rebase recipe paths")
	}

	return r, nil
}

// rebase adjusts every path a Recipe declares so they resolve correctly
// from the process's current working directory, given that the recipe text
// itself was read from recipeDir.
func rebase(r *domain.Recipe, recipeDir string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	recipeAbs, err := filepath.Abs(recipeDir)
	if err != nil {
		return err
	}
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return err
	}
	if recipeAbs == cwdAbs {
		return nil
	}

	rel, err := filepath.Rel(cwdAbs, recipeAbs)
	if err != nil {
		return err
	}

	rebasePath := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(rel, p)
	}

	for i := range r.Builds {
		b := &r.Builds[i]
		rebaseAll(b.Inputs, rebasePath)
		rebaseAll(b.ImplicitInputs, rebasePath)
		rebaseAll(b.OrderOnlyInputs, rebasePath)
		rebaseAll(b.Outputs, rebasePath)
		rebaseAll(b.ImplicitOutputs, rebasePath)
	}
	r.CacheDir = rebasePath(r.CacheDir)

	return nil
}

func rebaseAll(paths []string, f func(string) string) {
	for i, p := range paths {
		paths[i] = f(p)
	}
}
