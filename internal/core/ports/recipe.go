package ports

import "go.trai.ch/cook/internal/core/domain"

// RecipeLoader parses a recipe file from disk into a domain.Recipe.
//
//go:generate go run go.uber.org/mock/mockgen -source=recipe.go -destination=mocks/mock_recipe.go -package=mocks
type RecipeLoader interface {
	// Load reads and parses the recipe file at path. Paths declared inside
	// the recipe are rebased so they remain valid relative to the process
	// working directory, regardless of where the recipe file itself lives.
	Load(path string) (*domain.Recipe, error)
}

// RecipeSerializer renders a domain.Recipe back to its text form, used by
// "cook" round-trip tooling and tests.
type RecipeSerializer interface {
	Serialize(recipe *domain.Recipe) ([]byte, error)
}
