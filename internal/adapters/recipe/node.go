package recipe

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/cook/internal/core/ports"
)

// LoaderNodeID is the unique identifier for the recipe Loader Graft node.
const LoaderNodeID graft.ID = "adapter.recipe_loader"

func init() {
	graft.Register(graft.Node[ports.RecipeLoader]{
		ID:        LoaderNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.RecipeLoader, error) {
			return NewLoader(), nil
		},
	})
}
