package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/cook/internal/adapters/depfile" //nolint:depguard // wired in app layer
	"go.trai.ch/cook/internal/adapters/logger"  //nolint:depguard // wired in app layer
	"go.trai.ch/cook/internal/adapters/recipe"  //nolint:depguard // wired in app layer
	"go.trai.ch/cook/internal/adapters/shell"   //nolint:depguard // wired in app layer
	"go.trai.ch/cook/internal/adapters/telemetry/progrock"
	"go.trai.ch/cook/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components bundles everything the CLI layer needs after wiring.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			recipe.LoaderNodeID,
			shell.NodeID,
			depfile.NodeID,
			progrock.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.RecipeLoader](ctx)
	if err != nil {
		return nil, err
	}
	runner, err := graft.Dep[ports.CommandRunner](ctx)
	if err != nil {
		return nil, err
	}
	depfiles, err := graft.Dep[ports.DepfileReader](ctx)
	if err != nil {
		return nil, err
	}
	telemetry, err := graft.Dep[ports.Telemetry](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, runner, depfiles, telemetry, log), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	application, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{App: application, Logger: log}, nil
}
