// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/cook/internal/adapters/depfile"
	_ "go.trai.ch/cook/internal/adapters/logger"
	_ "go.trai.ch/cook/internal/adapters/recipe"
	_ "go.trai.ch/cook/internal/adapters/shell"
	_ "go.trai.ch/cook/internal/adapters/telemetry/progrock"
	// Register app nodes.
	_ "go.trai.ch/cook/internal/app"
)
