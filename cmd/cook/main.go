// Package main is the entry point for the cook build tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/cook/cmd/cook/commands"
	"go.trai.ch/cook/internal/app"
	"go.trai.ch/cook/internal/core/domain"
	_ "go.trai.ch/cook/internal/wiring"
)

// componentProvider returns the wired application components.
type componentProvider func(context.Context) (*app.Components, error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, func(ctx context.Context) (*app.Components, error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, err
	}))
}

func run(ctx context.Context, args []string, stderr io.Writer, provider componentProvider) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, err := provider(ctx)
	if err != nil {
		// The logger isn't available yet if wiring itself failed.
		_, _ = fmt.Fprintf(stderr, "%+v\n", err)
		return 1
	}

	cli := commands.New(components.App)
	cli.SetArgs(args)
	cli.SetOutput(os.Stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, domain.ErrBuildExecutionFailed) {
			components.Logger.Error(err)
			return 2
		}
		components.Logger.Error(err)
		return 1
	}
	return 0
}
