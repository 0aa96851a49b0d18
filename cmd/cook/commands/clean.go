package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove build outputs, depfiles, and the command log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recipePath, err := cmd.Flags().GetString("recipe")
			if err != nil {
				return err
			}
			return c.app.Clean(cmd.Context(), recipePath)
		},
	}
}
