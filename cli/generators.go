package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danthegoodman1/icefields/virtual"
)

// NewGeneratorsCommand creates the generators command.
func NewGeneratorsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generators",
		Short: "List the registered generators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range virtual.RegisteredGenerators() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
