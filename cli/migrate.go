package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danthegoodman1/icefields/migrations"
	"github.com/danthegoodman1/icefields/utils"
)

var ErrNoCRDBDSN = errors.New("CRDB_DSN is not set")

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the CockroachDB metastore migrations",
		Long: `Applies the table_configs migrations to the database at CRDB_DSN. The
crdb metastore refuses to start until every migration is applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logToStderr(cmd)
			if utils.CRDB_DSN == "" {
				return ErrNoCRDBDSN
			}
			n, err := migrations.RunMigrations(utils.CRDB_DSN)
			if err != nil {
				return fmt.Errorf("error in migrations.RunMigrations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", n)
			return nil
		},
	}
}
