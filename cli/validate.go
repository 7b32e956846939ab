package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danthegoodman1/icefields/resolver"
	"github.com/danthegoodman1/icefields/source"
	"github.com/danthegoodman1/icefields/table"
	"github.com/danthegoodman1/icefields/virtual"
)

type ValidateOptions struct {
	Config string
	Table  string
	Input  string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a table config by building its registry",
		Long: `Validate builds the generator registry of a table without resolving any
rows. The schema comes from --input when given, otherwise from the columns
listed in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logToStderr(cmd)
			return runValidate(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "table config file, local or s3://")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table whose config is read from the metastore")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "input to take the schema from")

	return cmd
}

func runValidate(ctx context.Context, opts *ValidateOptions, w io.Writer) error {
	cfg, err := tableConfig(ctx, opts.Config, opts.Table)
	if err != nil {
		return err
	}

	var schema *table.Schema
	if opts.Input != "" {
		cfgSchema, err := cfg.Schema()
		if err != nil {
			return err
		}
		src, err := source.Open(ctx, opts.Input, cfgSchema)
		if err != nil {
			return fmt.Errorf("error opening input: %w", err)
		}
		schema = src.Schema()
		src.Close()
	}

	reg, err := resolver.NewRegistry(cfg, schema)
	if err != nil {
		return err
	}
	printRegistry(w, reg)
	return nil
}

func printRegistry(w io.Writer, reg *virtual.Registry) {
	fmt.Fprintf(w, "table %s: ok\n", reg.Table())
	fmt.Fprintf(w, "  columns: %s\n", strings.Join(reg.Schema().ColumnNames(), ", "))
	if gen := reg.Keys().GeneratorName(); gen != "" {
		fmt.Fprintf(w, "  key generator: %s\n", gen)
	}
	if len(reg.VirtualFields()) == 0 {
		fmt.Fprintln(w, "  no virtual fields")
		return
	}
	fmt.Fprintln(w, "  virtual fields:")
	for _, name := range reg.VirtualFields() {
		generator := reg.Keys().GeneratorName()
		if spec, ok := reg.Spec(name); ok {
			generator = spec.GeneratorName
		}
		if generator == "" {
			generator = "<none>"
		}
		var cols []string
		for _, pos := range reg.RequiredColumns(name) {
			if col, ok := reg.Schema().Name(pos); ok {
				cols = append(cols, col)
			}
		}
		fmt.Fprintf(w, "    %s: %s(%s)\n", name, generator, strings.Join(cols, ", "))
	}
}
