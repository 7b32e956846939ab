package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danthegoodman1/icefields/datastore"
	"github.com/danthegoodman1/icefields/resolver"
	"github.com/danthegoodman1/icefields/source"
	"github.com/danthegoodman1/icefields/utils"
)

const (
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

var ErrRowsFailed = errors.New("some rows failed to resolve")

type ResolveOptions struct {
	Config string
	Table  string
	Input  string
	Fields string
	Format string
	Out    string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the virtual fields of every row of an input",
		Long: `Resolve reads rows from --input and derives the identity fields and the
requested fields of each one.

Inputs: *.parquet (local or s3://), *.json / *.ndjson, - for stdin, or
kafka://broker1,broker2/topic?group=g&rate=100&max=1000. Kafka inputs need
max, the batch ends after that many messages.

The json format writes one object per row to --out (default stdout), rows
that fail carry _row, _error and _code instead. The parquet format writes
one file per partition path under --out, a directory or s3:// prefix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logToStderr(cmd)
			return runResolve(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "table config file, local or s3://")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table whose config is read from the metastore")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "rows to resolve")
	cmd.Flags().StringVar(&opts.Fields, "fields", "", "comma separated fields, defaults to every virtual field")
	cmd.Flags().StringVar(&opts.Format, "format", FormatJSON, "output format (json|parquet)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "-", "output file for json, directory or s3:// prefix for parquet")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runResolve(ctx context.Context, opts *ResolveOptions, stdout io.Writer) error {
	if opts.Format != FormatJSON && opts.Format != FormatParquet {
		return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, []string{FormatJSON, FormatParquet})
	}
	if opts.Format == FormatParquet && (opts.Out == "" || opts.Out == "-") {
		return fmt.Errorf("the parquet format needs --out")
	}

	cfg, err := tableConfig(ctx, opts.Config, opts.Table)
	if err != nil {
		return err
	}
	// parquet inputs carry their own schema, the config columns serve the rest
	schema, err := cfg.Schema()
	if err != nil {
		return err
	}
	src, err := source.Open(ctx, opts.Input, schema)
	if err != nil {
		return fmt.Errorf("error opening input: %w", err)
	}
	defer src.Close()

	reg, err := resolver.NewRegistry(cfg, src.Schema())
	if err != nil {
		return err
	}
	b, err := resolver.Resolve(ctx, reg, src, utils.SplitList(opts.Fields))
	if err != nil {
		return err
	}

	switch opts.Format {
	case FormatJSON:
		err = writeJSONLines(opts.Out, stdout, b)
	case FormatParquet:
		err = writeParquetParts(ctx, opts.Out, stdout, b)
	}
	if err != nil {
		return err
	}

	logger.Info().Str("table", b.Table).Str("batchID", b.ID).Int64("rows", b.Stats.NumRows).Int64("errors", b.Stats.NumErrors).Int64("partitions", b.Stats.NumPartitions).Msg("resolved input")
	if b.Stats.NumErrors > 0 {
		return fmt.Errorf("%d of %d rows: %w", b.Stats.NumErrors, b.Stats.NumRows, ErrRowsFailed)
	}
	return nil
}

// createOutput opens the json output file.
var createOutput = func(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

func writeJSONLines(out string, stdout io.Writer, b *resolver.Batch) (err error) {
	w := stdout
	if out != "" && out != "-" {
		f, createErr := createOutput(out)
		if createErr != nil {
			return fmt.Errorf("error creating %s: %w", out, createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("error closing %s: %w", out, closeErr)
			}
		}()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, res := range b.Rows {
		line := b.Record(res)
		if res.Failed() {
			line = map[string]any{
				"_row":   res.Num,
				"_error": res.Error,
				"_code":  res.Code,
			}
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("error encoding row %d: %w", res.Num, err)
		}
	}
	return nil
}

func writeParquetParts(ctx context.Context, out string, stdout io.Writer, b *resolver.Batch) error {
	ds, err := datastore.New(out)
	if err != nil {
		return fmt.Errorf("error in datastore.New: %w", err)
	}
	defer ds.Shutdown(ctx)

	res := &resolver.Resolver{DataStore: ds}
	parts, err := res.WriteParts(ctx, b)
	if err != nil {
		return err
	}
	for _, p := range parts {
		fmt.Fprintf(stdout, "%s\t%d rows\t%d bytes\n", p.FileName, p.Rows, p.Bytes)
	}
	return nil
}
