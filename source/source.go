package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danthegoodman1/icefields/gologger"
	"github.com/danthegoodman1/icefields/s3_helper"
	"github.com/danthegoodman1/icefields/table"
)

var (
	logger = gologger.NewLogger()

	ErrUnknownFormat = errors.New("unknown input format")
	ErrNestedSchema  = errors.New("nested parquet schemas are not supported")
	ErrNotJSONObject = errors.New("line is not a JSON object")
	ErrNoSchema      = errors.New("source needs a schema")
)

type (
	// Source yields the stored records of a table. Every row shares Schema.
	Source interface {
		Schema() *table.Schema
		// Next returns io.EOF once the source is exhausted
		Next(ctx context.Context) (*table.Row, error)
		Close() error
	}

	// MapSource serves rows already decoded into maps.
	MapSource struct {
		schema *table.Schema
		rows   []map[string]any
		pos    int
	}
)

// Open picks the source for uri by scheme and extension:
//   - kafka://broker1,broker2/topic?group=g&max=N
//   - s3://bucket/key.parquet and local *.parquet files
//   - *.json / *.ndjson files, or - for stdin
//
// schema may be nil for parquet (taken from the file footer) and NDJSON
// (inferred from the rows).
func Open(ctx context.Context, uri string, schema *table.Schema) (Source, error) {
	switch {
	case strings.HasPrefix(uri, KafkaScheme):
		cfg, err := ParseKafkaURI(uri)
		if err != nil {
			return nil, err
		}
		return NewKafkaSource(cfg, schema)
	case strings.HasSuffix(uri, ".parquet") && s3_helper.IsURI(uri):
		return NewS3ParquetSource(ctx, uri)
	case strings.HasSuffix(uri, ".parquet"):
		return NewLocalParquetSource(uri)
	case uri == "-":
		return newJSONSource(os.Stdin, schema)
	case filepath.Ext(uri) == ".json" || filepath.Ext(uri) == ".ndjson":
		f, err := os.Open(uri)
		if err != nil {
			return nil, fmt.Errorf("error in os.Open: %w", err)
		}
		return newJSONSource(f, schema)
	default:
		return nil, fmt.Errorf("%q: %w", uri, ErrUnknownFormat)
	}
}

func newJSONSource(r io.ReadCloser, schema *table.Schema) (Source, error) {
	if schema != nil {
		return NewNDJSONSource(r, schema), nil
	}
	defer r.Close()
	rows, err := ReadNDJSON(r)
	if err != nil {
		return nil, err
	}
	schema, err = InferSchema(rows)
	if err != nil {
		return nil, err
	}
	return NewMapSource(schema, rows), nil
}

func NewMapSource(schema *table.Schema, rows []map[string]any) *MapSource {
	return &MapSource{schema: schema, rows: rows}
}

func (ms *MapSource) Schema() *table.Schema {
	return ms.schema
}

func (ms *MapSource) Next(ctx context.Context) (*table.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ms.pos >= len(ms.rows) {
		return nil, io.EOF
	}
	row := table.RowFromMap(ms.schema, int64(ms.pos), ms.rows[ms.pos])
	ms.pos++
	return row, nil
}

func (ms *MapSource) Close() error {
	return nil
}

// InferSchema builds a schema from the union of the row keys in sorted order.
func InferSchema(rows []map[string]any) (*table.Schema, error) {
	seen := make(map[string]struct{})
	var cols []string
	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	s, err := table.NewSchema(cols...)
	if err != nil {
		return nil, fmt.Errorf("error in table.NewSchema: %w", err)
	}
	return s, nil
}

// ReadAll drains src. The source is not closed.
func ReadAll(ctx context.Context, src Source) ([]*table.Row, error) {
	var rows []*table.Row
	for {
		row, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
