package source

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/xitongsys/parquet-go-source/local"
	s3_pq "github.com/xitongsys/parquet-go-source/s3"
	"github.com/xitongsys/parquet-go/reader"
	pqfile "github.com/xitongsys/parquet-go/source"

	"github.com/danthegoodman1/icefields/s3_helper"
	"github.com/danthegoodman1/icefields/table"
)

const parquetBatchSize = 1024

type (
	// ParquetSource reads the rows of a flat parquet file in batches.
	ParquetSource struct {
		file   pqfile.ParquetFile
		pr     *reader.ParquetReader
		schema *table.Schema

		total int64
		read  int64
		batch []any
		pos   int
	}
)

func NewLocalParquetSource(fileName string) (*ParquetSource, error) {
	fr, err := local.NewLocalFileReader(fileName)
	if err != nil {
		return nil, fmt.Errorf("error in NewLocalFileReader: %w", err)
	}
	return NewParquetSource(fr)
}

func NewS3ParquetSource(ctx context.Context, uri string) (*ParquetSource, error) {
	bucket, key, err := s3_helper.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	client, err := s3_helper.NewClient()
	if err != nil {
		return nil, err
	}
	r, err := s3_pq.NewS3FileReaderWithParams(ctx, s3_pq.S3FileReaderParams{
		Bucket:   bucket,
		Key:      key,
		S3Client: client,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating new s3 file reader: %w", err)
	}
	logger.Debug().Str("bucket", bucket).Str("key", key).Msg("reading parquet from s3")
	return NewParquetSource(r)
}

// NewParquetSource takes ownership of file and closes it on error.
func NewParquetSource(file pqfile.ParquetFile) (*ParquetSource, error) {
	pr, err := reader.NewParquetReader(file, nil, 4)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("error creating parquet reader: %w", err)
	}

	var cols []string
	// element 0 is the root
	for _, el := range pr.Footer.Schema[1:] {
		if el.NumChildren != nil && *el.NumChildren > 0 {
			pr.ReadStop()
			file.Close()
			return nil, fmt.Errorf("column %s: %w", el.Name, ErrNestedSchema)
		}
		cols = append(cols, el.Name)
	}
	schema, err := table.NewSchema(cols...)
	if err != nil {
		pr.ReadStop()
		file.Close()
		return nil, fmt.Errorf("error in table.NewSchema: %w", err)
	}

	return &ParquetSource{
		file:   file,
		pr:     pr,
		schema: schema,
		total:  pr.GetNumRows(),
	}, nil
}

func (ps *ParquetSource) Schema() *table.Schema {
	return ps.schema
}

func (ps *ParquetSource) Next(ctx context.Context) (*table.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ps.pos >= len(ps.batch) {
		if ps.read >= ps.total {
			return nil, io.EOF
		}
		n := ps.total - ps.read
		if n > parquetBatchSize {
			n = parquetBatchSize
		}
		batch, err := ps.pr.ReadByNumber(int(n))
		if err != nil {
			return nil, fmt.Errorf("error in ReadByNumber: %w", err)
		}
		if len(batch) == 0 {
			return nil, io.EOF
		}
		ps.batch = batch
		ps.pos = 0
	}

	num := ps.read
	item := ps.batch[ps.pos]
	ps.pos++
	ps.read++

	// row is a struct with one field per leaf column, in schema order
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	vals := make([]any, ps.schema.Len())
	for i := 0; i < v.NumField() && i < len(vals); i++ {
		vals[i] = v.Field(i).Interface()
	}
	return table.NewRow(ps.schema, num, vals)
}

func (ps *ParquetSource) Close() error {
	ps.pr.ReadStop()
	return ps.file.Close()
}
