package parquet_accumulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/writer"
)

var ErrNoColumns = errors.New("rows have no typed columns")

// WriteParquet writes rows as one parquet file with a schema accumulated
// from the rows themselves. It returns the accumulated column names.
func WriteParquet(w io.Writer, rows []map[string]any) ([]string, error) {
	accumulator := NewParquetAccumulator()
	for _, row := range rows {
		accumulator.WriteRow(row)
	}
	cols := accumulator.GetColumnNames()
	if len(cols) == 0 {
		return nil, ErrNoColumns
	}

	parquetSchema, err := accumulator.GetSchemaString()
	if err != nil {
		return nil, fmt.Errorf("error in GetSchemaString: %w", err)
	}
	pw, err := writer.NewJSONWriterFromWriter(parquetSchema, w, 4)
	if err != nil {
		return nil, fmt.Errorf("error in NewJSONWriterFromWriter: %w", err)
	}

	for _, row := range rows {
		rowBytes, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("error in json.Marshal of row: %w", err)
		}
		if err := pw.Write(string(rowBytes)); err != nil {
			return nil, fmt.Errorf("error in pw.Write for row %s: %w", string(rowBytes), err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("error in pw.WriteStop: %w", err)
	}
	return cols, nil
}
