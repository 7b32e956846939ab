package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/danthegoodman1/gojsonutils"

	"github.com/danthegoodman1/icefields/table"
)

const maxLineBytes = 10 << 20

type (
	// NDJSONSource reads one JSON object per line. Nested objects are
	// flattened into dotted column names.
	NDJSONSource struct {
		r       io.ReadCloser
		scanner *bufio.Scanner
		schema  *table.Schema
		num     int64
		line    int64
	}
)

var ErrTrailingData = errors.New("trailing data after JSON value")

// ParseJSONRow decodes a JSON object and flattens it to one level. Numbers
// are kept as json.Number so large integer ids keep every digit.
func ParseJSONRow(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("error in json.Decode: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	jsonMap, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotJSONObject
	}
	return FlattenRow(jsonMap)
}

func FlattenRow(row map[string]any) (map[string]any, error) {
	flat, err := gojsonutils.Flatten(row, nil)
	if err != nil {
		return nil, fmt.Errorf("error flattening JSON map: %w", err)
	}
	flatMap, ok := flat.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("got a non flat map: %+v", flat)
	}
	return flatMap, nil
}

// ReadNDJSON reads and flattens every non blank line of r.
func ReadNDJSON(r io.Reader) ([]map[string]any, error) {
	scanner := newScanner(r)
	var rows []map[string]any
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		row, err := ParseJSONRow(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning ndjson: %w", err)
	}
	return rows, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

func NewNDJSONSource(r io.ReadCloser, schema *table.Schema) *NDJSONSource {
	return &NDJSONSource{
		r:       r,
		scanner: newScanner(r),
		schema:  schema,
	}
}

func (s *NDJSONSource) Schema() *table.Schema {
	return s.schema
}

func (s *NDJSONSource) Next(ctx context.Context) (*table.Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("error scanning ndjson: %w", err)
			}
			return nil, io.EOF
		}
		s.line++
		b := bytes.TrimSpace(s.scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		m, err := ParseJSONRow(b)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", s.line, err)
		}
		row := table.RowFromMap(s.schema, s.num, m)
		s.num++
		return row, nil
	}
}

func (s *NDJSONSource) Close() error {
	return s.r.Close()
}
