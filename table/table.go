package table

import (
	"errors"
	"fmt"
)

type (
	// Presence is the result of looking up a column on a record.
	Presence int

	Field struct {
		Name string
		// Pos is the position of the column within the schema
		Pos int
	}

	// Schema is the ordered set of physical columns of a table.
	Schema struct {
		Fields []Field
		byName map[string]int
	}

	// Record is a single physically stored row. Values may be read by column
	// name or by schema position.
	Record interface {
		Schema() *Schema
		Get(name string) (any, Presence)
		GetAt(pos int) (any, Presence)
	}

	Row struct {
		// The row number within the source it was read from
		Num    int64
		schema *Schema

		// The list of column values, same order as the schema fields
		ColVals []any
	}
)

const (
	// Absent means the column is not part of the schema
	Absent Presence = iota
	Null
	Present
)

var (
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrEmptyColumnName = errors.New("empty column name")
	ErrColumnCount     = errors.New("column value count does not match schema")
)

func (p Presence) String() string {
	switch p {
	case Present:
		return "present"
	case Null:
		return "null"
	default:
		return "absent"
	}
}

// NewSchema builds a schema from column names, positions follow the given order.
func NewSchema(colNames ...string) (*Schema, error) {
	s := &Schema{
		Fields: make([]Field, 0, len(colNames)),
		byName: make(map[string]int, len(colNames)),
	}
	for i, name := range colNames {
		if name == "" {
			return nil, fmt.Errorf("column %d: %w", i, ErrEmptyColumnName)
		}
		if _, exists := s.byName[name]; exists {
			return nil, fmt.Errorf("column %q: %w", name, ErrDuplicateColumn)
		}
		s.byName[name] = i
		s.Fields = append(s.Fields, Field{Name: name, Pos: i})
	}
	return s, nil
}

// MustSchema is NewSchema that panics, for fixtures and static schemas.
func MustSchema(colNames ...string) *Schema {
	s, err := NewSchema(colNames...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Pos(name string) (int, bool) {
	pos, ok := s.byName[name]
	return pos, ok
}

func (s *Schema) Name(pos int) (string, bool) {
	if pos < 0 || pos >= len(s.Fields) {
		return "", false
	}
	return s.Fields[pos].Name, true
}

func (s *Schema) Len() int {
	return len(s.Fields)
}

func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// NewRow creates a row over the schema, vals must be in schema order.
func NewRow(schema *Schema, num int64, vals []any) (*Row, error) {
	if len(vals) != schema.Len() {
		return nil, fmt.Errorf("got %d values for %d columns: %w", len(vals), schema.Len(), ErrColumnCount)
	}
	return &Row{
		Num:     num,
		schema:  schema,
		ColVals: vals,
	}, nil
}

// RowFromMap lays out a map row against the schema. Schema columns missing
// from the map are null, map keys missing from the schema are dropped.
func RowFromMap(schema *Schema, num int64, m map[string]any) *Row {
	vals := make([]any, schema.Len())
	for _, f := range schema.Fields {
		vals[f.Pos] = m[f.Name]
	}
	return &Row{
		Num:     num,
		schema:  schema,
		ColVals: vals,
	}
}

func (r *Row) Schema() *Schema {
	return r.schema
}

func (r *Row) Get(name string) (any, Presence) {
	pos, ok := r.schema.Pos(name)
	if !ok {
		return nil, Absent
	}
	return r.GetAt(pos)
}

func (r *Row) GetAt(pos int) (any, Presence) {
	if pos < 0 || pos >= len(r.ColVals) {
		return nil, Absent
	}
	v := deref(r.ColVals[pos])
	if v == nil {
		return nil, Null
	}
	return v, Present
}

// Map returns the row as a column name to value map
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.ColVals))
	for _, f := range r.schema.Fields {
		m[f.Name] = r.ColVals[f.Pos]
	}
	return m
}
