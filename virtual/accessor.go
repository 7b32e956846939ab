package virtual

import (
	"fmt"
	"strconv"

	"github.com/danthegoodman1/icefields/table"
)

// Accessor resolves field names against records of one table.
type Accessor struct {
	reg *Registry
}

// GetField returns the value of a field. Identity fields go through the
// KeyResolver, fields that are not virtual are read from their column, and
// virtual fields are computed by their generator once their required columns
// are verified.
func (a *Accessor) GetField(name string, r table.Record) (string, error) {
	switch name {
	case RecordKeyField:
		return a.reg.keys.RecordKey(r)
	case PartitionPathField:
		return a.reg.keys.PartitionPath(r)
	}

	spec, ok := a.reg.fields[name]
	if !ok {
		return readColumn(r, name)
	}

	gen, err := spec.Generator()
	if err != nil {
		return "", err
	}
	if err := checkColumns(r, name, spec.GeneratorName, spec.Columns); err != nil {
		return "", err
	}
	if !gen.CanGenerate(r) {
		return "", unresolvable(name, spec.GeneratorName, "", "generator cannot run on record")
	}
	v, err := gen.Generate(r)
	if err != nil {
		return "", &Error{
			Code:      ErrCodeUnresolvableField,
			Field:     name,
			Generator: spec.GeneratorName,
			Message:   "generator failed",
			Err:       err,
		}
	}
	return v, nil
}

// GetFields resolves each name in order. The first failure aborts.
func (a *Accessor) GetFields(names []string, r table.Record) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		v, err := a.GetField(name, r)
		if err != nil {
			return nil, fmt.Errorf("error resolving field %d (%s): %w", i, name, err)
		}
		out[i] = v
	}
	return out, nil
}

// readColumn reads a stored column. Null is the empty string.
func readColumn(r table.Record, name string) (string, error) {
	v, p := r.Get(name)
	switch p {
	case table.Absent:
		return "", unresolvable(name, "", name, "field is not virtual and has no column")
	case table.Null:
		return "", nil
	}
	return table.ValueString(v), nil
}

func checkColumns(r table.Record, field, generator string, cols []int) error {
	for _, pos := range cols {
		_, p := r.GetAt(pos)
		if p == table.Present {
			continue
		}
		col := strconv.Itoa(pos)
		if s := r.Schema(); s != nil {
			if name, ok := s.Name(pos); ok {
				col = name
			}
		}
		return unresolvable(field, generator, col, "required column is %s", p)
	}
	return nil
}
