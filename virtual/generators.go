package virtual

import (
	"strings"

	"github.com/danthegoodman1/icefields/table"
)

const (
	GeneratorCommaDelimited = "comma_delimited"

	CommaDelimiter = ","
)

func init() {
	RegisterGenerator(GeneratorCommaDelimited, NewCommaDelimitedGenerator)
}

// CommaDelimitedGenerator joins the string values of its required columns,
// in configured order, with a comma.
type CommaDelimitedGenerator struct {
	columns []int
}

func NewCommaDelimitedGenerator(spec GeneratorSpec) (FieldGenerator, error) {
	if len(spec.Columns) == 0 {
		return nil, missingConfig(spec.Field, "%s needs at least one required column", GeneratorCommaDelimited)
	}
	return &CommaDelimitedGenerator{
		columns: append([]int(nil), spec.Columns...),
	}, nil
}

func (g *CommaDelimitedGenerator) CanGenerate(r table.Record) bool {
	return allPresent(r, g.columns)
}

func (g *CommaDelimitedGenerator) Generate(r table.Record) (string, error) {
	if !g.CanGenerate(r) {
		return "", ErrCannotGenerate
	}
	return strings.Join(columnValues(r, g.columns), CommaDelimiter), nil
}

func columnValues(r table.Record, cols []int) []string {
	vals := make([]string, len(cols))
	for i, pos := range cols {
		v, _ := r.GetAt(pos)
		vals[i] = table.ValueString(v)
	}
	return vals
}
