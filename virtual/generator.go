package virtual

import (
	"errors"
	"strconv"

	"github.com/danthegoodman1/icefields/table"
)

type (
	// FieldGenerator computes the value of one virtual field from the other
	// columns of a record. Implementations are immutable once constructed and
	// are shared by every record read during a table session.
	FieldGenerator interface {
		// CanGenerate is true iff every source column the generator reads is
		// present and non-null on r.
		CanGenerate(r table.Record) bool

		// Generate computes the field. It returns ErrCannotGenerate when
		// CanGenerate(r) is false.
		Generate(r table.Record) (string, error)
	}

	// KeyGenerator is a FieldGenerator that computes the record key and the
	// partition path. Generate yields the record key.
	KeyGenerator interface {
		FieldGenerator

		// RecordKey needs only the record key columns, it returns
		// ErrCannotGenerate when one of them is missing or null.
		RecordKey(r table.Record) (string, error)
		// PartitionPath needs only the partition path columns. Null values
		// become DefaultPartitionPath.
		PartitionPath(r table.Record) (string, error)
		// Key computes both components in one call.
		Key(r table.Record) (Key, error)

		// RecordKeyColumns and PartitionPathColumns are schema positions.
		RecordKeyColumns() []int
		PartitionPathColumns() []int
	}

	// Key is the pair of identity fields of a record.
	Key struct {
		RecordKey     string `json:"record_key"`
		PartitionPath string `json:"partition_path"`
	}

	// GeneratorSpec is everything a factory gets to construct a generator.
	GeneratorSpec struct {
		// Field is the virtual field being generated, empty for the table key generator.
		Field string

		// Columns are the configured required columns as schema positions,
		// ColumnNames are the same columns by name.
		Columns     []int
		ColumnNames []string

		Props  Properties
		Schema *table.Schema
	}

	GeneratorFactory func(spec GeneratorSpec) (FieldGenerator, error)

	// Properties is the raw table property bag.
	Properties map[string]string
)

var ErrCannotGenerate = errors.New("generator cannot run on record")

func (p Properties) Get(key, fallback string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (p Properties) Bool(key string) (bool, error) {
	v := p.Get(key, "false")
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, invalidConfig("", "property %s: %q is not a bool", key, v)
	}
	return b, nil
}

// ResolveColumns resolves a column list from the property bag against the schema.
func (s GeneratorSpec) ResolveColumns(key string) ([]int, []string, error) {
	return parseColumns(s.Field, s.Props[key], s.Schema)
}

// allPresent is the shared CanGenerate check over schema positions.
func allPresent(r table.Record, cols []int) bool {
	for _, pos := range cols {
		if _, p := r.GetAt(pos); p != table.Present {
			return false
		}
	}
	return true
}
