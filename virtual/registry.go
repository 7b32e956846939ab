package virtual

import (
	"sort"

	"github.com/danthegoodman1/icefields/gologger"
	"github.com/danthegoodman1/icefields/table"
	"github.com/danthegoodman1/icefields/utils"
)

var logger = gologger.NewLogger()

type (
	// FieldSpec is the resolved configuration of one virtual field.
	FieldSpec struct {
		Name string

		// Columns are schema positions, ColumnNames the same columns by name.
		Columns     []int
		ColumnNames []string

		GeneratorName string
		gen           FieldGenerator
	}

	// Registry holds everything needed to resolve the fields of one table.
	// It is immutable once built and safe for concurrent use.
	Registry struct {
		table     string
		sessionID string
		schema    *table.Schema

		names  []string
		fields map[string]*FieldSpec

		// physical positions that are also declared virtual
		virtualPositions []int

		keys *KeyResolver
	}
)

// Generator returns the configured generator, or a MissingGeneratorError if
// the field was declared without one.
func (s *FieldSpec) Generator() (FieldGenerator, error) {
	if s.gen == nil {
		return nil, missingGenerator(s.Name)
	}
	return s.gen, nil
}

func (s *FieldSpec) HasGenerator() bool {
	return s.gen != nil
}

// NewRegistry builds the registry for a table. Any configuration problem
// returns a configuration *Error and no registry.
func NewRegistry(cfg TableConfig, schema *table.Schema) (*Registry, error) {
	if schema == nil {
		return nil, missingConfig("", "table %q has no schema", cfg.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	names, err := ParseVirtualFields(cfg.VirtualFields)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		table:     cfg.Name,
		sessionID: utils.GenRandomShortID(),
		schema:    schema,
		names:     names,
		fields:    make(map[string]*FieldSpec, len(names)),
	}
	l := logger.With().Str("table", cfg.Name).Str("sessionID", reg.sessionID).Logger()

	for field, gen := range cfg.FieldGenerators {
		if !utils.ContainsString(names, field) {
			l.Warn().Str("field", field).Str("generator", gen).Msg("ignoring generator for a field that is not virtual")
		}
	}

	for _, name := range names {
		if name == RecordKeyField || name == PartitionPathField {
			if gen := cfg.FieldGenerators[name]; gen != "" {
				return nil, &Error{
					Code:      ErrCodeInvalidConfig,
					Field:     name,
					Generator: gen,
					Message:   "identity fields are generated by key_generator, not a field generator",
				}
			}
			continue
		}

		spec, err := buildFieldSpec(cfg, schema, name)
		if err != nil {
			return nil, err
		}
		if !spec.HasGenerator() {
			l.Warn().Str("field", name).Msg("virtual field has no generator, reads will fail")
		}
		reg.fields[name] = spec
	}

	reg.keys, err = newKeyResolver(cfg, schema, names)
	if err != nil {
		return nil, err
	}

	for _, f := range schema.Fields {
		if reg.IsVirtual(f.Name) {
			reg.virtualPositions = append(reg.virtualPositions, f.Pos)
		}
	}

	l.Debug().Strs("virtualFields", names).Str("keyGenerator", cfg.KeyGenerator).Msg("built virtual field registry")
	return reg, nil
}

func buildFieldSpec(cfg TableConfig, schema *table.Schema, name string) (*FieldSpec, error) {
	cols, colNames, err := parseColumns(name, cfg.FieldRequiredColumns[name], schema)
	if err != nil {
		return nil, err
	}
	spec := &FieldSpec{
		Name:          name,
		Columns:       cols,
		ColumnNames:   colNames,
		GeneratorName: cfg.FieldGenerators[name],
	}
	if spec.GeneratorName == "" {
		return spec, nil
	}
	spec.gen, err = newGenerator(spec.GeneratorName, GeneratorSpec{
		Field:       name,
		Columns:     cols,
		ColumnNames: colNames,
		Props:       cfg.Props,
		Schema:      schema,
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}

func (reg *Registry) Table() string {
	return reg.table
}

// SessionID identifies this registry instance in logs.
func (reg *Registry) SessionID() string {
	return reg.sessionID
}

func (reg *Registry) Schema() *table.Schema {
	return reg.schema
}

// VirtualFields returns the declared virtual field names in sorted order.
func (reg *Registry) VirtualFields() []string {
	out := make([]string, len(reg.names))
	copy(out, reg.names)
	return out
}

func (reg *Registry) IsVirtual(name string) bool {
	i := sort.SearchStrings(reg.names, name)
	return i < len(reg.names) && reg.names[i] == name
}

// IsVirtualAt reports whether the schema column at pos is declared virtual.
func (reg *Registry) IsVirtualAt(pos int) bool {
	name, ok := reg.schema.Name(pos)
	return ok && reg.IsVirtual(name)
}

func (reg *Registry) VirtualFieldPositions() []int {
	out := make([]int, len(reg.virtualPositions))
	copy(out, reg.virtualPositions)
	return out
}

// Spec returns the spec of a non-identity virtual field.
func (reg *Registry) Spec(name string) (*FieldSpec, bool) {
	spec, ok := reg.fields[name]
	return spec, ok
}

// RequiredColumns returns the schema positions a field needs to be resolved.
// Non-virtual fields need their own column.
func (reg *Registry) RequiredColumns(name string) []int {
	switch name {
	case RecordKeyField:
		if reg.keys.recordKeyVirtual {
			return append([]int(nil), reg.keys.recordKeyColumns...)
		}
	case PartitionPathField:
		if reg.keys.partitionPathVirtual {
			return append([]int(nil), reg.keys.partitionPathColumns...)
		}
	default:
		if spec, ok := reg.fields[name]; ok {
			return append([]int(nil), spec.Columns...)
		}
	}
	if pos, ok := reg.schema.Pos(name); ok {
		return []int{pos}
	}
	return nil
}

// ProjectionColumns returns the sorted union of physical columns needed to
// resolve the given fields.
func (reg *Registry) ProjectionColumns(names ...string) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, name := range names {
		for _, pos := range reg.RequiredColumns(name) {
			if _, ok := seen[pos]; ok {
				continue
			}
			seen[pos] = struct{}{}
			out = append(out, pos)
		}
	}
	sort.Ints(out)
	return out
}

func (reg *Registry) IsRecordKeyVirtual() bool {
	return reg.keys.recordKeyVirtual
}

func (reg *Registry) IsPartitionPathVirtual() bool {
	return reg.keys.partitionPathVirtual
}

func (reg *Registry) Keys() *KeyResolver {
	return reg.keys
}

func (reg *Registry) Accessor() *Accessor {
	return &Accessor{reg: reg}
}
