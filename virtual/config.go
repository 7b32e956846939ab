package virtual

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/danthegoodman1/icefields/table"
	"github.com/danthegoodman1/icefields/utils"
)

const (
	// RecordKeyField and PartitionPathField are the privileged identity
	// fields. They are always resolved through the table key generator or a
	// direct column read, never through a per-field generator.
	RecordKeyField     = "_record_key"
	PartitionPathField = "_partition_path"
)

// Property bag keys understood by TableConfigFromProps.
const (
	PropTableName       = "table.name"
	PropTableColumns    = "table.columns"
	PropVirtualFields   = "virtual.fields"
	PropKeyGenerator    = "keygenerator.type"
	propFieldPrefix     = "virtual.field."
	propGeneratorSuffix = ".generator"
	propRequiredSuffix  = ".required.columns"
)

// TableConfig is the virtual field configuration of one table.
type TableConfig struct {
	Name string `yaml:"name" json:"name" validate:"required"`

	// Columns is the physical schema in position order. It is optional when
	// the schema comes from the record source.
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty" validate:"omitempty,unique,dive,required"`

	// VirtualFields is a comma separated list of field names.
	VirtualFields string `yaml:"virtual_fields" json:"virtual_fields"`

	// FieldGenerators maps a virtual field to a registered generator name.
	FieldGenerators map[string]string `yaml:"field_generators,omitempty" json:"field_generators,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`

	// FieldRequiredColumns maps a virtual field to a comma separated list of
	// column names or positions.
	FieldRequiredColumns map[string]string `yaml:"field_required_columns,omitempty" json:"field_required_columns,omitempty"`

	KeyGenerator string `yaml:"key_generator,omitempty" json:"key_generator,omitempty"`

	Props Properties `yaml:"props,omitempty" json:"props,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the shape of the config. Generator and column references
// are checked by NewRegistry since they need the schema.
func (c TableConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalidConfig("", "invalid table config: %s", err)
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return missingConfig("", "%s is required", fe.Namespace())
	}
	return invalidConfig("", "%s failed %s validation", fe.Namespace(), fe.Tag())
}

// Schema builds the physical schema from Columns, nil if none are listed.
func (c TableConfig) Schema() (*table.Schema, error) {
	if len(c.Columns) == 0 {
		return nil, nil
	}
	s, err := table.NewSchema(c.Columns...)
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidConfig, Message: "invalid column list", Err: err}
	}
	return s, nil
}

// TableConfigFromProps builds a TableConfig from a flat property bag. Every
// key is also kept in Props so generator factories can read their own.
func TableConfigFromProps(props map[string]string) (TableConfig, error) {
	cfg := TableConfig{
		Name:          props[PropTableName],
		Columns:       utils.SplitList(props[PropTableColumns]),
		VirtualFields: props[PropVirtualFields],
		KeyGenerator:  strings.TrimSpace(props[PropKeyGenerator]),
		Props:         make(Properties, len(props)),
	}

	for k, v := range props {
		cfg.Props[k] = v
		if !strings.HasPrefix(k, propFieldPrefix) {
			continue
		}
		rest := strings.TrimPrefix(k, propFieldPrefix)
		switch {
		case strings.HasSuffix(rest, propGeneratorSuffix):
			field := strings.TrimSuffix(rest, propGeneratorSuffix)
			if field == "" {
				return TableConfig{}, invalidConfig("", "property %s has no field name", k)
			}
			if cfg.FieldGenerators == nil {
				cfg.FieldGenerators = make(map[string]string)
			}
			cfg.FieldGenerators[field] = strings.TrimSpace(v)
		case strings.HasSuffix(rest, propRequiredSuffix):
			field := strings.TrimSuffix(rest, propRequiredSuffix)
			if field == "" {
				return TableConfig{}, invalidConfig("", "property %s has no field name", k)
			}
			if cfg.FieldRequiredColumns == nil {
				cfg.FieldRequiredColumns = make(map[string]string)
			}
			cfg.FieldRequiredColumns[field] = v
		default:
			return TableConfig{}, invalidConfig("", "unknown virtual field property %s", k)
		}
	}
	return cfg, nil
}

// Properties returns the config as a flat property bag, the inverse of
// TableConfigFromProps.
func (c TableConfig) Properties() Properties {
	props := make(Properties, len(c.Props)+4)
	for k, v := range c.Props {
		props[k] = v
	}
	if c.Name != "" {
		props[PropTableName] = c.Name
	}
	if len(c.Columns) > 0 {
		props[PropTableColumns] = strings.Join(c.Columns, ",")
	}
	if c.VirtualFields != "" {
		props[PropVirtualFields] = c.VirtualFields
	}
	if c.KeyGenerator != "" {
		props[PropKeyGenerator] = c.KeyGenerator
	}
	for field, gen := range c.FieldGenerators {
		props[propFieldPrefix+field+propGeneratorSuffix] = gen
	}
	for field, cols := range c.FieldRequiredColumns {
		props[propFieldPrefix+field+propRequiredSuffix] = cols
	}
	return props
}

// ParseVirtualFields parses a comma separated field list into sorted, de-duplicated
// names. A blank list is no fields. Empty entries like "a,,b" are rejected.
func ParseVirtualFields(s string) ([]string, error) {
	tokens := utils.SplitList(s)
	if len(tokens) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(tokens))
	names := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			return nil, invalidConfig("", "virtual field list %q has an empty entry at %d", s, i)
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		names = append(names, tok)
	}
	sort.Strings(names)
	return names, nil
}

// parseColumns parses a comma separated list of column names or positions and
// normalizes it to positions in the schema. Tokens that parse as integers are
// positions. A blank list is no columns.
func parseColumns(field, s string, schema *table.Schema) ([]int, []string, error) {
	tokens := utils.SplitList(s)
	if len(tokens) == 0 {
		return nil, nil, nil
	}
	positions := make([]int, 0, len(tokens))
	names := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if tok == "" {
			return nil, nil, invalidConfig(field, "column list %q has an empty entry at %d", s, i)
		}
		if n, err := strconv.Atoi(tok); err == nil {
			name, ok := schema.Name(n)
			if !ok {
				return nil, nil, &Error{
					Code:    ErrCodeUnknownColumn,
					Field:   field,
					Column:  tok,
					Message: fmt.Sprintf("column position %d is outside a schema of %d columns", n, schema.Len()),
				}
			}
			positions = append(positions, n)
			names = append(names, name)
			continue
		}
		pos, ok := schema.Pos(tok)
		if !ok {
			return nil, nil, &Error{
				Code:    ErrCodeUnknownColumn,
				Field:   field,
				Column:  tok,
				Message: "column is not in the table schema",
			}
		}
		positions = append(positions, pos)
		names = append(names, tok)
	}
	return positions, names, nil
}
