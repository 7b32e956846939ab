package virtual

import (
	"errors"

	"github.com/danthegoodman1/icefields/table"
	"github.com/danthegoodman1/icefields/utils"
)

// KeyResolver resolves the record key and partition path of records. Each is
// either read from its own column or taken from the table key generator when
// declared virtual. One key generator serves both.
type KeyResolver struct {
	generator     KeyGenerator
	generatorName string

	recordKeyVirtual     bool
	partitionPathVirtual bool

	// schema positions verified before the generator runs for each role
	recordKeyColumns     []int
	partitionPathColumns []int
}

func newKeyResolver(cfg TableConfig, schema *table.Schema, names []string) (*KeyResolver, error) {
	k := &KeyResolver{
		generatorName:        cfg.KeyGenerator,
		recordKeyVirtual:     utils.ContainsString(names, RecordKeyField),
		partitionPathVirtual: utils.ContainsString(names, PartitionPathField),
	}

	if cfg.KeyGenerator != "" {
		gen, err := newGenerator(cfg.KeyGenerator, GeneratorSpec{
			Props:  cfg.Props,
			Schema: schema,
		})
		if err != nil {
			return nil, err
		}
		kg, ok := gen.(KeyGenerator)
		if !ok {
			return nil, &Error{
				Code:      ErrCodeInvalidConfig,
				Generator: cfg.KeyGenerator,
				Message:   "generator does not produce record keys and partition paths",
			}
		}
		k.generator = kg
	}

	var err error
	if k.recordKeyVirtual {
		k.recordKeyColumns, err = k.roleColumns(cfg, schema, RecordKeyField)
		if err != nil {
			return nil, err
		}
	}
	if k.partitionPathVirtual {
		k.partitionPathColumns, err = k.roleColumns(cfg, schema, PartitionPathField)
		if err != nil {
			return nil, err
		}
	}
	return k, nil
}

// roleColumns prefers explicitly configured required columns over the ones
// the key generator reports.
func (k *KeyResolver) roleColumns(cfg TableConfig, schema *table.Schema, field string) ([]int, error) {
	cols, _, err := parseColumns(field, cfg.FieldRequiredColumns[field], schema)
	if err != nil {
		return nil, err
	}
	if cols != nil || k.generator == nil {
		return cols, nil
	}
	if field == RecordKeyField {
		return k.generator.RecordKeyColumns(), nil
	}
	return k.generator.PartitionPathColumns(), nil
}

func (k *KeyResolver) columnsFor(field string) []int {
	if field == RecordKeyField {
		return k.recordKeyColumns
	}
	return k.partitionPathColumns
}

// GeneratorName is the configured key generator, empty if none.
func (k *KeyResolver) GeneratorName() string {
	return k.generatorName
}

func (k *KeyResolver) RecordKey(r table.Record) (string, error) {
	if !k.recordKeyVirtual {
		return readColumn(r, RecordKeyField)
	}
	key, err := k.generate(r, RecordKeyField)
	if err != nil {
		return "", err
	}
	return key.RecordKey, nil
}

func (k *KeyResolver) PartitionPath(r table.Record) (string, error) {
	if !k.partitionPathVirtual {
		return readColumn(r, PartitionPathField)
	}
	key, err := k.generate(r, PartitionPathField)
	if err != nil {
		return "", err
	}
	return key.PartitionPath, nil
}

// Key resolves both identity fields. When both are virtual the key generator
// runs once.
func (k *KeyResolver) Key(r table.Record) (Key, error) {
	if k.recordKeyVirtual && k.partitionPathVirtual {
		return k.generate(r, RecordKeyField, PartitionPathField)
	}

	var (
		key Key
		err error
	)
	if key.RecordKey, err = k.RecordKey(r); err != nil {
		return Key{}, err
	}
	if key.PartitionPath, err = k.PartitionPath(r); err != nil {
		return Key{}, err
	}
	return key, nil
}

// generate verifies the required columns of the requested roles, then asks
// the key generator for just those components. Both roles together run the
// generator once.
func (k *KeyResolver) generate(r table.Record, fields ...string) (Key, error) {
	if k.generator == nil {
		return Key{}, missingGenerator(fields[0])
	}
	for _, field := range fields {
		if err := checkColumns(r, field, k.generatorName, k.columnsFor(field)); err != nil {
			return Key{}, err
		}
	}

	var (
		key Key
		err error
	)
	switch {
	case len(fields) > 1:
		key, err = k.generator.Key(r)
	case fields[0] == RecordKeyField:
		key.RecordKey, err = k.generator.RecordKey(r)
	default:
		key.PartitionPath, err = k.generator.PartitionPath(r)
	}
	if errors.Is(err, ErrCannotGenerate) {
		return Key{}, unresolvable(fields[0], k.generatorName, "", "key generator cannot run on record")
	}
	if err != nil {
		return Key{}, &Error{
			Code:      ErrCodeUnresolvableField,
			Field:     fields[0],
			Generator: k.generatorName,
			Message:   "key generator failed",
			Err:       err,
		}
	}
	return key, nil
}
