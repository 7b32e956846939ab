package virtual

import (
	"fmt"
	"strings"

	"github.com/danthegoodman1/icefields/partitioner"
	"github.com/danthegoodman1/icefields/table"
)

const (
	KeyGeneratorSimple      = "simple"
	KeyGeneratorComplex     = "complex"
	KeyGeneratorPartitioned = "partitioned"

	PropRecordKeyField        = "recordkey.field"
	PropRecordKeyFields       = "recordkey.fields"
	PropPartitionPathField    = "partitionpath.field"
	PropPartitionPathFields   = "partitionpath.fields"
	PropPartitionPathPlan     = "partitionpath.plan"
	PropHiveStylePartitioning = "hive_style_partitioning"

	// DefaultPartitionPath replaces an empty partition value.
	DefaultPartitionPath = "default"
)

func init() {
	RegisterGenerator(KeyGeneratorSimple, NewSimpleKeyGenerator)
	RegisterGenerator(KeyGeneratorComplex, NewComplexKeyGenerator)
	RegisterGenerator(KeyGeneratorPartitioned, NewPartitionedKeyGenerator)
}

// keyColumns are the source columns shared by the key generators.
type keyColumns struct {
	recordKey          []int
	recordKeyNames     []string
	partitionPath      []int
	partitionPathNames []string
}

func (k *keyColumns) RecordKeyColumns() []int {
	return append([]int(nil), k.recordKey...)
}

func (k *keyColumns) PartitionPathColumns() []int {
	return append([]int(nil), k.partitionPath...)
}

func (k *keyColumns) CanGenerate(r table.Record) bool {
	return allPresent(r, k.recordKey) && allPresent(r, k.partitionPath)
}

// RecordKey is the bare value for one column, otherwise name:value pairs
// joined by commas. Partition path columns are not read.
func (k *keyColumns) RecordKey(r table.Record) (string, error) {
	if !allPresent(r, k.recordKey) {
		return "", ErrCannotGenerate
	}
	vals := columnValues(r, k.recordKey)
	if len(vals) == 1 {
		return vals[0], nil
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = k.recordKeyNames[i] + ":" + v
	}
	return strings.Join(parts, CommaDelimiter), nil
}

func (k *keyColumns) Generate(r table.Record) (string, error) {
	if !k.CanGenerate(r) {
		return "", ErrCannotGenerate
	}
	return k.RecordKey(r)
}

func buildKey(g KeyGenerator, r table.Record) (Key, error) {
	rk, err := g.RecordKey(r)
	if err != nil {
		return Key{}, err
	}
	pp, err := g.PartitionPath(r)
	if err != nil {
		return Key{}, err
	}
	return Key{RecordKey: rk, PartitionPath: pp}, nil
}

func partitionValue(v string) string {
	if v == "" {
		return DefaultPartitionPath
	}
	return v
}

// SimpleKeyGenerator uses one column as the record key and at most one
// column as the partition path.
type SimpleKeyGenerator struct {
	keyColumns
}

func NewSimpleKeyGenerator(spec GeneratorSpec) (FieldGenerator, error) {
	rk, rkNames, err := spec.ResolveColumns(PropRecordKeyField)
	if err != nil {
		return nil, err
	}
	switch len(rk) {
	case 0:
		return nil, missingConfig(spec.Field, "%s is required", PropRecordKeyField)
	case 1:
	default:
		return nil, invalidConfig(spec.Field, "%s takes exactly one column, got %d", PropRecordKeyField, len(rk))
	}

	pp, ppNames, err := spec.ResolveColumns(PropPartitionPathField)
	if err != nil {
		return nil, err
	}
	if len(pp) > 1 {
		return nil, invalidConfig(spec.Field, "%s takes at most one column, got %d", PropPartitionPathField, len(pp))
	}

	return &SimpleKeyGenerator{keyColumns{
		recordKey:          rk,
		recordKeyNames:     rkNames,
		partitionPath:      pp,
		partitionPathNames: ppNames,
	}}, nil
}

// PartitionPath is empty when no partition path column is configured.
func (g *SimpleKeyGenerator) PartitionPath(r table.Record) (string, error) {
	if len(g.partitionPath) == 0 {
		return "", nil
	}
	return partitionValue(columnValues(r, g.partitionPath)[0]), nil
}

func (g *SimpleKeyGenerator) Key(r table.Record) (Key, error) {
	return buildKey(g, r)
}

// ComplexKeyGenerator builds the record key and partition path from several
// columns each.
type ComplexKeyGenerator struct {
	keyColumns
	hiveStyle bool
}

func NewComplexKeyGenerator(spec GeneratorSpec) (FieldGenerator, error) {
	rk, rkNames, err := spec.ResolveColumns(PropRecordKeyFields)
	if err != nil {
		return nil, err
	}
	if len(rk) == 0 {
		return nil, missingConfig(spec.Field, "%s is required", PropRecordKeyFields)
	}
	pp, ppNames, err := spec.ResolveColumns(PropPartitionPathFields)
	if err != nil {
		return nil, err
	}
	hive, err := spec.Props.Bool(PropHiveStylePartitioning)
	if err != nil {
		return nil, err
	}
	return &ComplexKeyGenerator{
		keyColumns: keyColumns{
			recordKey:          rk,
			recordKeyNames:     rkNames,
			partitionPath:      pp,
			partitionPathNames: ppNames,
		},
		hiveStyle: hive,
	}, nil
}

func (g *ComplexKeyGenerator) PartitionPath(r table.Record) (string, error) {
	vals := columnValues(r, g.partitionPath)
	parts := make([]string, len(vals))
	for i, v := range vals {
		v = partitionValue(v)
		if g.hiveStyle {
			v = g.partitionPathNames[i] + "=" + v
		}
		parts[i] = v
	}
	return strings.Join(parts, "/"), nil
}

func (g *ComplexKeyGenerator) Key(r table.Record) (Key, error) {
	return buildKey(g, r)
}

// PartitionedKeyGenerator derives the partition path from a partition plan
// such as `year=toYear(ts),month=toMonth(ts)`.
type PartitionedKeyGenerator struct {
	keyColumns
	plans []partitioner.PartitionPlan
}

func NewPartitionedKeyGenerator(spec GeneratorSpec) (FieldGenerator, error) {
	rk, rkNames, err := spec.ResolveColumns(PropRecordKeyFields)
	if err != nil {
		return nil, err
	}
	if len(rk) == 0 {
		return nil, missingConfig(spec.Field, "%s is required", PropRecordKeyFields)
	}

	plan := spec.Props.Get(PropPartitionPathPlan, "")
	if plan == "" {
		return nil, missingConfig(spec.Field, "%s is required", PropPartitionPathPlan)
	}
	plans, err := partitioner.ParsePlans(plan)
	if err != nil {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Field:   spec.Field,
			Message: fmt.Sprintf("invalid %s", PropPartitionPathPlan),
			Err:     err,
		}
	}

	pp, ppNames, err := parseColumns(spec.Field, strings.Join(partitioner.Columns(plans), ","), spec.Schema)
	if err != nil {
		return nil, err
	}

	return &PartitionedKeyGenerator{
		keyColumns: keyColumns{
			recordKey:          rk,
			recordKeyNames:     rkNames,
			partitionPath:      pp,
			partitionPathNames: ppNames,
		},
		plans: plans,
	}, nil
}

// PartitionPath applies the partition plan. Plan functions need their
// columns, so a null plan column is an error rather than the default path.
func (g *PartitionedKeyGenerator) PartitionPath(r table.Record) (string, error) {
	if !allPresent(r, g.partitionPath) {
		return "", ErrCannotGenerate
	}
	path, err := partitioner.GetRowPartition(r, g.plans)
	if err != nil {
		return "", fmt.Errorf("error in GetRowPartition: %w", err)
	}
	return path, nil
}

func (g *PartitionedKeyGenerator) Key(r table.Record) (Key, error) {
	return buildKey(g, r)
}
