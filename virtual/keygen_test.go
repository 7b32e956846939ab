package virtual

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyGen(t *testing.T, name string, props Properties) KeyGenerator {
	t.Helper()
	gen, err := newGenerator(name, GeneratorSpec{Props: props, Schema: testSchema})
	require.NoError(t, err)
	kg, ok := gen.(KeyGenerator)
	require.True(t, ok)
	return kg
}

func TestCommaDelimitedGenerator(t *testing.T) {
	gen, err := NewCommaDelimitedGenerator(GeneratorSpec{Columns: []int{2, 1, 0}, Schema: testSchema})
	require.NoError(t, err)

	row := testRow(map[string]any{"id": 3.5, "first": "Ada", "last": "Lovelace"})
	assert.True(t, gen.CanGenerate(row))
	v, err := gen.Generate(row)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace,Ada,3.5", v)

	row = testRow(map[string]any{"first": "Ada", "last": "Lovelace"})
	assert.False(t, gen.CanGenerate(row))
	_, err = gen.Generate(row)
	assert.True(t, errors.Is(err, ErrCannotGenerate))
}

func TestSimpleKeyGenerator(t *testing.T) {
	kg := newKeyGen(t, KeyGeneratorSimple, Properties{
		PropRecordKeyField:     "id",
		PropPartitionPathField: "region",
	})
	assert.Equal(t, []int{0}, kg.RecordKeyColumns())
	assert.Equal(t, []int{3}, kg.PartitionPathColumns())

	key, err := kg.Key(testRow(map[string]any{"id": "42", "region": ""}))
	require.NoError(t, err)
	assert.Equal(t, Key{RecordKey: "42", PartitionPath: DefaultPartitionPath}, key)

	rk, err := kg.Generate(testRow(map[string]any{"id": "42", "region": "eu"}))
	require.NoError(t, err)
	assert.Equal(t, "42", rk)

	// a missing partition column falls back to the default partition, the
	// record key does not depend on it
	row := testRow(map[string]any{"id": "42"})
	assert.False(t, kg.CanGenerate(row))
	_, err = kg.Generate(row)
	assert.ErrorIs(t, err, ErrCannotGenerate)
	rk, err = kg.RecordKey(row)
	require.NoError(t, err)
	assert.Equal(t, "42", rk)
	key, err = kg.Key(row)
	require.NoError(t, err)
	assert.Equal(t, Key{RecordKey: "42", PartitionPath: DefaultPartitionPath}, key)

	_, err = kg.Key(testRow(map[string]any{"region": "eu"}))
	assert.ErrorIs(t, err, ErrCannotGenerate)
}

func TestSimpleKeyGeneratorNonPartitioned(t *testing.T) {
	kg := newKeyGen(t, KeyGeneratorSimple, Properties{PropRecordKeyField: "id"})
	key, err := kg.Key(testRow(map[string]any{"id": "42"}))
	require.NoError(t, err)
	assert.Equal(t, Key{RecordKey: "42"}, key)
}

func TestSimpleKeyGeneratorConfigErrors(t *testing.T) {
	_, err := newGenerator(KeyGeneratorSimple, GeneratorSpec{Props: Properties{PropRecordKeyField: "id,first"}, Schema: testSchema})
	assert.Equal(t, ErrCodeInvalidConfig, CodeOf(err))

	_, err = newGenerator(KeyGeneratorSimple, GeneratorSpec{Props: Properties{PropRecordKeyField: "uuid"}, Schema: testSchema})
	assert.Equal(t, ErrCodeUnknownColumn, CodeOf(err))

	_, err = newGenerator(KeyGeneratorSimple, GeneratorSpec{Props: Properties{PropRecordKeyField: "id", PropPartitionPathField: "region,ts"}, Schema: testSchema})
	assert.Equal(t, ErrCodeInvalidConfig, CodeOf(err))
}

func TestComplexKeyGenerator(t *testing.T) {
	row := testRow(map[string]any{"id": "42", "first": "Ada", "region": "eu", "ts": "2022"})

	kg := newKeyGen(t, KeyGeneratorComplex, Properties{
		PropRecordKeyFields:     "id,first",
		PropPartitionPathFields: "region,ts",
	})
	key, err := kg.Key(row)
	require.NoError(t, err)
	assert.Equal(t, Key{RecordKey: "id:42,first:Ada", PartitionPath: "eu/2022"}, key)

	kg = newKeyGen(t, KeyGeneratorComplex, Properties{
		PropRecordKeyFields:       "id",
		PropPartitionPathFields:   "region,ts",
		PropHiveStylePartitioning: "true",
	})
	key, err = kg.Key(row)
	require.NoError(t, err)
	assert.Equal(t, Key{RecordKey: "42", PartitionPath: "region=eu/ts=2022"}, key)

	pp, err := kg.PartitionPath(testRow(map[string]any{"id": "42", "ts": "2022"}))
	require.NoError(t, err)
	assert.Equal(t, "region=default/ts=2022", pp)

	_, err = newGenerator(KeyGeneratorComplex, GeneratorSpec{Props: Properties{
		PropRecordKeyFields:       "id",
		PropHiveStylePartitioning: "maybe",
	}, Schema: testSchema})
	assert.Equal(t, ErrCodeInvalidConfig, CodeOf(err))

	_, err = newGenerator(KeyGeneratorComplex, GeneratorSpec{Props: Properties{}, Schema: testSchema})
	assert.Equal(t, ErrCodeMissingConfig, CodeOf(err))
}

func TestPartitionedKeyGenerator(t *testing.T) {
	kg := newKeyGen(t, KeyGeneratorPartitioned, Properties{
		PropRecordKeyFields:   "id,region",
		PropPartitionPathPlan: "region=value(region),year=toYear(ts)",
	})
	assert.Equal(t, []int{3, 4}, kg.PartitionPathColumns())

	key, err := kg.Key(testRow(map[string]any{"id": "1", "region": "eu", "ts": int64(1643018400000)}))
	require.NoError(t, err)
	assert.Equal(t, Key{RecordKey: "id:1,region:eu", PartitionPath: "region=eu/year=2022"}, key)

	// the record key does not need the plan columns, the partition path does
	row := testRow(map[string]any{"id": "1", "region": "eu"})
	rk, err := kg.RecordKey(row)
	require.NoError(t, err)
	assert.Equal(t, "id:1,region:eu", rk)
	_, err = kg.PartitionPath(row)
	assert.ErrorIs(t, err, ErrCannotGenerate)

	for _, plan := range []string{"", "year=toYear(missing)", "year=toCentury(ts)", "garbage"} {
		_, err := newGenerator(KeyGeneratorPartitioned, GeneratorSpec{Props: Properties{
			PropRecordKeyFields:   "id",
			PropPartitionPathPlan: plan,
		}, Schema: testSchema})
		assert.True(t, IsConfigurationError(err), plan)
	}
}
