package virtual

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFieldCommaDelimited(t *testing.T) {
	reg := newTestRegistry(t, fullNameConfig())

	v, err := reg.Accessor().GetField("full_name", testRow(map[string]any{
		"first": "Ada",
		"last":  "Lovelace",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Ada,Lovelace", v)
}

func TestGetFieldNullRequiredColumnSkipsGenerator(t *testing.T) {
	cfg := fullNameConfig()
	cfg.FieldGenerators["full_name"] = "test_counting"
	reg := newTestRegistry(t, cfg)

	_, err := reg.Accessor().GetField("full_name", testRow(map[string]any{
		"first": "Ada",
		"last":  nil,
	}))
	require.Error(t, err)
	assert.True(t, IsUnresolvableFieldError(err))

	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "full_name", ve.Field)
	assert.Equal(t, "last", ve.Column)

	spec, _ := reg.Spec("full_name")
	gen, err := spec.Generator()
	require.NoError(t, err)
	assert.Equal(t, 0, gen.(*countingGenerator).calls)
}

func TestGetFieldMissingGenerator(t *testing.T) {
	reg := newTestRegistry(t, TableConfig{
		VirtualFields:        "full_name",
		FieldRequiredColumns: map[string]string{"full_name": "first"},
	})

	spec, ok := reg.Spec("full_name")
	require.True(t, ok)
	assert.False(t, spec.HasGenerator())

	_, err := reg.Accessor().GetField("full_name", testRow(map[string]any{"first": "Ada"}))
	assert.True(t, IsMissingGeneratorError(err))
	assert.False(t, IsConfigurationError(err))
}

func TestGetFieldDirectReads(t *testing.T) {
	reg := newTestRegistry(t, TableConfig{})
	acc := reg.Accessor()
	row := testRow(map[string]any{
		"id":          int64(7),
		"first":       "Ada",
		"_record_key": "k1",
	})

	v, err := acc.GetField("first", row)
	require.NoError(t, err)
	assert.Equal(t, "Ada", v)

	v, err = acc.GetField("id", row)
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	v, err = acc.GetField(RecordKeyField, row)
	require.NoError(t, err)
	assert.Equal(t, "k1", v)

	// null stored column
	v, err = acc.GetField("last", row)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = acc.GetField(PartitionPathField, row)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	_, err = acc.GetField("nope", row)
	assert.True(t, IsUnresolvableFieldError(err))
}

func TestGetFields(t *testing.T) {
	cfg := fullNameConfig()
	cfg.VirtualFields = "full_name,_record_key"
	cfg.KeyGenerator = KeyGeneratorSimple
	cfg.Props = Properties{PropRecordKeyField: "id"}
	reg := newTestRegistry(t, cfg)
	acc := reg.Accessor()

	row := testRow(map[string]any{
		"id":    "42",
		"first": "Ada",
		"last":  "Lovelace",
	})

	vals, err := acc.GetFields([]string{"first", "full_name", RecordKeyField, "full_name"}, row)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "Ada,Lovelace", "42", "Ada,Lovelace"}, vals)

	vals, err = acc.GetFields(nil, row)
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestGetFieldsValidatesEachFieldOnItsOwnColumns(t *testing.T) {
	cfg := TableConfig{
		VirtualFields:        "a,b",
		FieldGenerators:      map[string]string{"a": GeneratorCommaDelimited, "b": GeneratorCommaDelimited},
		FieldRequiredColumns: map[string]string{"a": "first", "b": "last"},
	}
	reg := newTestRegistry(t, cfg)

	// last is null, so only b fails
	row := testRow(map[string]any{"first": "Ada"})
	vals, err := reg.Accessor().GetFields([]string{"a"}, row)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada"}, vals)

	_, err = reg.Accessor().GetFields([]string{"a", "b"}, row)
	require.Error(t, err)
	assert.True(t, IsUnresolvableFieldError(err))
	assert.Contains(t, err.Error(), "field 1 (b)")
}

func TestGetFieldConcurrentReaders(t *testing.T) {
	reg := newTestRegistry(t, fullNameConfig())
	acc := reg.Accessor()
	row := testRow(map[string]any{"first": "Ada", "last": "Lovelace"})

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := acc.GetField("full_name", row)
			if err == nil && v != "Ada,Lovelace" {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
