package metastore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danthegoodman1/icefields/crdb"
	"github.com/danthegoodman1/icefields/datastore"
	"github.com/danthegoodman1/icefields/migrations"
	"github.com/danthegoodman1/icefields/utils"
	"github.com/danthegoodman1/icefields/virtual"
)

func peopleConfig() virtual.TableConfig {
	return virtual.TableConfig{
		Name:                 "people",
		Columns:              []string{"id", "first", "last"},
		VirtualFields:        "full_name,_record_key",
		FieldGenerators:      map[string]string{"full_name": "comma_delimited"},
		FieldRequiredColumns: map[string]string{"full_name": "first,last"},
		KeyGenerator:         "simple",
		Props:                virtual.Properties{"recordkey.field": "id"},
	}
}

func testMetaStoreRoundTrip(t *testing.T, ms MetaStore) {
	t.Helper()
	ctx := context.Background()

	_, err := ms.GetTableConfig(ctx, "people")
	require.True(t, errors.Is(err, ErrTableNotFound), "got %v", err)

	require.NoError(t, ms.PutTableConfig(ctx, peopleConfig()))
	got, err := ms.GetTableConfig(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, peopleConfig(), got)

	updated := peopleConfig()
	updated.VirtualFields = "full_name"
	require.NoError(t, ms.PutTableConfig(ctx, updated))
	got, err = ms.GetTableConfig(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, "full_name", got.VirtualFields)

	tables, err := ms.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "people")

	err = ms.PutTableConfig(ctx, virtual.TableConfig{})
	assert.True(t, virtual.IsConfigurationError(err))
}

func TestFileMetaStore(t *testing.T) {
	dir := t.TempDir()
	ds, err := datastore.NewDiskDataStore(dir)
	require.NoError(t, err)
	ms := NewFileMetaStore(ds)

	testMetaStoreRoundTrip(t, ms)

	_, err = os.Stat(filepath.Join(dir, "people.yaml"))
	assert.NoError(t, err)

	err = ms.PutTableConfig(context.Background(), virtual.TableConfig{Name: "../escape"})
	assert.True(t, errors.Is(err, ErrInvalidTableName))
	_, err = ms.GetTableConfig(context.Background(), "../escape")
	assert.True(t, errors.Is(err, ErrInvalidTableName))
}

func TestFileMetaStoreDefaultsNameToFileName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.yaml"), []byte("virtual_fields: _record_key\n"), 0o644))
	ds, err := datastore.NewDiskDataStore(dir)
	require.NoError(t, err)

	cfg, err := NewFileMetaStore(ds).GetTableConfig(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", cfg.Name)
	assert.Equal(t, "_record_key", cfg.VirtualFields)
}

func TestParseTableConfig(t *testing.T) {
	cfg, err := ParseTableConfig([]byte(`
name: people
columns: [id, first, last]
virtual_fields: full_name,_record_key
field_generators:
  full_name: comma_delimited
field_required_columns:
  full_name: first,last
key_generator: simple
props:
  recordkey.field: id
`))
	require.NoError(t, err)
	assert.Equal(t, peopleConfig(), cfg)

	// JSON is valid YAML
	cfg, err = ParseTableConfig([]byte(`{"name": "people", "virtual_fields": "a"}`))
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.VirtualFields)

	_, err = ParseTableConfig([]byte("name: people\nvirtual_feilds: a\n"))
	assert.Equal(t, virtual.ErrCodeInvalidConfig, virtual.CodeOf(err))

	b, err := MarshalTableConfig(peopleConfig())
	require.NoError(t, err)
	back, err := ParseTableConfig(b)
	require.NoError(t, err)
	assert.Equal(t, peopleConfig(), back)
}

func TestValidateTableName(t *testing.T) {
	for _, name := range []string{"people", "people_v2", "events-2022.01"} {
		assert.NoError(t, ValidateTableName(name), name)
	}
	for _, name := range []string{"", ".hidden", "a/b", "../x", "a b"} {
		assert.ErrorIs(t, ValidateTableName(name), ErrInvalidTableName, name)
	}
}

func TestNewUnknownMetaStore(t *testing.T) {
	_, err := New(context.Background(), "etcd")
	assert.ErrorIs(t, err, ErrUnknownMetaStore)
}

func TestRedisMetaStore(t *testing.T) {
	if utils.REDIS_ADDR == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	ms, err := NewRedisMetaStore(ctx)
	require.NoError(t, err)
	defer ms.Shutdown(ctx)
	require.NoError(t, ms.client.FlushDB(ctx).Err())

	testMetaStoreRoundTrip(t, ms)
}

func TestCRDBMetaStore(t *testing.T) {
	if utils.CRDB_DSN == "" {
		t.Skip("CRDB_DSN not set")
	}
	ctx := context.Background()
	_, err := migrations.RunMigrations(utils.CRDB_DSN)
	require.NoError(t, err)
	require.NoError(t, crdb.ConnectToDB(ctx))
	_, err = crdb.PGPool.Exec(ctx, "DELETE FROM table_configs")
	require.NoError(t, err)

	ms := NewCRDBMetaStore(crdb.PGPool)
	defer ms.Shutdown(ctx)
	testMetaStoreRoundTrip(t, ms)
}
