package datastore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskDataStore(t *testing.T) {
	ctx := context.Background()
	ds, err := New(t.TempDir())
	require.NoError(t, err)
	require.IsType(t, &DiskDataStore{}, ds)

	require.NoError(t, ds.WriteFile(ctx, "tables/people.yaml", strings.NewReader("name: people\n")))
	require.NoError(t, ds.WriteFile(ctx, "tables/orders.yaml", strings.NewReader("name: orders\n")))
	require.NoError(t, ds.WriteFile(ctx, "out/part.parquet", strings.NewReader("PAR1")))

	b, err := ds.ReadFile(ctx, "tables/people.yaml")
	require.NoError(t, err)
	assert.Equal(t, "name: people\n", string(b))

	names, err := ds.List(ctx, "tables/")
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/orders.yaml", "tables/people.yaml"}, names)

	_, err = ds.ReadFile(ctx, "tables/nope.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, ds.Shutdown(ctx))
}

func TestNewS3DataStore(t *testing.T) {
	ds, err := New("s3://bucket/configs/")
	require.NoError(t, err)
	sds, ok := ds.(*S3DataStore)
	require.True(t, ok)
	assert.Equal(t, "bucket", sds.bucket)
	assert.Equal(t, "configs/people.yaml", sds.key("people.yaml"))
}
