package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danthegoodman1/icefields/datastore"
	"github.com/danthegoodman1/icefields/resolver"
	"github.com/danthegoodman1/icefields/source"
	"github.com/danthegoodman1/icefields/utils"
	"github.com/danthegoodman1/icefields/virtual"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestResolveGolden(t *testing.T) {
	out, err := execute(t, "resolve", "--config", "testdata/people.yaml", "--input", "testdata/people.ndjson")
	assert.ErrorIs(t, err, ErrRowsFailed)
	newGoldie(t).Assert(t, "resolve_people", []byte(out))
}

func TestResolveFieldsGolden(t *testing.T) {
	out, err := execute(t, "resolve", "--config", "testdata/people.yaml", "--input", "testdata/people.ndjson", "--fields", "first")
	assert.ErrorIs(t, err, ErrRowsFailed)
	newGoldie(t).Assert(t, "resolve_people_fields", []byte(out))
}

func TestResolveToFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "out.ndjson")
	stdout, err := execute(t, "resolve", "--config", "testdata/people.yaml", "--input", "testdata/people.ndjson", "--out", outFile)
	assert.ErrorIs(t, err, ErrRowsFailed)
	assert.Empty(t, stdout)

	b, err := os.ReadFile(outFile)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "resolve_people", b)
}

func TestResolveParquet(t *testing.T) {
	outDir := t.TempDir()
	stdout, err := execute(t, "resolve", "--config", "testdata/people.yaml", "--input", "testdata/people.ndjson", "--format", "parquet", "--out", outDir)
	assert.ErrorIs(t, err, ErrRowsFailed)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "people/region=eu/year=2022/"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "people/region=uk/year=2023/"), lines[1])

	ds, err := datastore.NewDiskDataStore(outDir)
	require.NoError(t, err)
	names, err := ds.List(context.Background(), "people/")
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestResolveFlagErrors(t *testing.T) {
	_, err := execute(t, "resolve", "--config", "testdata/people.yaml", "--input", "testdata/people.ndjson", "--format", "csv")
	assert.ErrorContains(t, err, "invalid format")

	_, err = execute(t, "resolve", "--config", "testdata/people.yaml", "--input", "testdata/people.ndjson", "--format", "parquet")
	assert.ErrorContains(t, err, "--out")

	_, err = execute(t, "resolve", "--input", "testdata/people.ndjson")
	assert.ErrorIs(t, err, ErrNoTableConfig)

	_, err = execute(t, "resolve", "--config", "testdata/people.yaml")
	assert.Error(t, err)

	_, err = execute(t, "resolve", "--config", "testdata/missing.yaml", "--input", "testdata/people.ndjson")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateGolden(t *testing.T) {
	out, err := execute(t, "validate", "--config", "testdata/people.yaml")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "validate_people", []byte(out))

	// the input schema matches the config columns
	out, err = execute(t, "validate", "--config", "testdata/people.yaml", "--input", "testdata/people.ndjson")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "validate_people", []byte(out))
}

func TestValidateErrors(t *testing.T) {
	_, err := execute(t, "validate", "--config", "testdata/broken.yaml")
	assert.Equal(t, virtual.ErrCodeUnknownColumn, virtual.CodeOf(err))

	dir := t.TempDir()
	typo := filepath.Join(dir, "typo.yaml")
	require.NoError(t, os.WriteFile(typo, []byte("name: typo\nvirtual_feilds: a\n"), 0o644))
	_, err = execute(t, "validate", "--config", typo)
	assert.Equal(t, virtual.ErrCodeInvalidConfig, virtual.CodeOf(err))
}

func TestLoadTableConfigDefaultsName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns: [id]\n"), 0o644))

	cfg, err := loadTableConfig(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "events", cfg.Name)
	assert.Equal(t, []string{"id"}, cfg.Columns)
}

func TestGeneratorsGolden(t *testing.T) {
	out, err := execute(t, "generators")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "generators", []byte(out))
}

func TestMigrateNeedsDSN(t *testing.T) {
	prev := utils.CRDB_DSN
	defer func() { utils.CRDB_DSN = prev }()
	utils.CRDB_DSN = ""

	_, err := execute(t, "migrate")
	assert.ErrorIs(t, err, ErrNoCRDBDSN)
}

func TestResolveKafkaNeedsMax(t *testing.T) {
	_, err := execute(t, "resolve", "--config", "testdata/people.yaml", "--input", "kafka://localhost:9092/people")
	assert.ErrorIs(t, err, source.ErrUnboundedKafka)
}

type failingCloser struct {
	bytes.Buffer
}

func (*failingCloser) Close() error {
	return errDiskFull
}

var errDiskFull = errors.New("disk full")

func TestWriteJSONLinesReturnsCloseError(t *testing.T) {
	prev := createOutput
	defer func() { createOutput = prev }()
	createOutput = func(string) (io.WriteCloser, error) {
		return &failingCloser{}, nil
	}

	err := writeJSONLines("out.ndjson", io.Discard, &resolver.Batch{})
	assert.ErrorIs(t, err, errDiskFull)
}
