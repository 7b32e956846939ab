package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/danthegoodman1/icefields/table"
	"github.com/danthegoodman1/icefields/utils"
)

type person struct {
	ID    *string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	First *string `parquet:"name=first, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Age   *int64  `parquet:"name=age, type=INT64, repetitiontype=OPTIONAL"`
}

func writePeopleParquet(t *testing.T, n int) string {
	t.Helper()
	fileName := filepath.Join(t.TempDir(), "people.parquet")
	fw, err := local.NewLocalFileWriter(fileName)
	require.NoError(t, err)
	pw, err := writer.NewParquetWriter(fw, new(person), 4)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		p := person{ID: utils.Ptr(string(rune('a' + i%26))), Age: utils.Ptr(int64(i))}
		if i%2 == 0 {
			p.First = utils.Ptr("Ada")
		}
		require.NoError(t, pw.Write(p))
	}
	require.NoError(t, pw.WriteStop())
	require.NoError(t, fw.Close())
	return fileName
}

func TestParquetSource(t *testing.T) {
	ctx := context.Background()
	src, err := Open(ctx, writePeopleParquet(t, 3), nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"id", "first", "age"}, src.Schema().ColumnNames())

	rows, err := ReadAll(ctx, src)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	v, p := rows[0].Get("first")
	assert.Equal(t, table.Present, p)
	assert.Equal(t, "Ada", v)

	_, p = rows[1].Get("first")
	assert.Equal(t, table.Null, p)

	v, _ = rows[2].Get("age")
	assert.Equal(t, int64(2), v)
	assert.Equal(t, int64(2), rows[2].Num)
}

func TestParquetSourceBatches(t *testing.T) {
	ctx := context.Background()
	src, err := NewLocalParquetSource(writePeopleParquet(t, parquetBatchSize+10))
	require.NoError(t, err)
	defer src.Close()

	rows, err := ReadAll(ctx, src)
	require.NoError(t, err)
	assert.Len(t, rows, parquetBatchSize+10)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestNDJSONSource(t *testing.T) {
	schema := table.MustSchema("id", "first")
	body := `{"id": "1", "first": "Ada"}

{"id": 2, "extra": true}
`
	src := NewNDJSONSource(io.NopCloser(strings.NewReader(body)), schema)
	rows, err := ReadAll(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	v, _ := rows[1].Get("id")
	assert.Equal(t, "2", table.ValueString(v))
	_, p := rows[1].Get("first")
	assert.Equal(t, table.Null, p)
	_, p = rows[1].Get("extra")
	assert.Equal(t, table.Absent, p)
	assert.NoError(t, src.Close())
}

func TestNDJSONSourceBadLine(t *testing.T) {
	src := NewNDJSONSource(io.NopCloser(strings.NewReader("{\"id\": 1}\n[1, 2]\n")), table.MustSchema("id"))
	_, err := ReadAll(context.Background(), src)
	assert.ErrorIs(t, err, ErrNotJSONObject)
	assert.Contains(t, err.Error(), "line 2")
}

func TestOpenNDJSONInfersSchema(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "rows.ndjson")
	require.NoError(t, os.WriteFile(fileName, []byte(`{"b": 1, "a": "x"}
{"c": 3}
`), 0o644))

	src, err := Open(context.Background(), fileName, nil)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, []string{"a", "b", "c"}, src.Schema().ColumnNames())

	rows, err := ReadAll(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFlattenNested(t *testing.T) {
	row, err := ParseJSONRow([]byte(`{"user": {"name": "Ada"}, "id": 1}`))
	require.NoError(t, err)
	assert.Len(t, row, 2)
	assert.Contains(t, row, "id")
	assert.NotContains(t, row, "user")
}

func TestParseJSONRowKeepsIntegerPrecision(t *testing.T) {
	row, err := ParseJSONRow([]byte(`{"id": 9007199254740993, "score": 1.25}`))
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", table.ValueString(row["id"]))
	assert.Equal(t, "1.25", table.ValueString(row["score"]))

	_, err = ParseJSONRow([]byte(`{"id": 1} {"id": 2}`))
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestOpenUnknownFormat(t *testing.T) {
	_, err := Open(context.Background(), "rows.csv", nil)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestMapSourceHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := NewMapSource(table.MustSchema("a"), []map[string]any{{"a": 1}})
	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseKafkaURI(t *testing.T) {
	cfg, err := ParseKafkaURI("kafka://b1:9092,b2:9092/events?group=icefields&rate=50&max=100")
	require.NoError(t, err)
	assert.Equal(t, KafkaConfig{
		Brokers:     []string{"b1:9092", "b2:9092"},
		Topic:       "events",
		GroupID:     "icefields",
		RatePerSec:  50,
		MaxMessages: 100,
	}, cfg)

	for _, uri := range []string{"kafka:///events?max=1", "kafka://b1:9092/?max=1", "kafka://b1/events?rate=fast&max=1", "kafka://b1/events?max=ten"} {
		_, err := ParseKafkaURI(uri)
		assert.ErrorIs(t, err, ErrInvalidKafkaURI, uri)
	}
}

func TestKafkaNeedsMax(t *testing.T) {
	for _, uri := range []string{"kafka://b1/events", "kafka://b1/events?max=0", "kafka://b1/events?max=-5"} {
		_, err := ParseKafkaURI(uri)
		assert.ErrorIs(t, err, ErrInvalidKafkaURI, uri)
		assert.ErrorIs(t, err, ErrUnboundedKafka, uri)
	}

	_, err := Open(context.Background(), "kafka://b1/events", table.MustSchema("id"))
	assert.ErrorIs(t, err, ErrUnboundedKafka)

	_, err = NewKafkaSource(KafkaConfig{Brokers: []string{"b1"}, Topic: "events"}, table.MustSchema("id"))
	assert.ErrorIs(t, err, ErrUnboundedKafka)
}

func TestKafkaSource(t *testing.T) {
	cfg := KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "events", MaxMessages: 1}

	_, err := NewKafkaSource(cfg, nil)
	assert.ErrorIs(t, err, ErrNoSchema)

	src, err := NewKafkaSource(cfg, table.MustSchema("id"))
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "events", src.reader.Config().Topic)

	// the message cap is checked before touching the broker
	src.num = 1
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestKafkaLimiter(t *testing.T) {
	assert.Equal(t, 0, KafkaConfig{}.limiter().Burst())
	l := KafkaConfig{RatePerSec: 0.5}.limiter()
	assert.Equal(t, 1, l.Burst())
	assert.Equal(t, 20, KafkaConfig{RatePerSec: 20}.limiter().Burst())
}
