package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"github.com/danthegoodman1/icefields/table"
)

const KafkaScheme = "kafka://"

var (
	ErrInvalidKafkaURI = errors.New("invalid kafka uri")
	// ErrUnboundedKafka is returned for a kafka source without a message cap,
	// a resolve batch ends at the cap.
	ErrUnboundedKafka = errors.New("kafka source needs a positive max")
)

type (
	KafkaConfig struct {
		Brokers []string
		Topic   string
		GroupID string

		// RatePerSec caps messages read per second, 0 is unlimited
		RatePerSec float64
		// MaxMessages ends the source after that many rows, it must be positive
		MaxMessages int64
	}

	// KafkaSource reads JSON messages from a topic, one row per message.
	KafkaSource struct {
		reader  *kafka.Reader
		limiter *rate.Limiter
		schema  *table.Schema
		cfg     KafkaConfig
		num     int64
	}
)

// ParseKafkaURI parses kafka://broker1,broker2/topic?group=g&rate=100&max=1000,
// max is required.
func ParseKafkaURI(uri string) (KafkaConfig, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return KafkaConfig{}, fmt.Errorf("%w: %s", ErrInvalidKafkaURI, err)
	}
	cfg := KafkaConfig{
		Topic:   strings.Trim(u.Path, "/"),
		GroupID: u.Query().Get("group"),
	}
	for _, b := range strings.Split(u.Host, ",") {
		if b != "" {
			cfg.Brokers = append(cfg.Brokers, b)
		}
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return KafkaConfig{}, fmt.Errorf("%w: %q needs brokers and a topic", ErrInvalidKafkaURI, uri)
	}
	if s := u.Query().Get("rate"); s != "" {
		if cfg.RatePerSec, err = strconv.ParseFloat(s, 64); err != nil {
			return KafkaConfig{}, fmt.Errorf("%w: rate %q", ErrInvalidKafkaURI, s)
		}
	}
	s := u.Query().Get("max")
	if s == "" {
		return KafkaConfig{}, fmt.Errorf("%w: %q: %w", ErrInvalidKafkaURI, uri, ErrUnboundedKafka)
	}
	if cfg.MaxMessages, err = strconv.ParseInt(s, 10, 64); err != nil {
		return KafkaConfig{}, fmt.Errorf("%w: max %q", ErrInvalidKafkaURI, s)
	}
	if cfg.MaxMessages <= 0 {
		return KafkaConfig{}, fmt.Errorf("%w: max %q: %w", ErrInvalidKafkaURI, s, ErrUnboundedKafka)
	}
	return cfg, nil
}

func (c KafkaConfig) readerConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    c.Topic,
		GroupID:  c.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	}
}

func (c KafkaConfig) limiter() *rate.Limiter {
	if c.RatePerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(c.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RatePerSec), burst)
}

// NewKafkaSource needs a schema since messages do not carry one.
func NewKafkaSource(cfg KafkaConfig, schema *table.Schema) (*KafkaSource, error) {
	if schema == nil {
		return nil, fmt.Errorf("kafka topic %s: %w", cfg.Topic, ErrNoSchema)
	}
	if cfg.MaxMessages <= 0 {
		return nil, fmt.Errorf("kafka topic %s: %w", cfg.Topic, ErrUnboundedKafka)
	}
	logger.Debug().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Str("group", cfg.GroupID).Msg("creating kafka source")
	return &KafkaSource{
		reader:  kafka.NewReader(cfg.readerConfig()),
		limiter: cfg.limiter(),
		schema:  schema,
		cfg:     cfg,
	}, nil
}

func (ks *KafkaSource) Schema() *table.Schema {
	return ks.schema
}

func (ks *KafkaSource) Next(ctx context.Context) (*table.Row, error) {
	if ks.num >= ks.cfg.MaxMessages {
		return nil, io.EOF
	}
	if err := ks.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("error in limiter.Wait: %w", err)
	}
	msg, err := ks.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error in ReadMessage: %w", err)
	}
	m, err := ParseJSONRow(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("partition %d offset %d: %w", msg.Partition, msg.Offset, err)
	}
	row := table.RowFromMap(ks.schema, ks.num, m)
	ks.num++
	return row, nil
}

func (ks *KafkaSource) Close() error {
	return ks.reader.Close()
}
