package metastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/danthegoodman1/icefields/crdb"
	"github.com/danthegoodman1/icefields/datastore"
	"github.com/danthegoodman1/icefields/gologger"
	"github.com/danthegoodman1/icefields/migrations"
	"github.com/danthegoodman1/icefields/utils"
	"github.com/danthegoodman1/icefields/virtual"
)

var (
	logger = gologger.NewLogger()

	ErrTableNotFound    = errors.New("table not found")
	ErrInvalidTableName = errors.New("invalid table name")
	ErrUnknownMetaStore = errors.New("unknown metastore")

	tableNameRegexp = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_\-.]*$`)
)

type (
	// MetaStore persists the virtual field configuration of tables.
	MetaStore interface {
		// GetTableConfig returns ErrTableNotFound if the table has no config
		GetTableConfig(ctx context.Context, table string) (virtual.TableConfig, error)
		// PutTableConfig creates or replaces the config of cfg.Name
		PutTableConfig(ctx context.Context, cfg virtual.TableConfig) error
		ListTables(ctx context.Context) ([]string, error)

		Shutdown(ctx context.Context) error
	}
)

// New builds the metastore selected by kind: file, redis, or crdb.
func New(ctx context.Context, kind string) (MetaStore, error) {
	switch kind {
	case "file":
		ds, err := datastore.New(utils.CONFIG_DIR)
		if err != nil {
			return nil, fmt.Errorf("error in datastore.New: %w", err)
		}
		return NewFileMetaStore(ds), nil
	case "redis":
		return NewRedisMetaStore(ctx)
	case "crdb":
		if err := crdb.ConnectToDB(ctx); err != nil {
			return nil, fmt.Errorf("error in crdb.ConnectToDB: %w", err)
		}
		if err := migrations.CheckMigrations(utils.CRDB_DSN); err != nil {
			return nil, fmt.Errorf("error in migrations.CheckMigrations: %w", err)
		}
		return NewCRDBMetaStore(crdb.PGPool), nil
	default:
		return nil, fmt.Errorf("%q: %w", kind, ErrUnknownMetaStore)
	}
}

func ValidateTableName(name string) error {
	if !tableNameRegexp.MatchString(name) {
		return fmt.Errorf("%q: %w", name, ErrInvalidTableName)
	}
	return nil
}

// ParseTableConfig decodes a YAML (or JSON) table config. Unknown keys are
// rejected so typos do not silently drop configuration.
func ParseTableConfig(data []byte) (virtual.TableConfig, error) {
	var cfg virtual.TableConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return virtual.TableConfig{}, &virtual.Error{
			Code:    virtual.ErrCodeInvalidConfig,
			Message: "could not decode table config",
			Err:     err,
		}
	}
	return cfg, nil
}

func MarshalTableConfig(cfg virtual.TableConfig) ([]byte, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("error in yaml.Marshal: %w", err)
	}
	return b, nil
}

func checkPut(cfg virtual.TableConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return ValidateTableName(cfg.Name)
}
