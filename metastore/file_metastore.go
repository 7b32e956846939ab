package metastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danthegoodman1/icefields/datastore"
	"github.com/danthegoodman1/icefields/virtual"
)

const configExt = ".yaml"

type (
	// FileMetaStore keeps one YAML file per table in a datastore.
	FileMetaStore struct {
		ds datastore.DataStore
	}
)

func NewFileMetaStore(ds datastore.DataStore) *FileMetaStore {
	return &FileMetaStore{ds: ds}
}

func (fms *FileMetaStore) GetTableConfig(ctx context.Context, table string) (virtual.TableConfig, error) {
	if err := ValidateTableName(table); err != nil {
		return virtual.TableConfig{}, err
	}
	b, err := fms.ds.ReadFile(ctx, table+configExt)
	if errors.Is(err, datastore.ErrNotFound) {
		return virtual.TableConfig{}, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	if err != nil {
		return virtual.TableConfig{}, fmt.Errorf("error in ReadFile: %w", err)
	}
	cfg, err := ParseTableConfig(b)
	if err != nil {
		return virtual.TableConfig{}, fmt.Errorf("error parsing config for table %s: %w", table, err)
	}
	if cfg.Name == "" {
		cfg.Name = table
	}
	return cfg, nil
}

func (fms *FileMetaStore) PutTableConfig(ctx context.Context, cfg virtual.TableConfig) error {
	if err := checkPut(cfg); err != nil {
		return err
	}
	b, err := MarshalTableConfig(cfg)
	if err != nil {
		return err
	}
	if err := fms.ds.WriteFile(ctx, cfg.Name+configExt, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("error in WriteFile: %w", err)
	}
	return nil
}

func (fms *FileMetaStore) ListTables(ctx context.Context) ([]string, error) {
	names, err := fms.ds.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("error in List: %w", err)
	}
	var tables []string
	for _, name := range names {
		if strings.Contains(name, "/") || !strings.HasSuffix(name, configExt) {
			continue
		}
		tables = append(tables, strings.TrimSuffix(name, configExt))
	}
	sort.Strings(tables)
	return tables, nil
}

func (fms *FileMetaStore) Shutdown(ctx context.Context) error {
	return fms.ds.Shutdown(ctx)
}
