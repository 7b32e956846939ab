package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danthegoodman1/icefields/metastore"
	"github.com/danthegoodman1/icefields/s3_helper"
	"github.com/danthegoodman1/icefields/utils"
	"github.com/danthegoodman1/icefields/virtual"
)

var ErrNoTableConfig = errors.New("one of --config or --table is required")

// tableConfig loads the config from a file when configPath is set, else
// from the metastore selected by METASTORE.
func tableConfig(ctx context.Context, configPath, tableName string) (virtual.TableConfig, error) {
	switch {
	case configPath != "":
		return loadTableConfig(ctx, configPath)
	case tableName != "":
		ms, err := metastore.New(ctx, utils.METASTORE)
		if err != nil {
			return virtual.TableConfig{}, fmt.Errorf("error in metastore.New: %w", err)
		}
		defer ms.Shutdown(ctx)
		return ms.GetTableConfig(ctx, tableName)
	default:
		return virtual.TableConfig{}, ErrNoTableConfig
	}
}

// loadTableConfig reads a YAML or JSON config from a local path or s3:// uri.
// The table name defaults to the file name.
func loadTableConfig(ctx context.Context, path string) (virtual.TableConfig, error) {
	var (
		b   []byte
		err error
	)
	if s3_helper.IsURI(path) {
		bucket, key, perr := s3_helper.ParseURI(path)
		if perr != nil {
			return virtual.TableConfig{}, perr
		}
		b, err = s3_helper.ReadBytesFromS3(ctx, bucket, key)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return virtual.TableConfig{}, fmt.Errorf("error reading config %s: %w", path, err)
	}

	cfg, err := metastore.ParseTableConfig(b)
	if err != nil {
		return virtual.TableConfig{}, fmt.Errorf("error parsing config %s: %w", path, err)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return cfg, nil
}
