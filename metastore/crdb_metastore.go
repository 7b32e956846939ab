package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/danthegoodman1/icefields/crdb"
	"github.com/danthegoodman1/icefields/utils"
	"github.com/danthegoodman1/icefields/virtual"
)

type (
	CRDBMetaStore struct {
		pool *pgxpool.Pool
	}
)

func NewCRDBMetaStore(pool *pgxpool.Pool) *CRDBMetaStore {
	return &CRDBMetaStore{pool: pool}
}

func (cms *CRDBMetaStore) GetTableConfig(ctx context.Context, table string) (virtual.TableConfig, error) {
	var raw pgtype.JSONB
	err := utils.ReliableExec(ctx, cms.pool, crdb.StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, `SELECT config FROM table_configs WHERE name = $1`, table).Scan(&raw)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return virtual.TableConfig{}, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	if err != nil {
		return virtual.TableConfig{}, fmt.Errorf("error selecting table config: %w", err)
	}

	var cfg virtual.TableConfig
	if err := json.Unmarshal(raw.Bytes, &cfg); err != nil {
		return virtual.TableConfig{}, fmt.Errorf("error in json.Unmarshal: %w", err)
	}
	return cfg, nil
}

func (cms *CRDBMetaStore) PutTableConfig(ctx context.Context, cfg virtual.TableConfig) error {
	if err := checkPut(cfg); err != nil {
		return err
	}
	var raw pgtype.JSONB
	if err := raw.Set(cfg); err != nil {
		return fmt.Errorf("error in JSONB.Set: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, crdb.StandardContextTimeout)
	defer cancel()
	err := crdbpgx.ExecuteTx(ctx, cms.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO table_configs (name, config) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET config = excluded.config, updated_at = now()
		`, cfg.Name, raw)
		return err
	})
	if err != nil {
		return fmt.Errorf("error upserting table config: %w", err)
	}
	return nil
}

func (cms *CRDBMetaStore) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := utils.ReliableExec(ctx, cms.pool, crdb.StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		tables = tables[:0]
		rows, err := conn.Query(ctx, `SELECT name FROM table_configs ORDER BY name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			tables = append(tables, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("error listing tables: %w", err)
	}
	return tables, nil
}

func (cms *CRDBMetaStore) Shutdown(context.Context) error {
	cms.pool.Close()
	return nil
}
