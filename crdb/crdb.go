package crdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/danthegoodman1/icefields/gologger"
	"github.com/danthegoodman1/icefields/utils"
)

var (
	PGPool                 *pgxpool.Pool
	StandardContextTimeout = 10 * time.Second

	logger = gologger.NewLogger()
)

// ConnectToDB connects the shared pool to CRDB_DSN.
func ConnectToDB(ctx context.Context) error {
	logger.Debug().Msg("connecting to CRDB...")
	config, err := PoolConfig(utils.CRDB_DSN)
	if err != nil {
		return err
	}

	PGPool, err = pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("error in pgxpool.ConnectConfig: %w", err)
	}
	logger.Debug().Msg("connected to CRDB")
	return nil
}

func PoolConfig(dsn string) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error in pgxpool.ParseConfig: %w", err)
	}

	config.MaxConns = int32(utils.GetEnvOrDefaultInt("CRDB_MAX_CONNS", 10))
	config.MinConns = 1
	config.HealthCheckPeriod = time.Second * 5
	config.MaxConnLifetime = time.Minute * 30
	config.MaxConnIdleTime = time.Minute * 30
	return config, nil
}

func Close() {
	if PGPool != nil {
		PGPool.Close()
	}
}
