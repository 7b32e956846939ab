package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/danthegoodman1/icefields/utils"
	"github.com/danthegoodman1/icefields/virtual"
)

const redisTablesKey = "icefields_tables"

type (
	RedisMetaStore struct {
		client *redis.Client
	}

	storedConfig struct {
		Config    virtual.TableConfig
		CreatedAt time.Time
		UpdatedAt time.Time
	}
)

func NewRedisMetaStore(ctx context.Context) (*RedisMetaStore, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Msg("connecting to redis metastore")
	rms := &RedisMetaStore{
		client: redis.NewClient(&redis.Options{
			Addr:        utils.REDIS_ADDR,
			Password:    utils.REDIS_PASSWORD,
			DB:          0,
			DialTimeout: time.Second * 3,
		}),
	}

	// Ping test first to ensure valid connection
	if utils.GetEnvOrDefault("REDIS_PING_TEST", "1") == "1" {
		logger.Debug().Msg("running redis ping test")
		s := time.Now()
		_, err := rms.client.Ping(ctx).Result()
		if err != nil {
			rms.client.Close()
			return nil, fmt.Errorf("error pinging redis: %w", err)
		}
		logger.Debug().Msgf("redis ping test successful in %s", time.Since(s))
	}

	return rms, nil
}

func (rms *RedisMetaStore) TableKey(tableName string) string {
	return "t_" + tableName
}

func (rms *RedisMetaStore) get(ctx context.Context, table string) (storedConfig, error) {
	var sc storedConfig
	raw, err := rms.client.Get(ctx, rms.TableKey(table)).Result()
	if errors.Is(err, redis.Nil) {
		return sc, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	if err != nil {
		return sc, fmt.Errorf("error in redis GET: %w", err)
	}

	err = json.Unmarshal([]byte(raw), &sc)
	if err != nil {
		return sc, fmt.Errorf("error in json.Unmarshal: %w", err)
	}
	return sc, nil
}

func (rms *RedisMetaStore) GetTableConfig(ctx context.Context, table string) (virtual.TableConfig, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("table", table).Msg("getting table config")
	sc, err := rms.get(ctx, table)
	if err != nil {
		return virtual.TableConfig{}, err
	}
	return sc.Config, nil
}

func (rms *RedisMetaStore) PutTableConfig(ctx context.Context, cfg virtual.TableConfig) error {
	if err := checkPut(cfg); err != nil {
		return err
	}
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("table", cfg.Name).Msg("putting table config")

	now := time.Now()
	sc := storedConfig{
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := rms.get(ctx, cfg.Name); err == nil {
		sc.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, ErrTableNotFound) {
		return err
	}

	jsonBytes, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("error in json.Marshal: %w", err)
	}

	pipe := rms.client.TxPipeline()
	pipe.Set(ctx, rms.TableKey(cfg.Name), string(jsonBytes), 0)
	pipe.SAdd(ctx, redisTablesKey, cfg.Name)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("error in redis pipeline exec: %w", err)
	}

	return nil
}

func (rms *RedisMetaStore) ListTables(ctx context.Context) ([]string, error) {
	tables, err := rms.client.SMembers(ctx, redisTablesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("error in redis SMEMBERS: %w", err)
	}
	sort.Strings(tables)
	return tables, nil
}

func (rms *RedisMetaStore) Shutdown(_ context.Context) error {
	err := rms.client.Close()
	if err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}
