package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"
)

type permanent interface {
	IsPermanent() bool
}

// ReliableExec acquires a connection and runs f, retrying with exponential
// backoff until timeout. Errors that report IsPermanent, pgx.ErrNoRows, and
// non retryable postgres errors are returned right away.
func ReliableExec(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, f func(ctx context.Context, conn *pgxpool.Conn) error) error {
	return retry(ctx, timeout, func() error {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("error in pool.Acquire: %w", err)
		}
		defer conn.Release()
		return f(ctx, conn)
	})
}

func retry(ctx context.Context, timeout time.Duration, op func() error) error {
	logger := zerolog.Ctx(ctx)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = timeout

	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		logger.Warn().Err(err).Str("retryIn", d.String()).Msg("retrying db operation")
	})
}

// IsRetryable reports whether err is worth retrying against CockroachDB.
func IsRetryable(err error) bool {
	var pe permanent
	if errors.As(err, &pe) && pe.IsPermanent() {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, context.Canceled) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 is a serialization failure, crdb asks clients to retry those
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return true
}
