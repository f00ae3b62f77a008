// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package store provides the PostgreSQL connection, schema migrations and the
// query interface shared by repositories.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Querier is the subset of *pgxpool.Pool used by repositories.
// pgxmock.PgxPoolIface satisfies it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

// ConnectOptions control pool sizing and startup retries.
type ConnectOptions struct {
	MaxConns int32
	// Attempts is the number of retries after the first failed ping.
	Attempts uint64
	// Backoff is the initial delay; it doubles on each retry up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultConnectOptions returns the options used when none are configured.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxConns:   10,
		Attempts:   5,
		Backoff:    500 * time.Millisecond,
		MaxBackoff: 10 * time.Second,
	}
}

// Connect opens a pool and pings the database, retrying with exponential
// backoff while the database is unreachable. Malformed URLs fail immediately.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").
			With("operation", "parse database url").
			Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	backoff := retry.NewExponential(opts.Backoff)
	if opts.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(opts.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(opts.Attempts, backoff)

	var pool *pgxpool.Pool
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.WarnContext(ctx, "database not reachable", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("host", cfg.ConnConfig.Host).
			With("attempts", attempt).
			Wrap(err)
	}

	logger.InfoContext(ctx, "database connected", "host", cfg.ConnConfig.Host, "attempts", attempt)
	return pool, nil
}
