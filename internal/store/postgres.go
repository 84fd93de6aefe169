// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package store provides the PostgreSQL connection pool, transaction scoping
// and schema migrations shared by the repositories.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Defaults applied when PoolConfig leaves a field zero.
const (
	DefaultConnectTimeout = 30 * time.Second
	connectBackoffBase    = 250 * time.Millisecond
	connectBackoffCap     = 5 * time.Second
)

// PoolConfig configures the connection pool.
type PoolConfig struct {
	URL            string
	MinConns       int32
	MaxConns       int32
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
}

func (c PoolConfig) parse() (*pgxpool.Config, error) {
	if c.URL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("database URL is required")
	}
	cfg, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database URL").Wrap(err)
	}
	if c.MaxConns > 0 {
		cfg.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		if c.MinConns > cfg.MaxConns {
			return nil, oops.Code("DB_CONFIG_INVALID").
				With("min_conns", c.MinConns).
				With("max_conns", cfg.MaxConns).
				Errorf("min connections exceeds max connections")
		}
		cfg.MinConns = c.MinConns
	}
	if c.IdleTimeout > 0 {
		cfg.MaxConnIdleTime = c.IdleTimeout
	}
	return cfg, nil
}

// Connect opens a pool and pings it until the database answers or
// ConnectTimeout elapses. Retries only cover start-up; later query failures
// are returned to the caller as they happen.
func Connect(ctx context.Context, c PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := c.parse()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	timeout := c.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	backoff := retry.WithMaxDuration(timeout, retry.WithCappedDuration(connectBackoffCap, retry.NewExponential(connectBackoffBase)))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.DebugContext(ctx, "database not ready", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}
