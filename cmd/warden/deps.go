// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/access"
	accesspg "github.com/warden-auth/warden/internal/access/postgres"
	"github.com/warden-auth/warden/internal/auth"
	authpg "github.com/warden-auth/warden/internal/auth/postgres"
	"github.com/warden-auth/warden/internal/config"
	"github.com/warden-auth/warden/internal/observability"
	"github.com/warden-auth/warden/internal/seed"
	"github.com/warden-auth/warden/internal/store"
)

// Deps contains injectable dependencies for the commands. Nil fields use
// their default implementations.
type Deps struct {
	// MigratorFactory opens a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// PoolFactory connects the database pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, cfg store.PoolConfig) (*pgxpool.Pool, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checks ...observability.Check) ObservabilityServer
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d Deps) withDefaults() Deps {
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if d.PoolFactory == nil {
		d.PoolFactory = store.Connect
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, checks ...observability.Check) ObservabilityServer {
			return observability.NewServer(addr, checks...)
		}
	}
	return d
}

// accessServices are the components that need only the database.
type accessServices struct {
	users    *authpg.UserRepository
	resolver *access.PermissionResolver
	seeder   *seed.Seeder
}

func newAccessServices(pool *pgxpool.Pool, hasher auth.PasswordHasher, logger *slog.Logger) (*accessServices, error) {
	tx := store.NewTransactor(pool)
	users := authpg.NewUserRepository(pool)

	resolver, err := access.NewPermissionResolver(accesspg.NewGrantStore(pool), tx, logger)
	if err != nil {
		return nil, err
	}

	seeder, err := seed.New(seed.Deps{
		Permissions: accesspg.NewPermissionRepository(pool),
		Roles:       accesspg.NewRoleRepository(pool),
		Users:       users,
		Resolver:    resolver,
		Hasher:      hasher,
		Transactor:  tx,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return &accessServices{users: users, resolver: resolver, seeder: seeder}, nil
}

// authServices add token issuing on top of accessServices.
type authServices struct {
	*accessServices
	sessions   *auth.SessionManager
	principals *auth.PrincipalResolver
	tokens     *auth.TokenCodec
}

func newAuthServices(pool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) (*authServices, error) {
	hasher := newHasher(cfg)
	base, err := newAccessServices(pool, hasher, logger)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenCodec(cfg.TokenConfig())
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionManagerWithLogger(
		base.users,
		authpg.NewRefreshTokenRepository(pool),
		hasher,
		tokens,
		logger,
	)
	if err != nil {
		return nil, err
	}
	principals, err := auth.NewPrincipalResolver(tokens, sessions,
		auth.WithMissingAccessRenewal(cfg.Auth.RenewMissingAccessToken))
	if err != nil {
		return nil, err
	}
	return &authServices{
		accessServices: base,
		sessions:       sessions,
		principals:     principals,
		tokens:         tokens,
	}, nil
}

func newHasher(cfg *config.Config) auth.PasswordHasher {
	return auth.NewBoundedHasher(auth.NewArgon2idHasher(), cfg.Auth.HashConcurrency)
}
