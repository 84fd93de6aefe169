// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/warden-auth/warden/internal/config"
	"github.com/warden-auth/warden/internal/observability"
	"github.com/warden-auth/warden/internal/store"
	"github.com/warden-auth/warden/internal/web"
)

type serveFlags struct {
	migrate bool
	seed    bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps Deps) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API together with the metrics and health server. The
permission catalog is synced at startup unless --seed=false is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps, flags)
		},
	}
	config.RegisterServeFlags(cmd.Flags())
	cmd.Flags().BoolVar(&flags.migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().BoolVar(&flags.seed, "seed", true, "sync the permission catalog before serving")

	return cmd
}

func runServe(cmd *cobra.Command, deps Deps, flags *serveFlags) error {
	cfg, logger, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if flags.migrate {
		if err := withMigrator(cmd, deps, migrateUp); err != nil {
			return err
		}
	}

	pool, err := deps.PoolFactory(ctx, cfg.PoolConfig())
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := newAuthServices(pool, cfg, logger)
	if err != nil {
		return err
	}

	if flags.seed {
		report, seedErr := runSeed(ctx, svc.seeder, cfg.SeedOptions())
		if seedErr != nil {
			return seedErr
		}
		printReport(cmd, report)
	}

	var (
		obs    ObservabilityServer
		obsErr <-chan error
		m      *observability.Metrics
	)
	if cfg.Metrics.Address != "" {
		obs = deps.ObservabilityServerFactory(cfg.Metrics.Address,
			observability.Check{Name: "database", Probe: pool.Ping},
			observability.Check{Name: "schema", Probe: func(ctx context.Context) error {
				return store.CheckSchema(ctx, pool)
			}},
		)
		if obsErr, err = obs.Start(); err != nil {
			return err
		}
		m = obs.Metrics()
	}

	api, err := web.NewServer(web.Deps{
		Sessions:    svc.sessions,
		Principals:  svc.principals,
		Permissions: svc.resolver,
		Metrics:     m,
		Logger:      logger,
	}, web.Options{
		Version:       version,
		SecureCookies: cfg.Server.SecureCookies,
		AccessTTL:     svc.tokens.AccessTTL(),
		RefreshTTL:    svc.tokens.RefreshTTL(),
	})
	if err != nil {
		stopObservability(logger, obs, cfg)
		return err
	}
	apiErr, err := api.Start(cfg.Server.Address)
	if err != nil {
		stopObservability(logger, obs, cfg)
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case e := <-apiErr:
		runErr = oops.Code("SERVE_FAILED").With("component", "api").Wrap(e)
	case e := <-obsErr:
		runErr = oops.Code("SERVE_FAILED").With("component", "observability").Wrap(e)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := api.Stop(shutdownCtx); err != nil {
		logger.Error("stop http server", "error", err)
	}
	stopObservability(logger, obs, cfg)
	return runErr
}

func stopObservability(logger *slog.Logger, obs ObservabilityServer, cfg *config.Config) {
	if obs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		logger.Error("stop observability server", "error", err)
	}
}
