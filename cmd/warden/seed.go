// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/seed"
)

// Default timeout for the seed command.
const defaultSeedTimeout = 30 * time.Second

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd(deps Deps) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Sync the permission catalog and bootstrap the root role",
		Long: `Sync the bundled permission catalog into the database, ensure the
root role exists and, depending on configuration, grant it every permission
and create the root user. Running it again changes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}
			opts := cfg.SeedOptions()
			if err := opts.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := deps.PoolFactory(ctx, cfg.PoolConfig())
			if err != nil {
				return err
			}
			defer pool.Close()

			svc, err := newAccessServices(pool, newHasher(cfg), logger)
			if err != nil {
				return err
			}
			report, err := runSeed(ctx, svc.seeder, opts)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(ctx context.Context, seeder *seed.Seeder, opts seed.Options) (*seed.Report, error) {
	catalog, err := access.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	return seeder.Run(ctx, catalog, opts)
}

func printReport(cmd *cobra.Command, r *seed.Report) {
	cmd.Printf("Permissions: %d added, %d removed, %d updated\n",
		r.Permissions.Added, r.Permissions.Removed, r.Permissions.Updated)
	cmd.Printf("Root role: %s (%s)\n", r.RootRole.Name, r.RootRole.ID)
	switch {
	case r.RootUser == nil:
	case r.RootUserCreated:
		cmd.Printf("Root user created: %s\n", r.RootUser.Email)
	default:
		cmd.Printf("Root user exists: %s\n", r.RootUser.Email)
	}
}
