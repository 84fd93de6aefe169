// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	authpg "github.com/warden-auth/warden/internal/auth/postgres"
)

// NewPurgeCmd creates the purge subcommand.
func NewPurgeCmd(deps Deps) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired refresh tokens",
		Long: `Delete refresh token records whose expiry has passed. Expired tokens
are already rejected; purging only reclaims their rows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, false)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := deps.PoolFactory(ctx, cfg.PoolConfig())
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := authpg.NewRefreshTokenRepository(pool).DeleteExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "expired refresh tokens purged", "count", n)
			cmd.Printf("Purged %d expired refresh token(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for the delete")

	return cmd
}
