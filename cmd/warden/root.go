// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/warden-auth/warden/internal/config"
	"github.com/warden-auth/warden/internal/logging"
)

const serviceName = "warden"

// NewRootCmd creates the root command for the Warden CLI.
func NewRootCmd(deps Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "warden",
		Short: "Warden - authentication and access control service",
		Long: `Warden logs users in with email and password, keeps sessions alive
through refresh tokens and answers permission checks built from direct
grants and roles.`,
		SilenceUsage: true,
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewSeedCmd(deps))
	cmd.AddCommand(NewPurgeCmd(deps))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig reads the layered configuration and installs the process
// logger. full selects Validate over ValidateDatabase.
func loadConfig(cmd *cobra.Command, full bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if full {
		err = cfg.Validate()
	} else {
		err = cfg.ValidateDatabase()
	}
	if err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}
