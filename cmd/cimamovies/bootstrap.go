// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/proalaayahia/CimaMoviesApi/internal/account"
	acctpg "github.com/proalaayahia/CimaMoviesApi/internal/account/postgres"
	"github.com/proalaayahia/CimaMoviesApi/internal/config"
	"github.com/proalaayahia/CimaMoviesApi/internal/store"
)

// Default timeout for the bootstrap command.
const defaultBootstrapTimeout = 30 * time.Second

// bootstrapConfig holds configuration for the bootstrap command.
type bootstrapConfig struct {
	timeout time.Duration
}

// NewBootstrapCmd creates the bootstrap subcommand.
func NewBootstrapCmd() *cobra.Command {
	cfg := &bootstrapConfig{}

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the default roles and admin account",
		Long: `Creates the Admin and User roles and a confirmed default administrator
account. This command is idempotent - it will not create duplicates if run
multiple times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultBootstrapTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runBootstrap(cmd *cobra.Command, _ []string, bcfg *bootstrapConfig) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if cfg.Bootstrap.AdminPassword == "" {
		return oops.Code("CONFIG_INVALID").Errorf("bootstrap.admin_password is required")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), bcfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	cmd.Println("Running migrations...")
	migrator, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() { _ = migrator.Close() }()
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	bootstrapper, err := account.NewBootstrapper(
		acctpg.NewAccountRepository(pool),
		acctpg.NewRoleRepository(pool),
		account.NewArgon2idHasher(),
		cfg.Bootstrap.AdminPassword,
	)
	if err != nil {
		return oops.Code("BOOTSTRAP_FAILED").With("operation", "build bootstrapper").Wrap(err)
	}
	bootstrapper = bootstrapper.WithLogger(slog.Default())
	if cfg.Bootstrap.AdminEmail != "" {
		bootstrapper = bootstrapper.WithAdminEmail(cfg.Bootstrap.AdminEmail)
	}

	if err := bootstrapper.Run(ctx); err != nil {
		return oops.Code("BOOTSTRAP_FAILED").With("operation", "run bootstrap").Wrap(err)
	}

	cmd.Println("Bootstrap complete")
	return nil
}
