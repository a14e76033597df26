// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/proalaayahia/CimaMoviesApi/internal/config"
	"github.com/proalaayahia/CimaMoviesApi/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect schema migrations against the PostgreSQL database.`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

// openMigrator loads the configuration and builds a migrator for its
// database. The caller must Close it.
func openMigrator() (*store.Migrator, error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, err
	}

	m, err := store.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return nil, oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	return m, nil
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openMigrator()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			cmd.Println("Running migrations...")
			if err := m.Up(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "migrate up").Wrap(err)
			}

			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openMigrator()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			cmd.Println("Rolling back migrations...")
			if err := m.Down(); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "migrate down").Wrap(err)
			}

			cmd.Println("Rollback completed successfully")
			return nil
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openMigrator()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			version, dirty, err := m.Version()
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "migration status").Wrap(err)
			}

			if version == 0 {
				cmd.Println("No migrations applied")
				return nil
			}

			cmd.Printf("Current version: %d", version)
			if dirty {
				cmd.Printf(" (dirty)")
			}
			cmd.Println()
			return nil
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Force the migration version without running migrations",
		Long: `Force sets the recorded schema version after a failed migration left the
database dirty. It does not run any migration SQL.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("CONFIG_INVALID").Errorf("version must be an integer, got %q", args[0])
			}

			m, err := openMigrator()
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			if err := m.Force(version); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "migrate force").Wrap(err)
			}

			cmd.Printf("Forced migration version to %d\n", version)
			return nil
		},
	}
}
