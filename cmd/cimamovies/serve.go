// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/proalaayahia/CimaMoviesApi/internal/account"
	acctpg "github.com/proalaayahia/CimaMoviesApi/internal/account/postgres"
	"github.com/proalaayahia/CimaMoviesApi/internal/config"
	"github.com/proalaayahia/CimaMoviesApi/internal/logging"
	"github.com/proalaayahia/CimaMoviesApi/internal/observability"
	"github.com/proalaayahia/CimaMoviesApi/internal/store"
)

const readinessPingTimeout = 2 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the account service",
		Long: `Connects to PostgreSQL, applies pending migrations, runs the idempotent
bootstrap step, and serves metrics and health probes until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	// Flag names match config keys so they feed the flag provider directly.
	cmd.Flags().String("log_format", "json", "log format (json or text)")
	cmd.Flags().String("metrics_addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}

	if deps.ConfigLoader == nil {
		deps.ConfigLoader = config.Load
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = func(ctx context.Context, url string) (Pool, error) {
			return store.Connect(ctx, url)
		}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (SchemaMigrator, error) {
			return store.NewMigrator(url)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	cfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("cimamovies", version, cfg.LogFormat)

	slog.Info("starting account service",
		"log_format", cfg.LogFormat,
		"metrics_addr", cfg.MetricsAddr,
	)

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	migrator, err := deps.MigratorFactory(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := migrator.Close(); err != nil {
		slog.Warn("error closing migrator", "error", err)
	}

	slog.Info("migrations applied")

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured. It comes up before the
	// bootstrap step so the bootstrap's own operations are counted.
	var obsServer ObservabilityServer
	var metrics account.MetricsRecorder
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), readinessPingTimeout)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return fmt.Errorf("failed to start observability server: %w", obsErr)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
		metrics = obsServer.Metrics()
	}

	if cfg.Bootstrap.AdminPassword != "" {
		bootstrapper, bErr := account.NewBootstrapper(
			acctpg.NewAccountRepository(pool),
			acctpg.NewRoleRepository(pool),
			account.NewArgon2idHasher(),
			cfg.Bootstrap.AdminPassword,
		)
		if bErr != nil {
			stopObservability(obsServer)
			return fmt.Errorf("failed to build bootstrapper: %w", bErr)
		}
		bootstrapper = bootstrapper.WithLogger(slog.Default()).WithMetrics(metrics)
		if cfg.Bootstrap.AdminEmail != "" {
			bootstrapper = bootstrapper.WithAdminEmail(cfg.Bootstrap.AdminEmail)
		}
		if bErr := bootstrapper.Run(ctx); bErr != nil {
			stopObservability(obsServer)
			return fmt.Errorf("bootstrap failed: %w", bErr)
		}
	} else {
		slog.Warn("bootstrap.admin_password not set, skipping bootstrap step")
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Account service started")
	slog.Info("account service ready")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// stopObservability shuts the metrics server down on early exit paths.
func stopObservability(s ObservabilityServer) {
	if s == nil {
		return
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
