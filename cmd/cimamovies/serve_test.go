// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proalaayahia/CimaMoviesApi/internal/config"
	"github.com/proalaayahia/CimaMoviesApi/internal/observability"
)

type fakePool struct {
	pingErr error
	closed  bool
}

func (p *fakePool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (p *fakePool) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{err: errors.New("no database")}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func (p *fakePool) Ping(context.Context) error { return p.pingErr }

func (p *fakePool) Close() { p.closed = true }

type fakeMigrator struct {
	upCalled bool
	upErr    error
	closed   bool
}

func (m *fakeMigrator) Up() error {
	m.upCalled = true
	return m.upErr
}

func (m *fakeMigrator) Close() error {
	m.closed = true
	return nil
}

type fakeObsServer struct {
	started bool
	stopped bool
	errCh   chan error
}

func (s *fakeObsServer) Start() (<-chan error, error) {
	s.started = true
	s.errCh = make(chan error)
	return s.errCh, nil
}

func (s *fakeObsServer) Stop(context.Context) error {
	s.stopped = true
	return nil
}

func (s *fakeObsServer) Addr() string { return "127.0.0.1:9100" }

func (s *fakeObsServer) Metrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func testServeConfig() *config.Config {
	cfg := config.Default()
	cfg.DatabaseURL = "postgres://localhost:5432/cima"
	cfg.MetricsAddr = "127.0.0.1:0"
	return &cfg
}

func serveDeps(pool *fakePool, migrator *fakeMigrator, obs *fakeObsServer, cfg *config.Config) *ServeDeps {
	return &ServeDeps{
		ConfigLoader: func(string, *pflag.FlagSet) (*config.Config, error) {
			return cfg, nil
		},
		PoolFactory: func(context.Context, string) (Pool, error) {
			return pool, nil
		},
		MigratorFactory: func(string) (SchemaMigrator, error) {
			return migrator, nil
		},
		ObservabilityServerFactory: func(string, observability.ReadinessChecker) ObservabilityServer {
			return obs
		},
	}
}

func TestServe_GracefulShutdownOnContextCancel(t *testing.T) {
	pool := &fakePool{}
	migrator := &fakeMigrator{}
	obs := &fakeObsServer{}

	cmd := NewServeCmd()
	cmd.SetOut(new(bytes.Buffer))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(ctx, cmd, serveDeps(pool, migrator, obs, testServeConfig()))
	}()

	// Give the service time to come up, then trigger shutdown.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for serve to shut down")
	}

	assert.True(t, migrator.upCalled, "migrations should run")
	assert.True(t, migrator.closed, "migrator should be closed")
	assert.True(t, obs.started, "observability server should start")
	assert.True(t, obs.stopped, "observability server should stop")
	assert.True(t, pool.closed, "pool should be closed")
}

func TestServe_ConfigLoadError(t *testing.T) {
	cmd := NewServeCmd()
	cmd.SetOut(new(bytes.Buffer))

	deps := &ServeDeps{
		ConfigLoader: func(string, *pflag.FlagSet) (*config.Config, error) {
			return nil, errors.New("bad config")
		},
	}

	err := runServeWithDeps(context.Background(), cmd, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}

func TestServe_PoolFactoryError(t *testing.T) {
	cmd := NewServeCmd()
	cmd.SetOut(new(bytes.Buffer))

	deps := serveDeps(&fakePool{}, &fakeMigrator{}, &fakeObsServer{}, testServeConfig())
	deps.PoolFactory = func(context.Context, string) (Pool, error) {
		return nil, errors.New("connection refused")
	}

	err := runServeWithDeps(context.Background(), cmd, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestServe_MigrationError(t *testing.T) {
	pool := &fakePool{}
	migrator := &fakeMigrator{upErr: errors.New("dirty database")}

	cmd := NewServeCmd()
	cmd.SetOut(new(bytes.Buffer))

	err := runServeWithDeps(context.Background(), cmd, serveDeps(pool, migrator, &fakeObsServer{}, testServeConfig()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to run migrations")
	assert.True(t, pool.closed, "pool should be closed on migration failure")
}

func TestServe_BootstrapErrorStopsObservability(t *testing.T) {
	pool := &fakePool{}
	migrator := &fakeMigrator{}
	obs := &fakeObsServer{}

	cfg := testServeConfig()
	cfg.Bootstrap.AdminPassword = "B00t#strap"

	cmd := NewServeCmd()
	cmd.SetOut(new(bytes.Buffer))

	err := runServeWithDeps(context.Background(), cmd, serveDeps(pool, migrator, obs, cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap failed")
	assert.True(t, obs.started, "observability server starts before the bootstrap step")
	assert.True(t, obs.stopped, "observability server should stop when bootstrap fails")
	assert.True(t, pool.closed, "pool should be closed on bootstrap failure")
}

func TestServe_MetricsDisabled(t *testing.T) {
	pool := &fakePool{}
	migrator := &fakeMigrator{}
	obs := &fakeObsServer{}

	cfg := testServeConfig()
	cfg.MetricsAddr = ""

	cmd := NewServeCmd()
	cmd.SetOut(new(bytes.Buffer))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- runServeWithDeps(ctx, cmd, serveDeps(pool, migrator, obs, cfg))
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for serve to shut down")
	}

	assert.False(t, obs.started, "observability server should not start when metrics_addr is empty")
}

func TestMonitorServerErrors_CancelsOnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	errCh <- errors.New("listener failed")

	monitorServerErrors(ctx, cancel, errCh, "test")

	select {
	case <-ctx.Done():
		// expected
	default:
		t.Error("expected context to be cancelled after server error")
	}
}

func TestMonitorServerErrors_ReturnsOnClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error)
	close(errCh)

	monitorServerErrors(ctx, cancel, errCh, "test")

	select {
	case <-ctx.Done():
		t.Error("context should not be cancelled on graceful close")
	default:
	}
}
