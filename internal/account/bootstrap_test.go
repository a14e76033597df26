// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package account_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proalaayahia/CimaMoviesApi/internal/account"
	"github.com/proalaayahia/CimaMoviesApi/internal/account/accounttest"
)

func newBootstrapper(t *testing.T) (*account.Bootstrapper, *accounttest.MemoryRepository, *accounttest.MemoryRoleRepository) {
	t.Helper()
	accounts := accounttest.NewMemoryRepository()
	roles := accounttest.NewMemoryRoleRepository()

	b, err := account.NewBootstrapper(accounts, roles, accounttest.PlainHasher{}, "B00t#strap")
	require.NoError(t, err)
	return b, accounts, roles
}

func TestNewBootstrapper_RequiresAdminPassword(t *testing.T) {
	accounts := accounttest.NewMemoryRepository()
	roles := accounttest.NewMemoryRoleRepository()

	_, err := account.NewBootstrapper(accounts, roles, accounttest.PlainHasher{}, "")
	assert.Error(t, err)
}

func TestBootstrap_CreatesRolesAndAdmin(t *testing.T) {
	b, accounts, roles := newBootstrapper(t)
	ctx := context.Background()

	require.NoError(t, b.Run(ctx))

	count, err := roles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, name := range []string{account.RoleAdmin, account.RoleUser} {
		role, getErr := roles.GetByName(ctx, name)
		require.NoError(t, getErr, "role %q should exist", name)
		assert.Equal(t, name, role.Name)
	}

	admin, err := accounts.GetByUsername(ctx, account.DefaultAdminUsername)
	require.NoError(t, err)
	assert.Equal(t, account.DefaultAdminEmail, admin.Email)
	assert.True(t, admin.EmailConfirmed, "the default admin logs in without a confirmation step")

	role, err := roles.RoleNameFor(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, role)
}

func TestBootstrap_RecordsMetrics(t *testing.T) {
	b, _, _ := newBootstrapper(t)
	metrics := accounttest.NewRecordingMetrics()
	b = b.WithMetrics(metrics)
	ctx := context.Background()

	require.NoError(t, b.Run(ctx))
	assert.Equal(t, 1, metrics.Count("bootstrap", "roles_created"))
	assert.Equal(t, 1, metrics.Count("bootstrap", "admin_created"))

	// The second run changes nothing, so it records nothing.
	require.NoError(t, b.Run(ctx))
	assert.Equal(t, 1, metrics.Count("bootstrap", "roles_created"))
	assert.Equal(t, 1, metrics.Count("bootstrap", "admin_created"))
}

func TestBootstrap_Idempotent(t *testing.T) {
	b, accounts, roles := newBootstrapper(t)
	ctx := context.Background()

	require.NoError(t, b.Run(ctx))
	first, err := accounts.GetByUsername(ctx, account.DefaultAdminUsername)
	require.NoError(t, err)

	require.NoError(t, b.Run(ctx))

	count, err := roles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "second run must not duplicate roles")

	second, err := accounts.GetByUsername(ctx, account.DefaultAdminUsername)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "second run must not replace the admin")
	assert.Equal(t, first.PasswordHash, second.PasswordHash)
}

func TestBootstrap_SkipsRoleCreationWhenRolesExist(t *testing.T) {
	b, _, roles := newBootstrapper(t)
	ctx := context.Background()

	// A custom role set is already in place.
	require.NoError(t, roles.Create(ctx, &account.Role{ID: ulid.Make(), Name: "Moderator"}))

	require.NoError(t, b.Run(ctx))

	count, err := roles.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "existing role sets are left untouched")

	_, err = roles.GetByName(ctx, account.RoleAdmin)
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestBootstrap_CustomAdminEmail(t *testing.T) {
	accounts := accounttest.NewMemoryRepository()
	roles := accounttest.NewMemoryRoleRepository()

	b, err := account.NewBootstrapper(accounts, roles, accounttest.PlainHasher{}, "B00t#strap")
	require.NoError(t, err)
	b = b.WithAdminEmail("root@cima.example")

	require.NoError(t, b.Run(context.Background()))

	admin, err := accounts.GetByUsername(context.Background(), account.DefaultAdminUsername)
	require.NoError(t, err)
	assert.Equal(t, "root@cima.example", admin.Email)
}

func TestBootstrap_AdminCanLogin(t *testing.T) {
	b, accounts, roles := newBootstrapper(t)
	ctx := context.Background()
	require.NoError(t, b.Run(ctx))

	tokens, err := account.NewTokenProvider([]byte("test-token-secret"))
	require.NoError(t, err)
	sessions := &accounttest.StubSessionIssuer{}
	svc, err := account.NewService(accounts, roles, accounttest.PlainHasher{}, tokens, sessions, &accounttest.RecordingNotifier{})
	require.NoError(t, err)

	result, err := svc.Login(ctx, account.DefaultAdminEmail, "B00t#strap", false)
	require.NoError(t, err)
	assert.Equal(t, account.RoleAdmin, result.Role)
	assert.Equal(t, account.DefaultAdminUsername, result.Username)
}
