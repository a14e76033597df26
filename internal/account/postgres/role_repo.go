// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/proalaayahia/CimaMoviesApi/internal/account"
)

// RoleRepository implements account.RoleRepository using PostgreSQL.
type RoleRepository struct {
	pool poolIface
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool poolIface) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// Count returns the number of role definitions.
func (r *RoleRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&count); err != nil {
		return 0, oops.Code("ROLE_COUNT_FAILED").Wrap(err)
	}
	return count, nil
}

// Create stores a role definition. Duplicate names are a no-op so concurrent
// bootstraps stay idempotent.
func (r *RoleRepository) Create(ctx context.Context, role *account.Role) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO roles (id, name) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, role.ID.String(), role.Name)
	if err != nil {
		return oops.Code("ROLE_CREATE_FAILED").
			With("name", role.Name).
			Wrap(err)
	}
	return nil
}

// GetByName retrieves a role by name (case-insensitive).
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*account.Role, error) {
	var idStr, roleName string
	err := r.pool.QueryRow(ctx, `
		SELECT id, name FROM roles WHERE LOWER(name) = LOWER($1)
	`, name).Scan(&idStr, &roleName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ROLE_NOT_FOUND").
			With("name", name).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ROLE_GET_BY_NAME_FAILED").
			With("name", name).
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ROLE_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	return &account.Role{ID: id, Name: roleName}, nil
}

// Assign gives the account the named role. An account that already holds a
// role keeps it; the insert is a no-op.
func (r *RoleRepository) Assign(ctx context.Context, accountID ulid.ULID, roleName string) error {
	role, err := r.GetByName(ctx, roleName)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_roles (account_id, role_id) VALUES ($1, $2)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID.String(), role.ID.String())
	if err != nil {
		return oops.Code("ROLE_ASSIGN_FAILED").
			With("account_id", accountID.String()).
			With("role", roleName).
			Wrap(err)
	}
	return nil
}

// RoleNameFor returns the account's role name, or "" when no assignment
// exists.
func (r *RoleRepository) RoleNameFor(ctx context.Context, accountID ulid.ULID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.account_id = $1
	`, accountID.String()).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", oops.Code("ROLE_NAME_FOR_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return name, nil
}

// Compile-time interface check.
var _ account.RoleRepository = (*RoleRepository)(nil)
