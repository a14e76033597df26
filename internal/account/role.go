// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package account

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Well-known role names. Both must exist before any login completes;
// the Bootstrapper creates them at startup.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// Role is a named role definition.
type Role struct {
	ID   ulid.ULID
	Name string
}

// RoleRepository manages role definitions and account-role assignments.
// An account holds at most one role.
type RoleRepository interface {
	// Count returns the number of role definitions.
	Count(ctx context.Context) (int, error)

	// Create stores a role definition. Creating an existing name is a no-op
	// so concurrent bootstraps stay idempotent.
	Create(ctx context.Context, role *Role) error

	// GetByName retrieves a role by name.
	GetByName(ctx context.Context, name string) (*Role, error)

	// Assign gives the account the named role. Assigning to an account that
	// already holds a role is a no-op.
	Assign(ctx context.Context, accountID ulid.ULID, roleName string) error

	// RoleNameFor returns the account's role name, or "" when the account
	// holds no assignment.
	RoleNameFor(ctx context.Context, accountID ulid.ULID) (string, error)
}
