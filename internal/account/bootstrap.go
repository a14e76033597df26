// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Bootstrap defaults. The admin password comes from configuration.
const (
	DefaultAdminUsername = "Admin"
	DefaultAdminEmail    = "admin@admin.com"
)

// Bootstrapper performs the idempotent first-run initialization: the default
// role set and the default administrator account. It runs once at process
// startup, before any login is served, instead of being re-checked on every
// login request.
type Bootstrapper struct {
	accounts Repository
	roles    RoleRepository
	hasher   PasswordHasher
	logger   *slog.Logger
	metrics  MetricsRecorder

	adminEmail    string
	adminPassword string
}

// NewBootstrapper creates a Bootstrapper. adminPassword is the bootstrap
// credential for the default administrator; it should be rotated after the
// first login.
func NewBootstrapper(accounts Repository, roles RoleRepository, hasher PasswordHasher, adminPassword string) (*Bootstrapper, error) {
	if accounts == nil {
		return nil, oops.Code("BOOTSTRAP_INIT").Errorf("accounts repository is required")
	}
	if roles == nil {
		return nil, oops.Code("BOOTSTRAP_INIT").Errorf("roles repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("BOOTSTRAP_INIT").Errorf("password hasher is required")
	}
	if adminPassword == "" {
		return nil, oops.Code("BOOTSTRAP_INIT").Errorf("admin password is required")
	}

	return &Bootstrapper{
		accounts:      accounts,
		roles:         roles,
		hasher:        hasher,
		logger:        slog.Default(),
		metrics:       noopMetrics{},
		adminEmail:    DefaultAdminEmail,
		adminPassword: adminPassword,
	}, nil
}

// WithMetrics sets the metrics recorder.
func (b *Bootstrapper) WithMetrics(m MetricsRecorder) *Bootstrapper {
	if m != nil {
		b.metrics = m
	}
	return b
}

// WithLogger sets the bootstrap logger.
func (b *Bootstrapper) WithLogger(logger *slog.Logger) *Bootstrapper {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithAdminEmail overrides the default administrator email.
func (b *Bootstrapper) WithAdminEmail(email string) *Bootstrapper {
	if email != "" {
		b.adminEmail = email
	}
	return b
}

// Run ensures default roles and the default administrator exist.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if err := b.EnsureDefaultRoles(ctx); err != nil {
		return err
	}
	return b.EnsureDefaultAdmin(ctx)
}

// EnsureDefaultRoles creates the "Admin" and "User" roles when the role set
// is empty. Creation is best-effort idempotent: a concurrent bootstrap that
// wins the race leaves role creation a no-op.
func (b *Bootstrapper) EnsureDefaultRoles(ctx context.Context) error {
	count, err := b.roles.Count(ctx)
	if err != nil {
		return oops.Code("BOOTSTRAP_ROLES_FAILED").With("operation", "Count").Wrap(err)
	}
	if count > 0 {
		return nil
	}

	for _, name := range []string{RoleAdmin, RoleUser} {
		role := &Role{ID: ulid.Make(), Name: name}
		if err := b.roles.Create(ctx, role); err != nil {
			return oops.Code("BOOTSTRAP_ROLES_FAILED").
				With("operation", "Create").
				With("role", name).
				Wrap(err)
		}
	}

	b.metrics.Record("bootstrap", "roles_created")
	b.logger.Info("default roles created", "roles", []string{RoleAdmin, RoleUser})
	return nil
}

// EnsureDefaultAdmin creates the "Admin" account with a confirmed email and
// assigns it the Admin role. Existing admin accounts are left untouched.
func (b *Bootstrapper) EnsureDefaultAdmin(ctx context.Context) error {
	existing, err := b.accounts.GetByUsername(ctx, DefaultAdminUsername)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("BOOTSTRAP_ADMIN_FAILED").With("operation", "GetByUsername").Wrap(err)
	}
	if existing != nil {
		return nil
	}

	hash, err := b.hasher.Hash(b.adminPassword)
	if err != nil {
		return oops.Code("BOOTSTRAP_ADMIN_FAILED").With("operation", "Hash").Wrap(err)
	}

	admin, err := NewAccount(b.adminEmail, DefaultAdminUsername, hash)
	if err != nil {
		return oops.Code("BOOTSTRAP_ADMIN_FAILED").With("operation", "NewAccount").Wrap(err)
	}
	admin.EmailConfirmed = true
	admin.UpdatedAt = time.Now()

	if err := b.accounts.Create(ctx, admin); err != nil {
		// A concurrent bootstrap created it first; that is fine.
		if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrDuplicateUsername) {
			return nil
		}
		return oops.Code("BOOTSTRAP_ADMIN_FAILED").With("operation", "Create").Wrap(err)
	}

	// Assign the Admin role when it exists; role creation above makes this
	// the normal path.
	if _, err := b.roles.GetByName(ctx, RoleAdmin); err != nil {
		if errors.Is(err, ErrNotFound) {
			b.logger.Warn("admin role missing, skipping assignment", "account_id", admin.ID.String())
			return nil
		}
		return oops.Code("BOOTSTRAP_ADMIN_FAILED").With("operation", "GetByName").Wrap(err)
	}
	if err := b.roles.Assign(ctx, admin.ID, RoleAdmin); err != nil {
		return oops.Code("BOOTSTRAP_ADMIN_FAILED").With("operation", "Assign").Wrap(err)
	}

	b.metrics.Record("bootstrap", "admin_created")
	b.logger.Info("default administrator created", "account_id", admin.ID.String())
	return nil
}
