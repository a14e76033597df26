// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

// Package postgres implements the account and role repositories over
// PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/proalaayahia/CimaMoviesApi/internal/account"
)

// poolIface is the pgxpool surface the repositories need. pgxmock's
// PgxPoolIface satisfies it, so repository tests run without a database.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Unique constraint names from the users migration. Violations translate to
// the matching duplicate error so a race past the application pre-check still
// surfaces as a domain error.
const (
	emailUniqueConstraint    = "users_email_key"
	usernameUniqueConstraint = "users_username_key"
)

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account. Unique violations on email or username come
// back as account.ErrDuplicateEmail / account.ErrDuplicateUsername.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, username, password_hash, email_confirmed,
			lockout_enabled, lockout_ends_at, failed_login_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		acct.ID.String(),
		acct.Email,
		acct.Username,
		acct.PasswordHash,
		acct.EmailConfirmed,
		acct.LockoutEnabled,
		acct.LockoutEndsAt,
		acct.FailedLoginCount,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		if dupErr := translateUniqueViolation(err); dupErr != nil {
			return dupErr
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", acct.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, username, password_hash, email_confirmed,
		       lockout_enabled, lockout_ends_at, failed_login_count,
		       created_at, updated_at
		FROM users
		WHERE id = $1
	`, id.String())

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, username, password_hash, email_confirmed,
		       lockout_enabled, lockout_ends_at, failed_login_count,
		       created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("email", email).
			Wrap(err)
	}
	return acct, nil
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, username, password_hash, email_confirmed,
		       lockout_enabled, lockout_ends_at, failed_login_count,
		       created_at, updated_at
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, username)

	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_USERNAME_FAILED").
			With("username", username).
			Wrap(err)
	}
	return acct, nil
}

// EmailExists reports whether any account uses the email.
func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_EMAIL_EXISTS_FAILED").Wrap(err)
	}
	return exists, nil
}

// UsernameExists reports whether any account uses the username.
func (r *AccountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, oops.Code("ACCOUNT_USERNAME_EXISTS_FAILED").Wrap(err)
	}
	return exists, nil
}

// ConfirmEmail sets email_confirmed for the account.
func (r *AccountRepository) ConfirmEmail(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET email_confirmed = TRUE, updated_at = $2
		WHERE id = $1
	`, id.String(), time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_CONFIRM_EMAIL_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the password hash for the account.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// RecordLoginFailure increments the failure counter and arms the lockout
// window in a single statement, so concurrent failed attempts for the same
// account never undercount. Arming the window resets the counter to zero,
// giving the account a fresh threshold once the window elapses.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, threshold int, lockout time.Duration) (int, *time.Time, error) {
	var count int
	var endsAt *time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET
			failed_login_count = CASE
				WHEN lockout_enabled AND failed_login_count + 1 >= $2 THEN 0
				ELSE failed_login_count + 1
			END,
			lockout_ends_at = CASE
				WHEN lockout_enabled AND failed_login_count + 1 >= $2
					THEN now() + make_interval(secs => $3)
				ELSE lockout_ends_at
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING failed_login_count, lockout_ends_at
	`, id.String(), threshold, lockout.Seconds()).Scan(&count, &endsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return 0, nil, oops.Code("ACCOUNT_RECORD_FAILURE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return count, endsAt, nil
}

// ResetLoginFailures clears the failure counter and lockout window.
func (r *AccountRepository) ResetLoginFailures(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET failed_login_count = 0, lockout_ends_at = NULL, updated_at = now()
		WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_RESET_FAILURES_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// translateUniqueViolation maps a unique constraint violation to the
// matching duplicate error, or returns nil for other errors.
func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case emailUniqueConstraint:
		return oops.Code("ACCOUNT_DUPLICATE_EMAIL").Wrap(account.ErrDuplicateEmail)
	case usernameUniqueConstraint:
		return oops.Code("ACCOUNT_DUPLICATE_USERNAME").Wrap(account.ErrDuplicateUsername)
	default:
		return nil
	}
}

// scanAccount scans a single row into an Account. Callers handle
// pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		idStr            string
		email            string
		username         string
		passwordHash     string
		emailConfirmed   bool
		lockoutEnabled   bool
		lockoutEndsAt    *time.Time
		failedLoginCount int
		createdAt        time.Time
		updatedAt        time.Time
	)

	err := row.Scan(
		&idStr,
		&email,
		&username,
		&passwordHash,
		&emailConfirmed,
		&lockoutEnabled,
		&lockoutEndsAt,
		&failedLoginCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	return &account.Account{
		ID:               id,
		Email:            email,
		Username:         username,
		PasswordHash:     passwordHash,
		EmailConfirmed:   emailConfirmed,
		LockoutEnabled:   lockoutEnabled,
		LockoutEndsAt:    lockoutEndsAt,
		FailedLoginCount: failedLoginCount,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

// Compile-time interface check.
var _ account.Repository = (*AccountRepository)(nil)
