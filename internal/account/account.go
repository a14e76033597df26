// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

// Package account implements the account lifecycle for the CimaMovies
// catalog API: registration with email-confirmed activation, credential
// login with lockout, role assignment, and password reset.
package account

import (
	"context"
	"regexp"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

// usernameRegex matches usernames that start with a letter and contain only
// letters, numbers, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// emailRegex is a deliberately simple address pattern: local part, one @,
// and a dotted domain. Deliverability is the notifier's problem.
var emailRegex = regexp.MustCompile(`^[\w.+-]+@[\w-]+(\.[\w-]+)+$`)

// Account represents a registered user's credential and lifecycle state.
type Account struct {
	ID               ulid.ULID
	Email            string
	Username         string
	PasswordHash     string
	EmailConfirmed   bool
	LockoutEnabled   bool
	LockoutEndsAt    *time.Time
	FailedLoginCount int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewAccount creates an unconfirmed account with lockout enabled.
// The password hash must already be computed by a PasswordHasher.
func NewAccount(email, username, passwordHash string) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_EMPTY_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Account{
		ID:             ulid.Make(),
		Email:          email,
		Username:       username,
		PasswordHash:   passwordHash,
		EmailConfirmed: false,
		LockoutEnabled: true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsLockedOut returns true while a lockout window is in effect.
func (a *Account) IsLockedOut() bool {
	return a.LockoutEnabled && a.LockoutEndsAt != nil && a.LockoutEndsAt.After(time.Now())
}

// ValidateEmail validates an email against the address pattern.
func ValidateEmail(email string) error {
	if email == "" || len(email) > 256 || !emailRegex.MatchString(email) {
		return oops.Code("ACCOUNT_INVALID_EMAIL").
			With("email", email).
			Wrap(ErrInvalidEmail)
	}
	return nil
}

// ValidateUsername validates a username against the naming rules:
// MinUsernameLength to MaxUsernameLength characters, starting with a letter,
// containing only letters, numbers, and underscores.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return oops.Code("ACCOUNT_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("ACCOUNT_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("ACCOUNT_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword enforces the complexity policy: at least MinPasswordLength
// characters with one digit, one upper-case letter, one lower-case letter,
// and one symbol. The length floor applies even when every character class
// is covered, so a short mnemonic like "Pw1!" is rejected as weak.
func ValidatePassword(password string) error {
	var digit, upper, lower, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		default:
			symbol = true
		}
	}
	if len(password) < MinPasswordLength || !digit || !upper || !lower || !symbol {
		return oops.Code("ACCOUNT_WEAK_PASSWORD").
			With("min_length", MinPasswordLength).
			Wrap(ErrWeakPassword)
	}
	return nil
}

// Repository manages account persistence. Implementations must enforce
// case-insensitive uniqueness of email and username at the store level;
// constraint violations surface as ErrDuplicateEmail / ErrDuplicateUsername.
type Repository interface {
	// Create stores a new account.
	Create(ctx context.Context, acct *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByUsername retrieves an account by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// EmailExists reports whether any account uses the email (case-insensitive).
	EmailExists(ctx context.Context, email string) (bool, error)

	// UsernameExists reports whether any account uses the username (case-insensitive).
	UsernameExists(ctx context.Context, username string) (bool, error)

	// ConfirmEmail sets emailConfirmed=true for the account.
	ConfirmEmail(ctx context.Context, id ulid.ULID) error

	// UpdatePassword replaces the password hash for the account.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// RecordLoginFailure atomically increments the failure counter and, when
	// the new count reaches threshold, arms the lockout window and resets the
	// counter to zero so the account faces a fresh threshold after the window
	// elapses. It returns the updated counter and lockout end so concurrent
	// attempts never undercount.
	RecordLoginFailure(ctx context.Context, id ulid.ULID, threshold int, lockout time.Duration) (int, *time.Time, error)

	// ResetLoginFailures clears the failure counter and any lockout window.
	ResetLoginFailures(ctx context.Context, id ulid.ULID) error
}
