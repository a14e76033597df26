// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package account

import "errors"

// Sentinel errors for the account lifecycle. Services wrap these with
// samber/oops codes and context; callers branch with errors.Is.
var (
	// ErrNotFound is returned when a requested account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email is already in use")

	// ErrDuplicateUsername is returned when the username is already registered.
	ErrDuplicateUsername = errors.New("username is already in use")

	// ErrInvalidEmail is returned when the email does not match the address pattern.
	ErrInvalidEmail = errors.New("email address is not valid")

	// ErrWeakPassword is returned when the password fails the complexity policy.
	ErrWeakPassword = errors.New("password does not meet complexity requirements")

	// ErrEmailNotConfirmed is returned on login before registration confirmation.
	ErrEmailNotConfirmed = errors.New("email has not been confirmed")

	// ErrLockedOut is returned while an account is temporarily suspended.
	ErrLockedOut = errors.New("account is temporarily locked out")

	// ErrUnauthorized is returned on credential mismatch. It deliberately does
	// not distinguish a wrong password from a missing account.
	ErrUnauthorized = errors.New("invalid email or password")

	// ErrInvalidToken is returned when a confirmation or reset token fails
	// verification, was issued for another purpose, or has expired.
	ErrInvalidToken = errors.New("token is invalid or expired")

	// ErrNotifyFailed is returned when the outbound notifier rejects a
	// confirmation or reset message. Distinct from validation failures.
	ErrNotifyFailed = errors.New("notification delivery failed")

	// ErrAlreadyAuthenticated is returned when a login request carries a
	// session credential that still verifies.
	ErrAlreadyAuthenticated = errors.New("caller already holds a valid session")
)
