// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

// Package session mints and verifies the signed, stateless session
// credentials that carry identity and role claims between requests. The
// client is the sole holder of the credential; no session state is stored
// server-side.
package session

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors.
var (
	// ErrInvalidSession is returned when a credential fails signature,
	// structure, or expiry checks.
	ErrInvalidSession = errors.New("session credential is invalid")

	// ErrForbidden is returned when valid claims do not match the required
	// identity or role.
	ErrForbidden = errors.New("claims do not match required identity or role")
)

// Claims is the identity bundle embedded in a session credential.
// Subject carries the account id.
type Claims struct {
	Username string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AccountID returns the account id claim.
func (c *Claims) AccountID() string {
	return c.Subject
}
