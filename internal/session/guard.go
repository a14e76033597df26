// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package session

import "github.com/samber/oops"

// Guard authorizes protected operations against required claims without a
// server-side identity lookup.
type Guard struct {
	issuer *Issuer
}

// NewGuard creates a Guard over the issuer's verification key.
func NewGuard(issuer *Issuer) (*Guard, error) {
	if issuer == nil {
		return nil, oops.Code("SESSION_GUARD_INIT").Errorf("issuer is required")
	}
	return &Guard{issuer: issuer}, nil
}

// Authorize verifies the credential and checks that its email and role
// claims exactly match the required values. On success it returns the
// verified claims; any mismatch yields ErrForbidden.
func (g *Guard) Authorize(credential, requiredEmail, requiredRole string) (*Claims, error) {
	claims, err := g.issuer.Parse(credential)
	if err != nil {
		return nil, err
	}

	if claims.Email != requiredEmail || claims.Role != requiredRole {
		return nil, oops.Code("SESSION_FORBIDDEN").
			With("required_role", requiredRole).
			Wrap(ErrForbidden)
	}
	return claims, nil
}
