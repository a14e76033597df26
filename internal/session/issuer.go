// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package session

import (
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/proalaayahia/CimaMoviesApi/internal/account"
)

// Session lifetimes.
const (
	// DefaultTTL is the session lifetime without "remember me".
	DefaultTTL = 30 * time.Minute

	// RememberMeTTL is the session lifetime with "remember me".
	RememberMeTTL = 10 * 24 * time.Hour
)

// Issuer signs and verifies session credentials with HMAC-SHA256.
// It satisfies account.SessionIssuer.
type Issuer struct {
	signingKey  []byte
	issuer      string
	ttl         time.Duration
	rememberTTL time.Duration
	logger      *slog.Logger

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewIssuer creates an Issuer with the given signing key and issuer name.
func NewIssuer(signingKey []byte, issuer string) (*Issuer, error) {
	if len(signingKey) == 0 {
		return nil, oops.Code("SESSION_EMPTY_KEY").Errorf("signing key cannot be empty")
	}
	return &Issuer{
		signingKey:  signingKey,
		issuer:      issuer,
		ttl:         DefaultTTL,
		rememberTTL: RememberMeTTL,
		logger:      slog.Default(),
		now:         time.Now,
	}, nil
}

// WithLogger sets the issuer logger.
func (i *Issuer) WithLogger(logger *slog.Logger) *Issuer {
	if logger != nil {
		i.logger = logger
	}
	return i
}

// WithTTLs overrides the default and remember-me lifetimes.
func (i *Issuer) WithTTLs(ttl, rememberTTL time.Duration) *Issuer {
	if ttl > 0 {
		i.ttl = ttl
	}
	if rememberTTL > 0 {
		i.rememberTTL = rememberTTL
	}
	return i
}

// Issue signs a credential embedding the profile, expiring after the
// default lifetime, or the remember-me lifetime when requested.
func (i *Issuer) Issue(profile account.SessionProfile, rememberMe bool) (string, error) {
	ttl := i.ttl
	if rememberMe {
		ttl = i.rememberTTL
	}

	now := i.now()
	claims := &Claims{
		Username: profile.Username,
		Email:    profile.Email,
		Role:     profile.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   profile.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Parse verifies a credential and returns its claims. Any signature,
// structure, or expiry failure yields ErrInvalidSession.
func (i *Issuer) Parse(credential string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.signingKey, nil
	}, opts...)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID").Wrap(ErrInvalidSession)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, oops.Code("SESSION_INVALID").Wrap(ErrInvalidSession)
	}
	return claims, nil
}

// Verify returns nil when the credential is still valid.
func (i *Issuer) Verify(credential string) error {
	_, err := i.Parse(credential)
	return err
}

// Logout verifies the credential and instructs the caller to discard it.
// Sessions are stateless: a still-valid credential cannot be revoked
// server-side, so logout is advisory. True revocation would need a denylist
// keyed by token id with a TTL matching the session expiry.
func (i *Issuer) Logout(credential string) error {
	claims, err := i.Parse(credential)
	if err != nil {
		return err
	}
	i.logger.Info("session logged out", "account_id", claims.AccountID())
	return nil
}

var _ account.SessionIssuer = (*Issuer)(nil)
