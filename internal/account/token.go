// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package account

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
)

// TokenPurpose scopes a token to a single use. A token issued for one
// purpose never validates for another.
type TokenPurpose string

// Token purposes.
const (
	PurposeConfirmation TokenPurpose = "confirm"
	PurposeReset        TokenPurpose = "reset"
)

// DefaultResetTokenTTL bounds the lifetime of password reset tokens.
// Confirmation tokens carry no expiry; they stay valid until consumed.
const DefaultResetTokenTTL = time.Hour

const tokenVersion = "v1"

// TokenProvider issues and validates opaque, URL-safe tokens bound to an
// account and purpose.
//
// Tokens are stateless: the MAC key is derived from the provider secret plus
// the account's current state stamp (the password hash for reset tokens, the
// confirmation flag for confirmation tokens). Consuming the token changes the
// stamp, so a replay no longer verifies. The flip side is that two concurrent
// confirmations of the same token both succeed; confirmation is idempotent,
// so that is intended behavior.
type TokenProvider struct {
	secret   []byte
	resetTTL time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewTokenProvider creates a TokenProvider with the given signing secret.
func NewTokenProvider(secret []byte) (*TokenProvider, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_EMPTY_SECRET").Errorf("token secret cannot be empty")
	}
	return &TokenProvider{
		secret:   secret,
		resetTTL: DefaultResetTokenTTL,
		now:      time.Now,
	}, nil
}

// WithResetTTL overrides the reset token lifetime.
func (p *TokenProvider) WithResetTTL(ttl time.Duration) *TokenProvider {
	if ttl > 0 {
		p.resetTTL = ttl
	}
	return p
}

// Issue generates a token for the account scoped to the purpose.
func (p *TokenProvider) Issue(purpose TokenPurpose, acct *Account) (string, error) {
	if acct == nil {
		return "", oops.Code("TOKEN_NIL_ACCOUNT").Errorf("account cannot be nil")
	}

	var expires int64
	if purpose == PurposeReset {
		expires = p.now().Add(p.resetTTL).Unix()
	}

	payload := fmt.Sprintf("%s|%s|%s|%d|%d",
		tokenVersion, purpose, acct.ID.String(), p.now().Unix(), expires)
	mac := p.mac(purpose, acct, payload)

	return base64.RawURLEncoding.EncodeToString([]byte(payload)) +
		"." + base64.RawURLEncoding.EncodeToString(mac), nil
}

// Validate checks a token against the account and purpose. Any decode
// failure, purpose or account mismatch, expired lifetime, or MAC mismatch
// yields ErrInvalidToken; the causes are deliberately indistinguishable.
func (p *TokenProvider) Validate(purpose TokenPurpose, acct *Account, token string) error {
	if acct == nil || token == "" {
		return p.invalid("empty token or account")
	}

	encPayload, encMAC, found := strings.Cut(token, ".")
	if !found {
		return p.invalid("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(encPayload)
	if err != nil {
		return p.invalid("payload decode failed")
	}
	gotMAC, err := base64.RawURLEncoding.DecodeString(encMAC)
	if err != nil {
		return p.invalid("mac decode failed")
	}

	fields := strings.Split(string(payload), "|")
	if len(fields) != 5 || fields[0] != tokenVersion {
		return p.invalid("unexpected payload shape")
	}
	if TokenPurpose(fields[1]) != purpose || fields[2] != acct.ID.String() {
		return p.invalid("purpose or account mismatch")
	}

	expires, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return p.invalid("bad expiry field")
	}
	if expires != 0 && p.now().Unix() > expires {
		return p.invalid("token expired")
	}

	wantMAC := p.mac(purpose, acct, string(payload))
	if !hmac.Equal(gotMAC, wantMAC) {
		return p.invalid("mac mismatch")
	}
	return nil
}

// mac computes the payload MAC under a key derived from the secret, account,
// purpose, and the purpose's state stamp.
func (p *TokenProvider) mac(purpose TokenPurpose, acct *Account, payload string) []byte {
	kdf := hmac.New(sha256.New, p.secret)
	kdf.Write([]byte(acct.ID.String()))
	kdf.Write([]byte{0})
	kdf.Write([]byte(purpose))
	kdf.Write([]byte{0})
	kdf.Write([]byte(p.stamp(purpose, acct)))
	key := kdf.Sum(nil)

	m := hmac.New(sha256.New, key)
	m.Write([]byte(payload))
	return m.Sum(nil)
}

// stamp returns the account state the token is bound to. When the state
// changes the token is implicitly consumed.
func (p *TokenProvider) stamp(purpose TokenPurpose, acct *Account) string {
	if purpose == PurposeReset {
		return acct.PasswordHash
	}
	return strconv.FormatBool(acct.EmailConfirmed)
}

func (p *TokenProvider) invalid(reason string) error {
	return oops.Code("TOKEN_INVALID").
		With("reason", reason).
		Wrap(ErrInvalidToken)
}
