// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package account

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	acct, err := NewAccount("carol@example.com", "carol", "some-hash")
	require.NoError(t, err)

	assert.NotEqual(t, "00000000000000000000000000", acct.ID.String())
	assert.Equal(t, "carol@example.com", acct.Email)
	assert.Equal(t, "carol", acct.Username)
	assert.False(t, acct.EmailConfirmed)
	assert.True(t, acct.LockoutEnabled)
	assert.Nil(t, acct.LockoutEndsAt)
	assert.Zero(t, acct.FailedLoginCount)
	assert.False(t, acct.CreatedAt.IsZero())
}

func TestNewAccount_Validation(t *testing.T) {
	_, err := NewAccount("bad", "carol", "hash")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewAccount("carol@example.com", "c", "hash")
	assert.Error(t, err)

	_, err = NewAccount("carol@example.com", "carol", "")
	assert.Error(t, err)
}

func TestAccount_IsLockedOut(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Minute)

	tests := []struct {
		name string
		acct Account
		want bool
	}{
		{"no lockout", Account{LockoutEnabled: true}, false},
		{"expired window", Account{LockoutEnabled: true, LockoutEndsAt: &past}, false},
		{"active window", Account{LockoutEnabled: true, LockoutEndsAt: &future}, true},
		{"lockout disabled", Account{LockoutEnabled: false, LockoutEndsAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.acct.IsLockedOut())
		})
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"carol@example.com",
		"carol.smith+tag@sub.example.co",
		"under_score@host-name.com",
	}
	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), "email %q", email)
	}

	invalid := []string{
		"",
		"no-at-sign",
		"@example.com",
		"carol@",
		"carol@nodot",
		"two@@example.com",
		"carol@example.com" + strings.Repeat("m", 256),
	}
	for _, email := range invalid {
		assert.ErrorIs(t, ValidateEmail(email), ErrInvalidEmail, "email %q", email)
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"abc", "Carol", "carol_99", strings.Repeat("a", MaxUsernameLength)}
	for _, name := range valid {
		assert.NoError(t, ValidateUsername(name), "username %q", name)
	}

	invalid := []string{
		"",
		"ab",
		"9lives",
		"_carol",
		"carol smith",
		"carol-smith",
		strings.Repeat("a", MaxUsernameLength+1),
	}
	for _, name := range invalid {
		assert.Error(t, ValidateUsername(name), "username %q", name)
	}
}

func TestValidatePassword(t *testing.T) {
	valid := []string{"Str0ng#pw", "aB3$ef", "P@ssw0rd"}
	for _, pw := range valid {
		assert.NoError(t, ValidatePassword(pw), "password %q", pw)
	}

	invalid := []string{
		"",
		"S0#a",      // too short
		"Pw1!",      // all classes, still under the length floor
		"strong#1a", // no upper
		"STRONG#1A", // no lower
		"Strong#pw", // no digit
		"Strongpw1", // no symbol
	}
	for _, pw := range invalid {
		assert.ErrorIs(t, ValidatePassword(pw), ErrWeakPassword, "password %q", pw)
	}
}
