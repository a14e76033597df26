// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is a structured error carrying the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	_, ok := oops.AsOops(err)
	require.True(t, ok, "want structured error with code %q, got %T: %v", code, err, err)
	assert.Equal(t, code, Code(err), "error code mismatch")
}

// AssertErrorContext asserts that err is a structured error carrying the given
// context key/value pair.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "want structured error with context, got %T: %v", err, err)
	got, present := oopsErr.Context()[key]
	require.True(t, present, "context key %q missing from error", key)
	assert.Equal(t, value, got, "context value mismatch for %q", key)
}
