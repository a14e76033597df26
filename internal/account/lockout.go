// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package account

import "time"

// Lockout defaults. Both are configurable on the Service.
const (
	// DefaultLockoutThreshold is the number of consecutive failed logins
	// that triggers a lockout.
	DefaultLockoutThreshold = 5

	// DefaultLockoutDuration is how long an account stays locked out.
	DefaultLockoutDuration = 5 * time.Minute
)

// LockoutPolicy describes when and for how long accounts lock out.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy returns the default policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: DefaultLockoutThreshold,
		Duration:  DefaultLockoutDuration,
	}
}

// normalized fills zero values with defaults.
func (p LockoutPolicy) normalized() LockoutPolicy {
	if p.Threshold <= 0 {
		p.Threshold = DefaultLockoutThreshold
	}
	if p.Duration <= 0 {
		p.Duration = DefaultLockoutDuration
	}
	return p
}

// IsLockedOut returns true if the lockout end is in the future.
func IsLockedOut(lockoutEndsAt *time.Time) bool {
	return lockoutEndsAt != nil && lockoutEndsAt.After(time.Now())
}
