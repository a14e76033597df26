// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

// Package accounttest provides in-memory test doubles for the account
// lifecycle.
package accounttest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/proalaayahia/CimaMoviesApi/internal/account"
)

// MemoryRepository is an account.Repository backed by maps. Email and
// username lookups are case-insensitive, matching the store's indexes.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]*account.Account

	// Err, when set, is returned by every method. Useful for failure paths.
	Err error
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[ulid.ULID]*account.Account)}
}

// Create implements account.Repository.
func (r *MemoryRepository) Create(_ context.Context, acct *account.Account) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, acct.Email) {
			return account.ErrDuplicateEmail
		}
		if strings.EqualFold(existing.Username, acct.Username) {
			return account.ErrDuplicateUsername
		}
	}
	clone := *acct
	r.accounts[acct.ID] = &clone
	return nil
}

// GetByID implements account.Repository.
func (r *MemoryRepository) GetByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	clone := *acct
	return &clone, nil
}

// GetByEmail implements account.Repository.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acct := range r.accounts {
		if strings.EqualFold(acct.Email, email) {
			clone := *acct
			return &clone, nil
		}
	}
	return nil, account.ErrNotFound
}

// GetByUsername implements account.Repository.
func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*account.Account, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acct := range r.accounts {
		if strings.EqualFold(acct.Username, username) {
			clone := *acct
			return &clone, nil
		}
	}
	return nil, account.ErrNotFound
}

// EmailExists implements account.Repository.
func (r *MemoryRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	_, err := r.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

// UsernameExists implements account.Repository.
func (r *MemoryRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	_, err := r.GetByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	return false, nil
}

// ConfirmEmail implements account.Repository.
func (r *MemoryRepository) ConfirmEmail(_ context.Context, id ulid.ULID) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	acct.EmailConfirmed = true
	acct.UpdatedAt = time.Now()
	return nil
}

// UpdatePassword implements account.Repository.
func (r *MemoryRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	acct.PasswordHash = passwordHash
	acct.UpdatedAt = time.Now()
	return nil
}

// RecordLoginFailure implements account.Repository.
func (r *MemoryRepository) RecordLoginFailure(_ context.Context, id ulid.ULID, threshold int, lockout time.Duration) (int, *time.Time, error) {
	if r.Err != nil {
		return 0, nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return 0, nil, account.ErrNotFound
	}
	acct.FailedLoginCount++
	if acct.LockoutEnabled && acct.FailedLoginCount >= threshold {
		endsAt := time.Now().Add(lockout)
		acct.LockoutEndsAt = &endsAt
		// Arming the window resets the counter, same as the store.
		acct.FailedLoginCount = 0
	}
	return acct.FailedLoginCount, acct.LockoutEndsAt, nil
}

// ResetLoginFailures implements account.Repository.
func (r *MemoryRepository) ResetLoginFailures(_ context.Context, id ulid.ULID) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	acct.FailedLoginCount = 0
	acct.LockoutEndsAt = nil
	return nil
}

// Put stores an account directly, bypassing uniqueness checks.
func (r *MemoryRepository) Put(acct *account.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *acct
	r.accounts[acct.ID] = &clone
}

// MemoryRoleRepository is an account.RoleRepository backed by maps.
type MemoryRoleRepository struct {
	mu          sync.Mutex
	roles       map[string]*account.Role // lower(name) -> role
	assignments map[ulid.ULID]string     // accountID -> lower(name)

	// Err, when set, is returned by every method.
	Err error
}

// NewMemoryRoleRepository creates an empty MemoryRoleRepository.
func NewMemoryRoleRepository() *MemoryRoleRepository {
	return &MemoryRoleRepository{
		roles:       make(map[string]*account.Role),
		assignments: make(map[ulid.ULID]string),
	}
}

// Count implements account.RoleRepository.
func (r *MemoryRoleRepository) Count(context.Context) (int, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roles), nil
}

// Create implements account.RoleRepository. Duplicate names are a no-op.
func (r *MemoryRoleRepository) Create(_ context.Context, role *account.Role) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(role.Name)
	if _, ok := r.roles[key]; ok {
		return nil
	}
	clone := *role
	r.roles[key] = &clone
	return nil
}

// GetByName implements account.RoleRepository.
func (r *MemoryRoleRepository) GetByName(_ context.Context, name string) (*account.Role, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[strings.ToLower(name)]
	if !ok {
		return nil, account.ErrNotFound
	}
	clone := *role
	return &clone, nil
}

// Assign implements account.RoleRepository. Reassignment is a no-op.
func (r *MemoryRoleRepository) Assign(_ context.Context, accountID ulid.ULID, roleName string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(roleName)
	if _, ok := r.roles[key]; !ok {
		return account.ErrNotFound
	}
	if _, ok := r.assignments[accountID]; ok {
		return nil
	}
	r.assignments[accountID] = key
	return nil
}

// RoleNameFor implements account.RoleRepository.
func (r *MemoryRoleRepository) RoleNameFor(_ context.Context, accountID ulid.ULID) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.assignments[accountID]
	if !ok {
		return "", nil
	}
	return r.roles[key].Name, nil
}

// PlainHasher is an account.PasswordHasher that stores passwords with a
// recognizable prefix instead of hashing. Fast, for unit tests only.
type PlainHasher struct{}

// Hash implements account.PasswordHasher.
func (PlainHasher) Hash(password string) (string, error) {
	return "plain:" + password, nil
}

// Verify implements account.PasswordHasher.
func (PlainHasher) Verify(password, encodedHash string) (bool, error) {
	return encodedHash == "plain:"+password, nil
}

// RecordingNotifier captures notification sends.
type RecordingNotifier struct {
	mu    sync.Mutex
	sends []Notification

	// Err, when set, is returned by Send.
	Err error
}

// Notification is one captured Send call.
type Notification struct {
	ToEmail  string
	ToName   string
	BodyText string
	BodyLink string
	Subject  string
}

// Send implements account.Notifier.
func (n *RecordingNotifier) Send(_ context.Context, toEmail, toName, bodyText, bodyLink, subject string) error {
	if n.Err != nil {
		return n.Err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, Notification{
		ToEmail:  toEmail,
		ToName:   toName,
		BodyText: bodyText,
		BodyLink: bodyLink,
		Subject:  subject,
	})
	return nil
}

// Sends returns the captured notifications.
func (n *RecordingNotifier) Sends() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sends))
	copy(out, n.sends)
	return out
}

// StubSessionIssuer is an account.SessionIssuer with canned behavior.
type StubSessionIssuer struct {
	// Credential is returned from Issue. Defaults to "stub-credential".
	Credential string

	// IssueErr, when set, is returned from Issue.
	IssueErr error

	// VerifyErr is returned from Verify. A nil VerifyErr means every
	// presented credential counts as a live session.
	VerifyErr error

	mu         sync.Mutex
	lastIssued *account.SessionProfile
	remember   bool
}

// Issue implements account.SessionIssuer.
func (s *StubSessionIssuer) Issue(profile account.SessionProfile, rememberMe bool) (string, error) {
	if s.IssueErr != nil {
		return "", s.IssueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIssued = &profile
	s.remember = rememberMe
	if s.Credential == "" {
		return "stub-credential", nil
	}
	return s.Credential, nil
}

// Verify implements account.SessionIssuer.
func (s *StubSessionIssuer) Verify(string) error {
	return s.VerifyErr
}

// LastIssued returns the profile from the most recent Issue call, or nil.
func (s *StubSessionIssuer) LastIssued() (*account.SessionProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIssued, s.remember
}

// RecordingMetrics counts Record calls by "op/status".
type RecordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewRecordingMetrics creates an empty RecordingMetrics.
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{counts: make(map[string]int)}
}

// Record implements account.MetricsRecorder.
func (m *RecordingMetrics) Record(op, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[op+"/"+status]++
}

// RecordSession implements account.MetricsRecorder.
func (m *RecordingMetrics) RecordSession(rememberMe bool) {
	lifetime := "default"
	if rememberMe {
		lifetime = "remember_me"
	}
	m.Record("session", lifetime)
}

// RecordLockout implements account.MetricsRecorder.
func (m *RecordingMetrics) RecordLockout() {
	m.Record("lockout", "armed")
}

// RecordNotificationFailure implements account.MetricsRecorder.
func (m *RecordingMetrics) RecordNotificationFailure(kind string) {
	m.Record("notify_failure", kind)
}

// Count returns the recorded count for an op/status pair.
func (m *RecordingMetrics) Count(op, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[op+"/"+status]
}

// Verify interfaces are satisfied.
var (
	_ account.Repository      = (*MemoryRepository)(nil)
	_ account.RoleRepository  = (*MemoryRoleRepository)(nil)
	_ account.PasswordHasher  = PlainHasher{}
	_ account.Notifier        = (*RecordingNotifier)(nil)
	_ account.SessionIssuer   = (*StubSessionIssuer)(nil)
	_ account.MetricsRecorder = (*RecordingMetrics)(nil)
)
