// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenService issues and validates single-purpose account tokens.
type TokenService interface {
	Issue(purpose TokenPurpose, acct *Account) (string, error)
	Validate(purpose TokenPurpose, acct *Account, token string) error
}

// SessionProfile is the identity handed to the session issuer on login.
type SessionProfile struct {
	Username  string
	Email     string
	AccountID string
	Role      string
}

// SessionIssuer mints and checks signed session credentials.
type SessionIssuer interface {
	// Issue returns a signed credential embedding the profile.
	Issue(profile SessionProfile, rememberMe bool) (string, error)

	// Verify returns nil when the credential is still valid.
	Verify(credential string) error
}

// MetricsRecorder records lifecycle operation outcomes and the notable
// events inside them: issued sessions, armed lockouts, and notification
// delivery failures.
type MetricsRecorder interface {
	Record(op, status string)
	RecordSession(rememberMe bool)
	RecordLockout()
	RecordNotificationFailure(kind string)
}

type noopMetrics struct{}

func (noopMetrics) Record(string, string)            {}
func (noopMetrics) RecordSession(bool)               {}
func (noopMetrics) RecordLockout()                   {}
func (noopMetrics) RecordNotificationFailure(string) {}

// Registration is the result of a successful Register call: the new account
// id and the encoded confirmation token handed to the notifier.
type Registration struct {
	AccountID ulid.ULID
	Token     string
}

// LoginResult carries the signed session credential and the claims it embeds.
type LoginResult struct {
	Credential string
	Username   string
	Email      string
	AccountID  ulid.ULID
	Role       string
}

// ResetRequest acknowledges a password reset request. The reset token itself
// travels only through the notifier, never back over the requesting channel.
type ResetRequest struct {
	AccountID ulid.ULID
}

// Service orchestrates the account lifecycle: registration, confirmation,
// login with lockout, and password reset.
type Service struct {
	accounts Repository
	roles    RoleRepository
	hasher   PasswordHasher
	tokens   TokenService
	sessions SessionIssuer
	notifier Notifier
	lockout  LockoutPolicy
	metrics  MetricsRecorder
	logger   *slog.Logger

	confirmLinkBase string
	resetLinkBase   string
}

// NewService creates a lifecycle Service. All dependencies are required.
func NewService(
	accounts Repository,
	roles RoleRepository,
	hasher PasswordHasher,
	tokens TokenService,
	sessions SessionIssuer,
	notifier Notifier,
) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INIT").Errorf("accounts repository is required")
	}
	if roles == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INIT").Errorf("roles repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INIT").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INIT").Errorf("token service is required")
	}
	if sessions == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INIT").Errorf("session issuer is required")
	}
	if notifier == nil {
		return nil, oops.Code("ACCOUNT_SERVICE_INIT").Errorf("notifier is required")
	}

	return &Service{
		accounts: accounts,
		roles:    roles,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		notifier: notifier,
		lockout:  DefaultLockoutPolicy(),
		metrics:  noopMetrics{},
		logger:   slog.Default(),
	}, nil
}

// WithLogger sets the service logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithLockoutPolicy overrides the lockout threshold and duration.
func (s *Service) WithLockoutPolicy(p LockoutPolicy) *Service {
	s.lockout = p.normalized()
	return s
}

// WithMetrics sets the metrics recorder.
func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	if m != nil {
		s.metrics = m
	}
	return s
}

// WithLinkBases sets the base URLs embedded in confirmation and reset
// notifications. The account id and token are appended as query parameters.
func (s *Service) WithLinkBases(confirm, reset string) *Service {
	s.confirmLinkBase = confirm
	s.resetLinkBase = reset
	return s
}

// Register validates and creates an unconfirmed account, then issues a
// confirmation token and hands it to the notifier. Nothing is persisted when
// any validation fails. A notifier failure is reported as ErrNotifyFailed;
// the account row already exists at that point and confirmation can be
// re-requested out of band.
func (s *Service) Register(ctx context.Context, email, username, password string) (*Registration, error) {
	if err := ValidateEmail(email); err != nil {
		s.metrics.Record("register", "invalid")
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		s.metrics.Record("register", "invalid")
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		s.metrics.Record("register", "invalid")
		return nil, err
	}

	// Pre-checks give friendly errors; the store's unique indexes close the
	// race between check and insert.
	if taken, err := s.accounts.EmailExists(ctx, email); err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "EmailExists").Wrap(err)
	} else if taken {
		s.metrics.Record("register", "duplicate")
		return nil, oops.Code("ACCOUNT_DUPLICATE_EMAIL").Wrap(ErrDuplicateEmail)
	}
	if taken, err := s.accounts.UsernameExists(ctx, username); err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "UsernameExists").Wrap(err)
	} else if taken {
		s.metrics.Record("register", "duplicate")
		return nil, oops.Code("ACCOUNT_DUPLICATE_USERNAME").Wrap(ErrDuplicateUsername)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "Hash").Wrap(err)
	}

	acct, err := NewAccount(email, username, hash)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		// A concurrent registration may have won the race past the pre-checks.
		if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrDuplicateUsername) {
			s.metrics.Record("register", "duplicate")
			return nil, err
		}
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "Create").Wrap(err)
	}

	token, err := s.tokens.Issue(PurposeConfirmation, acct)
	if err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").With("operation", "IssueToken").Wrap(err)
	}

	link := buildLink(s.confirmLinkBase, acct.ID, token)
	if err := s.notifier.Send(ctx, acct.Email, acct.Username,
		"Please confirm your registration", link, "Registration Confirm"); err != nil {
		s.logger.Error("confirmation notification failed", "account_id", acct.ID.String(), "error", err)
		s.metrics.RecordNotificationFailure("confirmation")
		s.metrics.Record("register", "notify_failed")
		return nil, oops.Code("ACCOUNT_NOTIFY_FAILED").
			With("account_id", acct.ID.String()).
			Wrap(ErrNotifyFailed)
	}

	s.metrics.Record("register", "success")
	s.logger.Info("account registered", "account_id", acct.ID.String(), "username", acct.Username)

	return &Registration{AccountID: acct.ID, Token: token}, nil
}

// ConfirmRegistration validates a confirmation token and marks the account's
// email as confirmed. Confirming an already-confirmed account fails with
// ErrInvalidToken because the token was consumed by the first confirmation.
func (s *Service) ConfirmRegistration(ctx context.Context, accountID ulid.ULID, token string) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Burn comparable work so a missing account is not cheaper to
			// probe than a bad token.
			_ = s.tokens.Validate(PurposeConfirmation, &Account{ID: accountID}, token)
			s.metrics.Record("confirm", "not_found")
			return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", accountID.String()).Wrap(ErrNotFound)
		}
		return oops.Code("ACCOUNT_CONFIRM_FAILED").With("operation", "GetByID").Wrap(err)
	}

	if err := s.tokens.Validate(PurposeConfirmation, acct, token); err != nil {
		s.metrics.Record("confirm", "invalid_token")
		return err
	}

	if err := s.accounts.ConfirmEmail(ctx, acct.ID); err != nil {
		return oops.Code("ACCOUNT_CONFIRM_FAILED").With("operation", "ConfirmEmail").Wrap(err)
	}

	s.metrics.Record("confirm", "success")
	s.logger.Info("registration confirmed", "account_id", acct.ID.String())
	return nil
}

// Login authenticates by email and password and mints a session credential.
func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	return s.LoginWithSession(ctx, "", email, password, rememberMe)
}

// LoginWithSession is Login with double-login protection: when the caller
// already presents a credential that still verifies, the attempt is rejected.
func (s *Service) LoginWithSession(ctx context.Context, current, email, password string, rememberMe bool) (*LoginResult, error) {
	if current != "" && s.sessions.Verify(current) == nil {
		s.metrics.Record("login", "already_authenticated")
		return nil, oops.Code("AUTH_ALREADY_AUTHENTICATED").Wrap(ErrAlreadyAuthenticated)
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Verify against a fake hash so timing stays uniform.
			_, _ = s.hasher.Verify(password, DummyHash)
			s.metrics.Record("login", "not_found")
			return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(ErrNotFound)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	if !acct.EmailConfirmed {
		s.metrics.Record("login", "unconfirmed")
		return nil, oops.Code("AUTH_EMAIL_NOT_CONFIRMED").
			With("account_id", acct.ID.String()).
			Wrap(ErrEmailNotConfirmed)
	}

	// An armed lockout window rejects every attempt, correct password or not,
	// until it elapses. Failures during the window are not recorded, so they
	// never extend it.
	if acct.IsLockedOut() {
		s.metrics.Record("login", "locked_out")
		return nil, oops.Code("AUTH_LOCKED_OUT").
			With("lockout_ends_at", acct.LockoutEndsAt).
			Wrap(ErrLockedOut)
	}

	valid, err := s.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "Verify").Wrap(err)
	}

	if !valid {
		_, endsAt, recErr := s.accounts.RecordLoginFailure(ctx, acct.ID, s.lockout.Threshold, s.lockout.Duration)
		if recErr != nil {
			s.logger.Error("recording login failure failed", "account_id", acct.ID.String(), "error", recErr)
		} else if IsLockedOut(endsAt) {
			s.metrics.RecordLockout()
			s.logger.Warn("account locked out", "account_id", acct.ID.String(), "lockout_ends_at", endsAt)
		}
		s.metrics.Record("login", "unauthorized")
		return nil, oops.Code("AUTH_UNAUTHORIZED").Wrap(ErrUnauthorized)
	}

	if err := s.accounts.ResetLoginFailures(ctx, acct.ID); err != nil {
		// Best effort; the login still succeeds.
		s.logger.Warn("resetting login failures failed", "account_id", acct.ID.String(), "error", err)
	}

	role, err := s.effectiveRole(ctx, acct.ID)
	if err != nil {
		return nil, err
	}

	credential, err := s.sessions.Issue(SessionProfile{
		Username:  acct.Username,
		Email:     acct.Email,
		AccountID: acct.ID.String(),
		Role:      role,
	}, rememberMe)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "IssueSession").Wrap(err)
	}

	s.metrics.RecordSession(rememberMe)
	s.metrics.Record("login", "success")
	s.logger.Info("login succeeded", "account_id", acct.ID.String(), "role", role)

	return &LoginResult{
		Credential: credential,
		Username:   acct.Username,
		Email:      acct.Email,
		AccountID:  acct.ID,
		Role:       role,
	}, nil
}

// effectiveRole returns the account's role, assigning the default "User"
// role on first login. Accounts that already hold a role (notably "Admin")
// keep it.
func (s *Service) effectiveRole(ctx context.Context, accountID ulid.ULID) (string, error) {
	role, err := s.roles.RoleNameFor(ctx, accountID)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").With("operation", "RoleNameFor").Wrap(err)
	}
	if role != "" {
		return role, nil
	}

	if err := s.roles.Assign(ctx, accountID, RoleUser); err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").With("operation", "AssignRole").Wrap(err)
	}
	return RoleUser, nil
}

// RequestPasswordReset issues a reset token and hands it to the notifier.
// The caller receives only the account id as acknowledgment; the token
// travels exclusively through the notifier.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (*ResetRequest, error) {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.Record("reset_request", "not_found")
			return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(ErrNotFound)
		}
		return nil, oops.Code("ACCOUNT_RESET_REQUEST_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	token, err := s.tokens.Issue(PurposeReset, acct)
	if err != nil {
		return nil, oops.Code("ACCOUNT_RESET_REQUEST_FAILED").With("operation", "IssueToken").Wrap(err)
	}

	link := buildLink(s.resetLinkBase, acct.ID, token)
	if err := s.notifier.Send(ctx, acct.Email, acct.Username,
		"Please confirm your password reset", link, "Password Reset"); err != nil {
		s.logger.Error("reset notification failed", "account_id", acct.ID.String(), "error", err)
		s.metrics.RecordNotificationFailure("reset")
		s.metrics.Record("reset_request", "notify_failed")
		return nil, oops.Code("ACCOUNT_NOTIFY_FAILED").
			With("account_id", acct.ID.String()).
			Wrap(ErrNotifyFailed)
	}

	s.metrics.Record("reset_request", "success")
	return &ResetRequest{AccountID: acct.ID}, nil
}

// ResetPassword validates a reset token and replaces the password hash.
// A successful reset also clears any lockout so the owner regains access,
// and implicitly consumes the token (it was keyed to the old hash).
func (s *Service) ResetPassword(ctx context.Context, accountID ulid.ULID, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		s.metrics.Record("reset", "invalid")
		return err
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = s.tokens.Validate(PurposeReset, &Account{ID: accountID}, token)
			s.metrics.Record("reset", "not_found")
			return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", accountID.String()).Wrap(ErrNotFound)
		}
		return oops.Code("ACCOUNT_RESET_FAILED").With("operation", "GetByID").Wrap(err)
	}

	if err := s.tokens.Validate(PurposeReset, acct, token); err != nil {
		s.metrics.Record("reset", "invalid_token")
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("ACCOUNT_RESET_FAILED").With("operation", "Hash").Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return oops.Code("ACCOUNT_RESET_FAILED").With("operation", "UpdatePassword").Wrap(err)
	}

	if err := s.accounts.ResetLoginFailures(ctx, acct.ID); err != nil {
		s.logger.Warn("clearing lockout after reset failed", "account_id", acct.ID.String(), "error", err)
	}

	s.metrics.Record("reset", "success")
	s.logger.Info("password reset", "account_id", acct.ID.String())
	return nil
}

// EmailExists reports whether the email is registered.
func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	exists, err := s.accounts.EmailExists(ctx, email)
	if err != nil {
		return false, oops.Code("ACCOUNT_LOOKUP_FAILED").With("operation", "EmailExists").Wrap(err)
	}
	return exists, nil
}

// UsernameExists reports whether the username is registered.
func (s *Service) UsernameExists(ctx context.Context, username string) (bool, error) {
	exists, err := s.accounts.UsernameExists(ctx, username)
	if err != nil {
		return false, oops.Code("ACCOUNT_LOOKUP_FAILED").With("operation", "UsernameExists").Wrap(err)
	}
	return exists, nil
}

// RoleNameByEmail returns the role name for the account registered under the
// email, or "" when the account or assignment does not exist.
func (s *Service) RoleNameByEmail(ctx context.Context, email string) (string, error) {
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("ACCOUNT_LOOKUP_FAILED").With("operation", "GetByEmail").Wrap(err)
	}

	role, err := s.roles.RoleNameFor(ctx, acct.ID)
	if err != nil {
		return "", oops.Code("ACCOUNT_LOOKUP_FAILED").With("operation", "RoleNameFor").Wrap(err)
	}
	return role, nil
}

// buildLink joins a base URL with the id/token query parameters the way the
// web client expects them.
func buildLink(base string, id ulid.ULID, token string) string {
	if base == "" {
		return ""
	}
	return base + "?ID=" + id.String() + "&Token=" + token
}
