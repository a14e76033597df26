// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CimaMovies Contributors

//go:build integration

package account_test

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/proalaayahia/CimaMoviesApi/internal/account"
	"github.com/proalaayahia/CimaMoviesApi/internal/account/accounttest"
	"github.com/proalaayahia/CimaMoviesApi/internal/session"
)

const testPassword = "Str0ng#Pass"

var _ = Describe("Account lifecycle", func() {
	var (
		ctx      context.Context
		notifier *accounttest.RecordingNotifier
		svc      *account.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupAccounts(ctx, env.pool)
		notifier = &accounttest.RecordingNotifier{}
		svc = newService(notifier)
	})

	Describe("Registration", func() {
		It("persists an unconfirmed account and sends a confirmation link", func() {
			email := uniqueEmail("reg")
			reg, err := svc.Register(ctx, email, "reguser", testPassword)
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.Token).NotTo(BeEmpty())

			acct, err := env.Accounts.GetByEmail(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.ID).To(Equal(reg.AccountID))
			Expect(acct.EmailConfirmed).To(BeFalse())
			Expect(acct.LockoutEnabled).To(BeTrue())
			Expect(acct.PasswordHash).To(HavePrefix("$argon2id$"))

			sends := notifier.Sends()
			Expect(sends).To(HaveLen(1))
			Expect(sends[0].ToEmail).To(Equal(email))
			Expect(sends[0].Subject).To(Equal("Registration Confirm"))
			Expect(tokenFromLink(sends[0].BodyLink)).To(Equal(reg.Token))
		})

		It("rejects a duplicate email case-insensitively", func() {
			email := uniqueEmail("dup")
			_, err := svc.Register(ctx, email, "dupuser", testPassword)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Register(ctx, strings.ToUpper(email), "otheruser", testPassword)
			Expect(err).To(MatchError(account.ErrDuplicateEmail))
		})

		It("rejects a duplicate username", func() {
			_, err := svc.Register(ctx, uniqueEmail("first"), "shared", testPassword)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Register(ctx, uniqueEmail("second"), "shared", testPassword)
			Expect(err).To(MatchError(account.ErrDuplicateUsername))
		})

		It("confirms the email exactly once", func() {
			reg, err := svc.Register(ctx, uniqueEmail("confirm"), "confirmer", testPassword)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.ConfirmRegistration(ctx, reg.AccountID, reg.Token)).To(Succeed())

			acct, err := env.Accounts.GetByID(ctx, reg.AccountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.EmailConfirmed).To(BeTrue())

			// Confirmation invalidates the token; a replay must fail.
			err = svc.ConfirmRegistration(ctx, reg.AccountID, reg.Token)
			Expect(err).To(MatchError(account.ErrInvalidToken))
		})

		It("rejects a tampered confirmation token", func() {
			reg, err := svc.Register(ctx, uniqueEmail("tamper"), "tamperer", testPassword)
			Expect(err).NotTo(HaveOccurred())

			err = svc.ConfirmRegistration(ctx, reg.AccountID, reg.Token+"x")
			Expect(err).To(MatchError(account.ErrInvalidToken))
		})
	})

	Describe("Login", func() {
		var email string

		register := func(confirm bool) {
			email = uniqueEmail("login")
			reg, err := svc.Register(ctx, email, "login"+email[:6], testPassword)
			Expect(err).NotTo(HaveOccurred())
			if confirm {
				Expect(svc.ConfirmRegistration(ctx, reg.AccountID, reg.Token)).To(Succeed())
			}
		}

		It("rejects an unconfirmed account", func() {
			register(false)
			_, err := svc.Login(ctx, email, testPassword, false)
			Expect(err).To(MatchError(account.ErrEmailNotConfirmed))
		})

		It("issues a verifiable session credential", func() {
			register(true)
			result, err := svc.Login(ctx, email, testPassword, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Role).To(Equal(account.RoleUser))
			Expect(env.Issuer.Verify(result.Credential)).To(Succeed())

			claims, err := env.Issuer.Parse(result.Credential)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Email).To(Equal(email))
			Expect(claims.AccountID()).To(Equal(result.AccountID.String()))
		})

		It("extends the lifetime for remember-me sessions", func() {
			register(true)
			result, err := svc.Login(ctx, email, testPassword, true)
			Expect(err).NotTo(HaveOccurred())

			claims, err := env.Issuer.Parse(result.Credential)
			Expect(err).NotTo(HaveOccurred())
			lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
			Expect(lifetime).To(Equal(session.RememberMeTTL))
		})

		It("rejects a second login while a session is still valid", func() {
			register(true)
			first, err := svc.Login(ctx, email, testPassword, false)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.LoginWithSession(ctx, first.Credential, email, testPassword, false)
			Expect(err).To(MatchError(account.ErrAlreadyAuthenticated))
		})

		It("counts failed attempts and resets them on success", func() {
			register(true)

			_, err := svc.Login(ctx, email, "Wr0ng#Pass", false)
			Expect(err).To(MatchError(account.ErrUnauthorized))

			acct, err := env.Accounts.GetByEmail(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.FailedLoginCount).To(Equal(1))

			_, err = svc.Login(ctx, email, testPassword, false)
			Expect(err).NotTo(HaveOccurred())

			acct, err = env.Accounts.GetByEmail(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.FailedLoginCount).To(BeZero())
			Expect(acct.LockoutEndsAt).To(BeNil())
		})

		It("locks the account out after repeated failures", func() {
			register(true)
			locking := svc.WithLockoutPolicy(account.LockoutPolicy{
				Threshold: 3,
				Duration:  time.Minute,
			})

			for range 3 {
				_, err := locking.Login(ctx, email, "Wr0ng#Pass", false)
				Expect(err).To(MatchError(account.ErrUnauthorized))
			}

			// Even the correct password is rejected while locked out.
			_, err := locking.Login(ctx, email, testPassword, false)
			Expect(err).To(MatchError(account.ErrLockedOut))

			acct, err := env.Accounts.GetByEmail(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.LockoutEndsAt).NotTo(BeNil())
			Expect(*acct.LockoutEndsAt).To(BeTemporally(">", time.Now()))
		})

		It("reports the lockout for wrong passwords during the window", func() {
			register(true)
			locking := svc.WithLockoutPolicy(account.LockoutPolicy{
				Threshold: 2,
				Duration:  time.Minute,
			})

			for range 2 {
				_, err := locking.Login(ctx, email, "Wr0ng#Pass", false)
				Expect(err).To(MatchError(account.ErrUnauthorized))
			}

			_, err := locking.Login(ctx, email, "Wr0ng#Pass", false)
			Expect(err).To(MatchError(account.ErrLockedOut))

			// Failures during the window are not recorded, so the window
			// never extends and the counter stays at zero.
			acct, err := env.Accounts.GetByEmail(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.FailedLoginCount).To(BeZero())
		})

		It("grants a fresh threshold once the window elapses", func() {
			register(true)
			locking := svc.WithLockoutPolicy(account.LockoutPolicy{
				Threshold: 2,
				Duration:  200 * time.Millisecond,
			})

			for range 2 {
				_, err := locking.Login(ctx, email, "Wr0ng#Pass", false)
				Expect(err).To(MatchError(account.ErrUnauthorized))
			}
			_, err := locking.Login(ctx, email, testPassword, false)
			Expect(err).To(MatchError(account.ErrLockedOut))

			// Once the window expires a wrong password counts from zero
			// instead of instantly re-locking the account.
			Eventually(func() error {
				_, loginErr := locking.Login(ctx, email, "Wr0ng#Pass", false)
				return loginErr
			}, "2s", "50ms").Should(MatchError(account.ErrUnauthorized))

			_, err = locking.Login(ctx, email, testPassword, false)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Password reset", func() {
		var (
			email     string
			accountID ulid.ULID
		)

		BeforeEach(func() {
			email = uniqueEmail("reset")
			reg, err := svc.Register(ctx, email, "reset"+email[:5], testPassword)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.ConfirmRegistration(ctx, reg.AccountID, reg.Token)).To(Succeed())
			accountID = reg.AccountID
		})

		resetToken := func() string {
			req, err := svc.RequestPasswordReset(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.AccountID).To(Equal(accountID))

			sends := notifier.Sends()
			last := sends[len(sends)-1]
			Expect(last.Subject).To(Equal("Password Reset"))
			return tokenFromLink(last.BodyLink)
		}

		It("replaces the password exactly once", func() {
			token := resetToken()
			newPassword := "N3w#Passw0rd"

			Expect(svc.ResetPassword(ctx, accountID, token, newPassword)).To(Succeed())

			_, err := svc.Login(ctx, email, testPassword, false)
			Expect(err).To(MatchError(account.ErrUnauthorized))

			_, err = svc.Login(ctx, email, newPassword, false)
			Expect(err).NotTo(HaveOccurred())

			// The hash change invalidates the token; a replay must fail.
			err = svc.ResetPassword(ctx, accountID, token, "An0ther#Pass")
			Expect(err).To(MatchError(account.ErrInvalidToken))
		})

		It("clears an active lockout", func() {
			locking := svc.WithLockoutPolicy(account.LockoutPolicy{
				Threshold: 2,
				Duration:  time.Hour,
			})
			for range 2 {
				_, err := locking.Login(ctx, email, "Wr0ng#Pass", false)
				Expect(err).To(MatchError(account.ErrUnauthorized))
			}
			_, err := locking.Login(ctx, email, testPassword, false)
			Expect(err).To(MatchError(account.ErrLockedOut))

			newPassword := "Unl0ck#Pass"
			Expect(locking.ResetPassword(ctx, accountID, resetToken(), newPassword)).To(Succeed())

			_, err = locking.Login(ctx, email, newPassword, false)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a weak replacement password", func() {
			err := svc.ResetPassword(ctx, accountID, resetToken(), "weak")
			Expect(err).To(MatchError(account.ErrWeakPassword))
		})
	})

	Describe("Authorization", func() {
		It("admits matching claims and refuses others", func() {
			email := uniqueEmail("guard")
			reg, err := svc.Register(ctx, email, "guarded", testPassword)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.ConfirmRegistration(ctx, reg.AccountID, reg.Token)).To(Succeed())

			result, err := svc.Login(ctx, email, testPassword, false)
			Expect(err).NotTo(HaveOccurred())

			claims, err := env.Guard.Authorize(result.Credential, email, account.RoleUser)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Role).To(Equal(account.RoleUser))

			_, err = env.Guard.Authorize(result.Credential, email, account.RoleAdmin)
			Expect(err).To(MatchError(session.ErrForbidden))
		})
	})

	Describe("Bootstrap", func() {
		It("creates a login-capable administrator idempotently", func() {
			b, err := account.NewBootstrapper(env.Accounts, env.Roles, env.Hasher, "B00t#strap")
			Expect(err).NotTo(HaveOccurred())

			Expect(b.Run(ctx)).To(Succeed())
			Expect(b.Run(ctx)).To(Succeed())

			result, err := svc.Login(ctx, account.DefaultAdminEmail, "B00t#strap", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Role).To(Equal(account.RoleAdmin))

			claims, err := env.Guard.Authorize(result.Credential, account.DefaultAdminEmail, account.RoleAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Username).To(Equal(account.DefaultAdminUsername))
		})
	})
})
