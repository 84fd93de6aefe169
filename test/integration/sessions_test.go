// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package integration_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/pkg/errutil"
)

var _ = Describe("Sessions", func() {
	var (
		clock      *testClock
		manager    *auth.SessionManager
		principals *auth.PrincipalResolver
		user       *auth.User
	)

	BeforeEach(func() {
		resetDatabase()
		clock = &testClock{now: time.Now().UTC().Truncate(time.Second)}
		manager, principals = newSessions(clock)
		user = createUser("alice@example.com", "correct horse")
	})

	Describe("login", func() {
		It("stores only the hash of the refresh token", func() {
			pair, err := manager.Login(env.ctx, "Alice@Example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())
			Expect(pair.User.ID).To(Equal(user.ID))

			Expect(countRows("refresh_tokens", "token_hash = $1", auth.HashToken(pair.Refresh.Token))).To(Equal(1))
			Expect(countRows("refresh_tokens", "token_hash = $1", pair.Refresh.Token)).To(Equal(0))
		})

		It("gives the same error for a wrong password and an unknown email", func() {
			_, wrongPassword := manager.Login(env.ctx, "alice@example.com", "wrong")
			_, unknownEmail := manager.Login(env.ctx, "nobody@example.com", "correct horse")

			Expect(auth.IsCredentialsInvalid(wrongPassword)).To(BeTrue())
			Expect(auth.IsCredentialsInvalid(unknownEmail)).To(BeTrue())
			Expect(wrongPassword.Error()).To(Equal(unknownEmail.Error()))
			Expect(countRows("refresh_tokens", "true")).To(Equal(0))
		})

		It("rejects a disabled user", func() {
			Expect(env.Users.SetEnabled(env.ctx, user.ID, false)).To(Succeed())

			_, err := manager.Login(env.ctx, "alice@example.com", "correct horse")
			Expect(auth.IsCredentialsInvalid(err)).To(BeTrue())
		})

		It("keeps concurrent sessions apart", func() {
			first, err := manager.Login(env.ctx, "alice@example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())
			second, err := manager.Login(env.ctx, "alice@example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Refresh.Token).NotTo(Equal(second.Refresh.Token))
			Expect(countRows("refresh_tokens", "user_id = $1", user.ID.String())).To(Equal(2))
		})
	})

	Describe("principal resolution", func() {
		var pair *auth.TokenPair

		BeforeEach(func() {
			var err error
			pair, err = manager.Login(env.ctx, "alice@example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())
		})

		It("authenticates a live access token", func() {
			res := principals.Resolve(env.ctx, auth.Presented{AccessToken: pair.Access.Token})
			Expect(res.Outcome).To(Equal(auth.OutcomeAuthenticated))
			Expect(res.Principal.Email).To(Equal("alice@example.com"))
			Expect(res.Access).To(BeNil())
		})

		It("renews an expired access token through the refresh token", func() {
			clock.Advance(16 * time.Minute)

			res := principals.Resolve(env.ctx, auth.Presented{
				AccessToken:  pair.Access.Token,
				RefreshToken: pair.Refresh.Token,
			})
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(auth.OutcomeRenewed))
			Expect(res.Access).NotTo(BeNil())
			Expect(res.Access.ExpiresAt).To(BeTemporally("==", clock.Now().Add(15*time.Minute)))

			again := principals.Resolve(env.ctx, auth.Presented{AccessToken: res.Access.Token})
			Expect(again.Outcome).To(Equal(auth.OutcomeAuthenticated))
		})

		It("rejects a refresh token presented without an access token", func() {
			res := principals.Resolve(env.ctx, auth.Presented{RefreshToken: pair.Refresh.Token})
			Expect(res.Outcome).To(Equal(auth.OutcomeRejected))
			Expect(errutil.Code(res.Err)).To(Equal(auth.CodeTokenInvalid))
		})

		It("renews from the refresh token alone when enabled", func() {
			_, lenient := newSessions(clock, auth.WithMissingAccessRenewal(true))
			res := lenient.Resolve(env.ctx, auth.Presented{RefreshToken: pair.Refresh.Token})
			Expect(res.Outcome).To(Equal(auth.OutcomeRenewed))
		})

		It("rejects renewal once the refresh token has expired", func() {
			clock.Advance(15 * 24 * time.Hour)

			res := principals.Resolve(env.ctx, auth.Presented{
				AccessToken:  pair.Access.Token,
				RefreshToken: pair.Refresh.Token,
			})
			Expect(res.Outcome).To(Equal(auth.OutcomeRejected))
			Expect(auth.ReasonOf(res.Err)).To(Equal(auth.ReasonTokenExpired))
		})

		It("rejects renewal for a user disabled after login", func() {
			Expect(env.Users.SetEnabled(env.ctx, user.ID, false)).To(Succeed())
			clock.Advance(16 * time.Minute)

			res := principals.Resolve(env.ctx, auth.Presented{
				AccessToken:  pair.Access.Token,
				RefreshToken: pair.Refresh.Token,
			})
			Expect(res.Outcome).To(Equal(auth.OutcomeRejected))
			Expect(auth.ReasonOf(res.Err)).To(Equal(auth.ReasonUserUnavailable))
		})
	})

	Describe("logout and revocation", func() {
		It("stops renewal after logout", func() {
			pair, err := manager.Login(env.ctx, "alice@example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())

			Expect(manager.Logout(env.ctx, pair.Refresh.Token)).To(Succeed())
			Expect(countRows("refresh_tokens", "user_id = $1", user.ID.String())).To(Equal(0))

			clock.Advance(16 * time.Minute)
			res := principals.Resolve(env.ctx, auth.Presented{
				AccessToken:  pair.Access.Token,
				RefreshToken: pair.Refresh.Token,
			})
			Expect(res.Outcome).To(Equal(auth.OutcomeRejected))
			Expect(auth.ReasonOf(res.Err)).To(Equal(auth.ReasonSessionNotFound))
		})

		It("reports an unknown session on a second revoke", func() {
			pair, err := manager.Login(env.ctx, "alice@example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())

			Expect(manager.Revoke(env.ctx, pair.Refresh.Token)).To(Succeed())
			err = manager.Revoke(env.ctx, pair.Refresh.Token)
			Expect(auth.ReasonOf(err)).To(Equal(auth.ReasonSessionNotFound))
		})

		It("revokes every session of a user", func() {
			for range 3 {
				_, err := manager.Login(env.ctx, "alice@example.com", "correct horse")
				Expect(err).NotTo(HaveOccurred())
			}

			n, err := manager.RevokeAll(env.ctx, user)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(3)))
		})

		It("purges only expired refresh records", func() {
			stale, err := auth.NewRefreshRecord(user.ID, "stale-token", clock.Now().Add(-48*time.Hour), clock.Now().Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Refresh.Create(env.ctx, stale)).To(Succeed())
			_, err = manager.Login(env.ctx, "alice@example.com", "correct horse")
			Expect(err).NotTo(HaveOccurred())

			n, err := env.Refresh.DeleteExpired(env.ctx, clock.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
			Expect(countRows("refresh_tokens", "true")).To(Equal(1))
		})
	})
})
