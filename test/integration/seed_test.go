// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package integration_test

import (
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/seed"
)

var _ = Describe("Seeding", func() {
	var (
		catalog *access.Catalog
		opts    seed.Options
	)

	BeforeEach(func() {
		resetDatabase()
		var err error
		catalog, err = access.DefaultCatalog()
		Expect(err).NotTo(HaveOccurred())
		opts = seed.Options{
			GrantRootRole:    true,
			SeedRootUser:     true,
			RootUserEmail:    "Root@Example.com",
			RootUserPassword: "change-me-now",
		}
	})

	It("creates the catalog, root role and root user", func() {
		report, err := env.Seeder.Run(env.ctx, catalog, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Permissions.Added).To(Equal(len(catalog.Keys())))
		Expect(report.RootUserCreated).To(BeTrue())
		Expect(report.RootUser.Email).To(Equal("root@example.com"))

		perms, err := env.Resolver.EffectivePermissions(env.ctx, report.RootUser.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(access.Keys(perms)).To(ConsistOf(catalog.Keys()))
	})

	It("is idempotent", func() {
		_, err := env.Seeder.Run(env.ctx, catalog, opts)
		Expect(err).NotTo(HaveOccurred())

		report, err := env.Seeder.Run(env.ctx, catalog, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Permissions).To(Equal(seed.SyncResult{}))
		Expect(report.RootUserCreated).To(BeFalse())
		Expect(countRows("roles", "name = $1", access.RootRoleName)).To(Equal(1))
		Expect(countRows("users", "true")).To(Equal(1))
		Expect(countRows("user_roles", "true")).To(Equal(1))
	})

	It("removes permissions that left the catalog", func() {
		stale := createPermission("legacy", "export")

		_, err := env.Seeder.Run(env.ctx, catalog, opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(countRows("permissions", "id = $1", stale.ID.String())).To(Equal(0))
	})
})
