// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package integration_test

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/auth"
)

var _ = Describe("Access control", func() {
	var (
		user                *auth.User
		read, write, remove *access.Permission
		editor              *access.Role
	)

	BeforeEach(func() {
		resetDatabase()
		user = createUser("bob@example.com", "hunter2hunter2")
		read = createPermission("tasks", "read")
		write = createPermission("tasks", "write")
		remove = createPermission("tasks", "delete")
		editor = createRole("editor")
	})

	Describe("effective permissions", func() {
		It("is the union of direct and role grants without duplicates", func() {
			Expect(env.Resolver.GrantUserPermissions(env.ctx, user.ID, []ulid.ULID{read.ID})).To(Succeed())
			Expect(env.Resolver.GrantRolePermissions(env.ctx, editor.ID, []ulid.ULID{read.ID, write.ID})).To(Succeed())
			Expect(env.Resolver.GrantUserRoles(env.ctx, user.ID, []ulid.ULID{editor.ID})).To(Succeed())

			perms, err := env.Resolver.EffectivePermissions(env.ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(access.Keys(perms)).To(ConsistOf("tasks:read", "tasks:write"))

			ok, err := env.Resolver.HasAll(env.ctx, user.ID, []ulid.ULID{read.ID, write.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			ok, err = env.Resolver.HasAny(env.ctx, user.ID, []ulid.ULID{remove.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("drops role permissions when the role is revoked", func() {
			Expect(env.Resolver.GrantRolePermissions(env.ctx, editor.ID, []ulid.ULID{write.ID})).To(Succeed())
			Expect(env.Resolver.GrantUserRoles(env.ctx, user.ID, []ulid.ULID{editor.ID})).To(Succeed())
			Expect(env.Resolver.RevokeUserRoles(env.ctx, user.ID, []ulid.ULID{editor.ID})).To(Succeed())

			ok, err := env.Resolver.HasPermission(env.ctx, user.ID, write.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("matches permission key patterns", func() {
			Expect(env.Resolver.GrantUserPermissions(env.ctx, user.ID, []ulid.ULID{write.ID})).To(Succeed())

			ok, err := env.Resolver.HasPermissionKey(env.ctx, user.ID, "tasks:*")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			ok, err = env.Resolver.HasPermissionKey(env.ctx, user.ID, "users:*")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("grants", func() {
		It("is idempotent", func() {
			ids := []ulid.ULID{read.ID, write.ID}
			Expect(env.Resolver.GrantUserPermissions(env.ctx, user.ID, ids)).To(Succeed())
			Expect(env.Resolver.GrantUserPermissions(env.ctx, user.ID, ids)).To(Succeed())

			Expect(countRows("user_permissions", "user_id = $1", user.ID.String())).To(Equal(2))
		})

		It("tolerates concurrent grants of the same permission", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 10)
			for range 10 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- env.Resolver.GrantUserPermissions(context.Background(), user.ID, []ulid.ULID{read.ID})
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(countRows("user_permissions", "user_id = $1", user.ID.String())).To(Equal(1))
		})

		It("revokes only the named permissions", func() {
			Expect(env.Resolver.GrantUserPermissions(env.ctx, user.ID, []ulid.ULID{read.ID, write.ID})).To(Succeed())
			Expect(env.Resolver.RevokeUserPermissions(env.ctx, user.ID, []ulid.ULID{write.ID, remove.ID})).To(Succeed())

			perms, err := env.Resolver.DirectPermissionsOfUser(env.ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(access.Keys(perms)).To(ConsistOf("tasks:read"))
		})
	})

	Describe("replace", func() {
		It("swaps the whole set", func() {
			Expect(env.Resolver.GrantRolePermissions(env.ctx, editor.ID, []ulid.ULID{read.ID, write.ID})).To(Succeed())
			Expect(env.Resolver.ReplaceRolePermissions(env.ctx, editor.ID, []ulid.ULID{remove.ID})).To(Succeed())

			perms, err := env.Resolver.PermissionsOfRole(env.ctx, editor.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(access.Keys(perms)).To(ConsistOf("tasks:delete"))
		})

		It("leaves the previous set intact when an insert fails", func() {
			Expect(env.Resolver.GrantUserPermissions(env.ctx, user.ID, []ulid.ULID{read.ID, write.ID})).To(Succeed())

			err := env.Resolver.ReplaceUserPermissions(env.ctx, user.ID, []ulid.ULID{remove.ID, ulid.Make()})
			Expect(err).To(HaveOccurred())

			perms, err := env.Resolver.DirectPermissionsOfUser(env.ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(access.Keys(perms)).To(ConsistOf("tasks:read", "tasks:write"))
		})

		It("lists the roles of a user", func() {
			viewer := createRole("viewer")
			Expect(env.Resolver.ReplaceUserRoles(env.ctx, user.ID, []ulid.ULID{editor.ID, viewer.ID})).To(Succeed())

			roles, err := env.Resolver.RolesOfUser(env.ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			names := make([]string, 0, len(roles))
			for _, r := range roles {
				names = append(names, r.Name)
			}
			Expect(names).To(ConsistOf("editor", "viewer"))
		})
	})

	Describe("catalog removal", func() {
		It("cascades to direct and role grants", func() {
			Expect(env.Resolver.GrantUserPermissions(env.ctx, user.ID, []ulid.ULID{remove.ID})).To(Succeed())
			Expect(env.Resolver.GrantRolePermissions(env.ctx, editor.ID, []ulid.ULID{remove.ID})).To(Succeed())

			n, err := env.Permissions.Delete(env.ctx, []ulid.ULID{remove.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
			Expect(countRows("user_permissions", "permission_id = $1", remove.ID.String())).To(Equal(0))
			Expect(countRows("role_permissions", "permission_id = $1", remove.ID.String())).To(Equal(0))
		})
	})
})
