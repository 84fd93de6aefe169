// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package seed brings the database to the state Warden expects at startup:
// the permission catalog, the root role and optionally the root user.
// Every step is idempotent.
package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/pkg/errutil"
)

// Options selects the optional seeding steps.
type Options struct {
	// GrantRootRole replaces the root role's permissions with the full catalog.
	GrantRootRole bool
	// SeedRootUser creates the root user when it does not exist and adds it
	// to the root role.
	SeedRootUser     bool
	RootUserEmail    string
	RootUserPassword string
}

// Validate checks that the root user options are complete.
func (o Options) Validate() error {
	if !o.SeedRootUser {
		return nil
	}
	if o.RootUserEmail == "" || o.RootUserPassword == "" {
		return oops.Code("SEED_INVALID_OPTIONS").
			Errorf("root user email and password are required to seed the root user")
	}
	return nil
}

// SyncResult counts the catalog changes applied.
type SyncResult struct {
	Added   int
	Removed int
	Updated int
}

// Report describes a completed seeding run.
type Report struct {
	Permissions     SyncResult
	RootRole        *access.Role
	RootUser        *auth.User
	RootUserCreated bool
}

// Seeder applies the catalog and bootstrap identities.
type Seeder struct {
	permissions access.PermissionRepository
	roles       access.RoleRepository
	users       auth.UserRepository
	resolver    *access.PermissionResolver
	hasher      auth.PasswordHasher
	tx          access.Transactor
	logger      *slog.Logger
}

// Deps are the collaborators of a Seeder.
type Deps struct {
	Permissions access.PermissionRepository
	Roles       access.RoleRepository
	Users       auth.UserRepository
	Resolver    *access.PermissionResolver
	Hasher      auth.PasswordHasher
	Transactor  access.Transactor
	Logger      *slog.Logger
}

// New creates a Seeder.
func New(d Deps) (*Seeder, error) {
	switch {
	case d.Permissions == nil:
		return nil, oops.Code("SEED_INVALID_SERVICE").Errorf("permission repository is required")
	case d.Roles == nil:
		return nil, oops.Code("SEED_INVALID_SERVICE").Errorf("role repository is required")
	case d.Users == nil:
		return nil, oops.Code("SEED_INVALID_SERVICE").Errorf("user repository is required")
	case d.Resolver == nil:
		return nil, oops.Code("SEED_INVALID_SERVICE").Errorf("permission resolver is required")
	case d.Hasher == nil:
		return nil, oops.Code("SEED_INVALID_SERVICE").Errorf("password hasher is required")
	case d.Transactor == nil:
		return nil, oops.Code("SEED_INVALID_SERVICE").Errorf("transactor is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		permissions: d.Permissions,
		roles:       d.Roles,
		users:       d.Users,
		resolver:    d.Resolver,
		hasher:      d.Hasher,
		tx:          d.Transactor,
		logger:      logger,
	}, nil
}

// Run syncs the catalog, ensures the root role and applies the optional
// steps selected by opts.
func (s *Seeder) Run(ctx context.Context, catalog *access.Catalog, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{}
	var err error
	if report.Permissions, err = s.SyncPermissions(ctx, catalog); err != nil {
		return nil, err
	}
	if report.RootRole, err = s.EnsureRootRole(ctx); err != nil {
		return nil, err
	}
	if opts.GrantRootRole {
		if err := s.GrantAllToRole(ctx, report.RootRole); err != nil {
			return nil, err
		}
	}
	if opts.SeedRootUser {
		report.RootUser, report.RootUserCreated, err = s.EnsureRootUser(ctx, opts.RootUserEmail, opts.RootUserPassword, report.RootRole)
		if err != nil {
			return nil, err
		}
	}
	return report, nil
}

// SyncPermissions makes the permissions table match catalog in one
// transaction: missing entries are inserted, entries no longer listed are
// deleted with their grants, and changed descriptions are updated.
func (s *Seeder) SyncPermissions(ctx context.Context, catalog *access.Catalog) (SyncResult, error) {
	if catalog == nil {
		return SyncResult{}, oops.Code("SEED_INVALID_CATALOG").Errorf("catalog is required")
	}

	var result SyncResult
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		result = SyncResult{}
		existing, err := s.permissions.List(ctx)
		if err != nil {
			return err
		}
		byKey := make(map[string]access.Permission, len(existing))
		for _, p := range existing {
			byKey[p.Key()] = p
		}

		wanted := make(map[string]struct{}, len(catalog.Permissions))
		for _, e := range catalog.Permissions {
			wanted[e.Key()] = struct{}{}
			current, ok := byKey[e.Key()]
			if !ok {
				perm, err := access.NewPermission(e.Group, e.Name, e.Description)
				if err != nil {
					return err
				}
				if err := s.permissions.Create(ctx, perm); err != nil {
					return err
				}
				result.Added++
				continue
			}
			if current.Description != e.Description {
				if err := s.permissions.UpdateDescription(ctx, current.ID, e.Description); err != nil {
					return err
				}
				result.Updated++
			}
		}

		var stale []access.Permission
		for _, p := range existing {
			if _, ok := wanted[p.Key()]; !ok {
				stale = append(stale, p)
			}
		}
		if len(stale) > 0 {
			n, err := s.permissions.Delete(ctx, access.IDs(stale))
			if err != nil {
				return err
			}
			result.Removed = int(n)
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, oops.Code("SEED_PERMISSIONS_FAILED").Wrap(err)
	}

	s.logger.InfoContext(ctx, "permission catalog synced",
		"added", result.Added, "removed", result.Removed, "updated", result.Updated)
	return result, nil
}

// EnsureRootRole returns the root role, creating it when missing.
func (s *Seeder) EnsureRootRole(ctx context.Context) (*access.Role, error) {
	role, err := s.roles.GetByName(ctx, access.RootRoleName)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, access.ErrNotFound) {
		return nil, oops.Code("SEED_ROOT_ROLE_FAILED").Wrap(err)
	}

	role, err = access.NewRole(access.RootRoleName, access.RootRoleDescription)
	if err != nil {
		return nil, oops.Code("SEED_ROOT_ROLE_FAILED").Wrap(err)
	}
	if err := s.roles.Create(ctx, role); err != nil {
		if errutil.HasCode(err, "ROLE_EXISTS") {
			// Created concurrently by another instance.
			existing, getErr := s.roles.GetByName(ctx, access.RootRoleName)
			if getErr != nil {
				return nil, oops.Code("SEED_ROOT_ROLE_FAILED").Wrap(getErr)
			}
			return existing, nil
		}
		return nil, oops.Code("SEED_ROOT_ROLE_FAILED").Wrap(err)
	}
	s.logger.InfoContext(ctx, "root role created", "role_id", role.ID.String())
	return role, nil
}

// GrantAllToRole replaces the role's permissions with every permission in
// the store.
func (s *Seeder) GrantAllToRole(ctx context.Context, role *access.Role) error {
	perms, err := s.permissions.List(ctx)
	if err != nil {
		return oops.Code("SEED_ROOT_GRANT_FAILED").Wrap(err)
	}
	if err := s.resolver.ReplaceRolePermissions(ctx, role.ID, access.IDs(perms)); err != nil {
		return oops.Code("SEED_ROOT_GRANT_FAILED").Wrap(err)
	}
	s.logger.InfoContext(ctx, "role granted every permission",
		"role", role.Name, "count", len(perms))
	return nil
}

// EnsureRootUser creates the root user when no user has email and adds the
// user to role. An existing user keeps its password.
func (s *Seeder) EnsureRootUser(ctx context.Context, email, password string, role *access.Role) (*auth.User, bool, error) {
	normalized, err := auth.NormalizeEmail(email)
	if err != nil {
		return nil, false, oops.Code("SEED_ROOT_USER_FAILED").Wrap(err)
	}

	created := false
	user, err := s.users.GetByEmail(ctx, normalized)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "root user already exists", "user_id", user.ID.String())
	case errors.Is(err, auth.ErrNotFound):
		user, err = s.createUser(ctx, normalized, password)
		if err != nil {
			return nil, false, err
		}
		created = true
	default:
		return nil, false, oops.Code("SEED_ROOT_USER_FAILED").Wrap(err)
	}

	if role != nil {
		if err := s.resolver.GrantUserRoles(ctx, user.ID, []ulid.ULID{role.ID}); err != nil {
			return nil, false, oops.Code("SEED_ROOT_USER_FAILED").Wrap(err)
		}
	}
	return user, created, nil
}

func (s *Seeder) createUser(ctx context.Context, email, password string) (*auth.User, error) {
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, oops.Code("SEED_ROOT_USER_FAILED").Wrap(err)
	}
	user, err := auth.NewUser(email, hash, "", "")
	if err != nil {
		return nil, oops.Code("SEED_ROOT_USER_FAILED").Wrap(err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, oops.Code("SEED_ROOT_USER_FAILED").Wrap(err)
	}
	s.logger.InfoContext(ctx, "root user created", "user_id", user.ID.String(), "email", email)
	return user, nil
}
