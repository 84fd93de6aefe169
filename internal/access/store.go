// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package access

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Kind names an association between a parent and a child id.
type Kind string

// Association kinds.
const (
	// UserPermissions links a user to directly held permissions.
	UserPermissions Kind = "user_permission"
	// RolePermissions links a role to its permissions.
	RolePermissions Kind = "role_permission"
	// UserRoles links a user to the roles it belongs to.
	UserRoles Kind = "user_role"
)

// Kinds lists every association kind.
var Kinds = []Kind{UserPermissions, RolePermissions, UserRoles}

// GrantStore persists the grant graph.
//
// Implementations must run every call on the transaction carried by ctx when
// there is one, so Replace is atomic.
type GrantStore interface {
	// EffectivePermissions returns the union of direct and role-inherited
	// permissions of a user, without duplicates.
	EffectivePermissions(ctx context.Context, userID ulid.ULID) ([]Permission, error)

	// Children returns the child ids associated with parentID.
	Children(ctx context.Context, kind Kind, parentID ulid.ULID) ([]ulid.ULID, error)

	// Insert adds associations. Rows that already exist are skipped.
	Insert(ctx context.Context, kind Kind, parentID ulid.ULID, childIDs []ulid.ULID) error

	// Delete removes the given associations and returns the rows removed.
	Delete(ctx context.Context, kind Kind, parentID ulid.ULID, childIDs []ulid.ULID) (int64, error)

	// DeleteAll removes every association of parentID.
	DeleteAll(ctx context.Context, kind Kind, parentID ulid.ULID) (int64, error)

	// PermissionsOf returns the permissions linked to parentID by a
	// UserPermissions or RolePermissions association.
	PermissionsOf(ctx context.Context, kind Kind, parentID ulid.ULID) ([]Permission, error)

	// RolesOfUser returns the roles a user belongs to.
	RolesOfUser(ctx context.Context, userID ulid.ULID) ([]Role, error)
}

// PermissionRepository manages the permission catalog rows.
type PermissionRepository interface {
	List(ctx context.Context) ([]Permission, error)
	Create(ctx context.Context, perm *Permission) error
	UpdateDescription(ctx context.Context, id ulid.ULID, description string) error
	// Delete removes permissions and, by cascade, every association to them.
	Delete(ctx context.Context, ids []ulid.ULID) (int64, error)
}

// RoleRepository manages roles.
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	GetByName(ctx context.Context, name string) (*Role, error)
}

// Transactor runs fn inside one database transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
