// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package access

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warden-auth/warden/internal/observability"
	"github.com/warden-auth/warden/pkg/errutil"
)

var tracer = otel.Tracer("warden/access")

// PermissionResolver answers permission checks and mutates the grant graph.
// It holds no state of its own; every call reads the store.
type PermissionResolver struct {
	store  GrantStore
	tx     Transactor
	logger *slog.Logger
}

// NewPermissionResolver creates a PermissionResolver. A nil logger means
// slog.Default().
func NewPermissionResolver(store GrantStore, tx Transactor, logger *slog.Logger) (*PermissionResolver, error) {
	if store == nil {
		return nil, oops.Code("ACCESS_INVALID_SERVICE").Errorf("grant store is required")
	}
	if tx == nil {
		return nil, oops.Code("ACCESS_INVALID_SERVICE").Errorf("transactor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionResolver{store: store, tx: tx, logger: logger}, nil
}

// EffectivePermissions returns the user's direct and role-inherited
// permissions, sorted by key.
func (r *PermissionResolver) EffectivePermissions(ctx context.Context, userID ulid.ULID) ([]Permission, error) {
	perms, err := r.store.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, oops.Code("ACCESS_RESOLVE_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return sortPermissions(dedupPermissions(perms)), nil
}

// HasPermission reports whether the user effectively holds permissionID.
func (r *PermissionResolver) HasPermission(ctx context.Context, userID, permissionID ulid.ULID) (bool, error) {
	return r.HasAny(ctx, userID, []ulid.ULID{permissionID})
}

// HasAny reports whether the user holds at least one of permissionIDs. An
// empty request is false.
func (r *PermissionResolver) HasAny(ctx context.Context, userID ulid.ULID, permissionIDs []ulid.ULID) (bool, error) {
	if len(permissionIDs) == 0 {
		return false, nil
	}
	held, err := r.heldSet(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range permissionIDs {
		if _, ok := held[id]; ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAll reports whether the user holds every one of permissionIDs. An
// empty request is true.
func (r *PermissionResolver) HasAll(ctx context.Context, userID ulid.ULID, permissionIDs []ulid.ULID) (bool, error) {
	if len(permissionIDs) == 0 {
		return true, nil
	}
	held, err := r.heldSet(ctx, userID)
	if err != nil {
		return false, err
	}
	all := true
	for _, id := range permissionIDs {
		if _, ok := held[id]; !ok {
			all = false
		}
	}
	return all, nil
}

// HasPermissionKey reports whether any effective permission key of the user
// matches pattern, for example "auth:revoke" or "users:*".
func (r *PermissionResolver) HasPermissionKey(ctx context.Context, userID ulid.ULID, pattern string) (bool, error) {
	m, err := CompilePattern(pattern)
	if err != nil {
		return false, err
	}
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return m.MatchAny(perms), nil
}

func (r *PermissionResolver) heldSet(ctx context.Context, userID ulid.ULID) (map[ulid.ULID]struct{}, error) {
	perms, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := make(map[ulid.ULID]struct{}, len(perms))
	for _, p := range perms {
		held[p.ID] = struct{}{}
	}
	return held, nil
}

// GrantUserPermissions adds direct permissions to a user.
func (r *PermissionResolver) GrantUserPermissions(ctx context.Context, userID ulid.ULID, permissionIDs []ulid.ULID) error {
	return r.grant(ctx, UserPermissions, userID, permissionIDs)
}

// RevokeUserPermissions removes direct permissions from a user.
func (r *PermissionResolver) RevokeUserPermissions(ctx context.Context, userID ulid.ULID, permissionIDs []ulid.ULID) error {
	return r.revoke(ctx, UserPermissions, userID, permissionIDs)
}

// ReplaceUserPermissions sets the user's direct permissions to exactly
// permissionIDs.
func (r *PermissionResolver) ReplaceUserPermissions(ctx context.Context, userID ulid.ULID, permissionIDs []ulid.ULID) error {
	return r.replace(ctx, UserPermissions, userID, permissionIDs)
}

// GrantRolePermissions adds permissions to a role.
func (r *PermissionResolver) GrantRolePermissions(ctx context.Context, roleID ulid.ULID, permissionIDs []ulid.ULID) error {
	return r.grant(ctx, RolePermissions, roleID, permissionIDs)
}

// RevokeRolePermissions removes permissions from a role.
func (r *PermissionResolver) RevokeRolePermissions(ctx context.Context, roleID ulid.ULID, permissionIDs []ulid.ULID) error {
	return r.revoke(ctx, RolePermissions, roleID, permissionIDs)
}

// ReplaceRolePermissions sets the role's permissions to exactly
// permissionIDs.
func (r *PermissionResolver) ReplaceRolePermissions(ctx context.Context, roleID ulid.ULID, permissionIDs []ulid.ULID) error {
	return r.replace(ctx, RolePermissions, roleID, permissionIDs)
}

// GrantUserRoles adds a user to roles.
func (r *PermissionResolver) GrantUserRoles(ctx context.Context, userID ulid.ULID, roleIDs []ulid.ULID) error {
	return r.grant(ctx, UserRoles, userID, roleIDs)
}

// RevokeUserRoles removes a user from roles.
func (r *PermissionResolver) RevokeUserRoles(ctx context.Context, userID ulid.ULID, roleIDs []ulid.ULID) error {
	return r.revoke(ctx, UserRoles, userID, roleIDs)
}

// ReplaceUserRoles sets the user's roles to exactly roleIDs.
func (r *PermissionResolver) ReplaceUserRoles(ctx context.Context, userID ulid.ULID, roleIDs []ulid.ULID) error {
	return r.replace(ctx, UserRoles, userID, roleIDs)
}

// grant inserts only the ids not already held, so repeating it is a no-op.
func (r *PermissionResolver) grant(ctx context.Context, kind Kind, parentID ulid.ULID, ids []ulid.ULID) (err error) {
	ctx, span := r.startMutation(ctx, "grant", kind, parentID)
	defer func() { endSpan(span, err) }()

	current, err := r.store.Children(ctx, kind, parentID)
	if err != nil {
		return mutationError("ACCESS_GRANT_FAILED", kind, parentID, err)
	}
	toInsert, _ := Delta(current, ids)
	span.SetAttributes(attribute.Int("access.inserted", len(toInsert)))
	if len(toInsert) == 0 {
		return nil
	}
	if err := r.store.Insert(ctx, kind, parentID, toInsert); err != nil {
		return mutationError("ACCESS_GRANT_FAILED", kind, parentID, err)
	}
	observability.RecordAccessMutation(string(kind), "grant")
	r.logger.InfoContext(ctx, "access granted",
		"kind", string(kind), "parent_id", parentID.String(), "count", len(toInsert))
	return nil
}

// revoke deletes matching rows. Ids that are not held are ignored.
func (r *PermissionResolver) revoke(ctx context.Context, kind Kind, parentID ulid.ULID, ids []ulid.ULID) (err error) {
	ctx, span := r.startMutation(ctx, "revoke", kind, parentID)
	defer func() { endSpan(span, err) }()

	ids = Dedup(ids)
	if len(ids) == 0 {
		return nil
	}
	n, err := r.store.Delete(ctx, kind, parentID, ids)
	if err != nil {
		return mutationError("ACCESS_REVOKE_FAILED", kind, parentID, err)
	}
	span.SetAttributes(attribute.Int64("access.deleted", n))
	if n > 0 {
		observability.RecordAccessMutation(string(kind), "revoke")
		r.logger.InfoContext(ctx, "access revoked",
			"kind", string(kind), "parent_id", parentID.String(), "count", n)
	}
	return nil
}

// replace deletes every association of parentID and inserts ids, in one
// transaction. No reader outside the transaction sees the empty set.
func (r *PermissionResolver) replace(ctx context.Context, kind Kind, parentID ulid.ULID, ids []ulid.ULID) (err error) {
	ctx, span := r.startMutation(ctx, "replace", kind, parentID)
	defer func() { endSpan(span, err) }()

	ids = Dedup(ids)
	err = r.tx.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.store.DeleteAll(ctx, kind, parentID); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return r.store.Insert(ctx, kind, parentID, ids)
	})
	if err != nil {
		return mutationError("ACCESS_REPLACE_FAILED", kind, parentID, err)
	}
	observability.RecordAccessMutation(string(kind), "replace")
	r.logger.InfoContext(ctx, "access replaced",
		"kind", string(kind), "parent_id", parentID.String(), "count", len(ids))
	return nil
}

// RolesOfUser returns the roles of a user, sorted by name.
func (r *PermissionResolver) RolesOfUser(ctx context.Context, userID ulid.ULID) ([]Role, error) {
	roles, err := r.store.RolesOfUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("ACCESS_READ_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	roles = dedupBy(roles, func(r Role) ulid.ULID { return r.ID })
	slices.SortFunc(roles, func(a, b Role) int { return strings.Compare(a.Name, b.Name) })
	return roles, nil
}

// PermissionsOfRole returns the permissions of a role, sorted by key.
func (r *PermissionResolver) PermissionsOfRole(ctx context.Context, roleID ulid.ULID) ([]Permission, error) {
	return r.permissionsOf(ctx, RolePermissions, roleID)
}

// DirectPermissionsOfUser returns the permissions granted to the user
// directly, sorted by key. Role-inherited permissions are not included.
func (r *PermissionResolver) DirectPermissionsOfUser(ctx context.Context, userID ulid.ULID) ([]Permission, error) {
	return r.permissionsOf(ctx, UserPermissions, userID)
}

func (r *PermissionResolver) permissionsOf(ctx context.Context, kind Kind, parentID ulid.ULID) ([]Permission, error) {
	perms, err := r.store.PermissionsOf(ctx, kind, parentID)
	if err != nil {
		return nil, oops.Code("ACCESS_READ_FAILED").
			With("kind", string(kind)).
			With("parent_id", parentID.String()).
			Wrap(err)
	}
	return sortPermissions(dedupPermissions(perms)), nil
}

func (r *PermissionResolver) startMutation(ctx context.Context, op string, kind Kind, parentID ulid.ULID) (context.Context, trace.Span) {
	return tracer.Start(ctx, "access."+op, trace.WithAttributes(
		attribute.String("access.kind", string(kind)),
		attribute.String("access.parent_id", parentID.String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// mutationError starts a fresh oops chain so code is what callers read. The
// store's own code and message are kept as context.
func mutationError(code string, kind Kind, parentID ulid.ULID, err error) error {
	return oops.Code(code).
		With("kind", string(kind)).
		With("parent_id", parentID.String()).
		With("cause_code", errutil.Code(err)).
		Errorf("%s mutation failed: %v", kind, err)
}

func dedupPermissions(perms []Permission) []Permission {
	return dedupBy(perms, func(p Permission) ulid.ULID { return p.ID })
}

func dedupBy[T any](items []T, id func(T) ulid.ULID) []T {
	seen := make(map[ulid.ULID]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := id(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

func sortPermissions(perms []Permission) []Permission {
	slices.SortFunc(perms, func(a, b Permission) int {
		if c := strings.Compare(a.Group, b.Group); c != 0 {
			return c
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return perms
}
