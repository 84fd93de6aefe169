// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package postgres provides PostgreSQL implementations of the access ports.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/store"
)

// association maps a Kind onto its table and columns.
type association struct {
	table  string
	parent string
	child  string
}

var associations = map[access.Kind]association{
	access.UserPermissions: {table: "user_permissions", parent: "user_id", child: "permission_id"},
	access.RolePermissions: {table: "role_permissions", parent: "role_id", child: "permission_id"},
	access.UserRoles:       {table: "user_roles", parent: "user_id", child: "role_id"},
}

func lookup(kind access.Kind) (association, error) {
	a, ok := associations[kind]
	if !ok {
		return association{}, oops.Code("ACCESS_UNKNOWN_KIND").
			With("kind", string(kind)).
			Errorf("unknown association kind")
	}
	return a, nil
}

const permissionColumns = `p.id, p.group_name, p.name, p.description, p.created_at, p.updated_at`

// effectivePermissionsQuery unions direct grants with grants inherited
// through roles. UNION removes duplicates.
const effectivePermissionsQuery = `
	SELECT ` + permissionColumns + `
	FROM permissions p
	JOIN user_permissions up ON up.permission_id = p.id
	WHERE up.user_id = $1
	UNION
	SELECT ` + permissionColumns + `
	FROM permissions p
	JOIN role_permissions rp ON rp.permission_id = p.id
	JOIN user_roles ur ON ur.role_id = rp.role_id
	WHERE ur.user_id = $1
	ORDER BY 2, 3`

// GrantStore implements access.GrantStore using PostgreSQL.
type GrantStore struct {
	db store.Querier
}

// NewGrantStore creates a new GrantStore.
func NewGrantStore(db store.Querier) *GrantStore {
	return &GrantStore{db: db}
}

// EffectivePermissions implements access.GrantStore.
func (s *GrantStore) EffectivePermissions(ctx context.Context, userID ulid.ULID) ([]access.Permission, error) {
	rows, err := store.Conn(ctx, s.db).Query(ctx, effectivePermissionsQuery, userID.String())
	if err != nil {
		return nil, oops.Code("ACCESS_EFFECTIVE_QUERY_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return scanPermissions(rows)
}

// Children implements access.GrantStore.
func (s *GrantStore) Children(ctx context.Context, kind access.Kind, parentID ulid.ULID) ([]ulid.ULID, error) {
	a, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	rows, err := store.Conn(ctx, s.db).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, a.child, a.table, a.parent), parentID.String())
	if err != nil {
		return nil, oops.Code("ACCESS_CHILDREN_QUERY_FAILED").
			With("kind", string(kind)).
			With("parent_id", parentID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var ids []ulid.ULID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, oops.Code("ACCESS_SCAN_FAILED").With("kind", string(kind)).Wrap(err)
		}
		id, err := ulid.Parse(raw)
		if err != nil {
			return nil, oops.Code("ACCESS_INVALID_ID").With("id", raw).Wrap(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCESS_ROWS_ERROR").With("kind", string(kind)).Wrap(err)
	}
	return ids, nil
}

// Insert implements access.GrantStore. Existing rows are skipped, so
// concurrent grants of the same id do not collide.
func (s *GrantStore) Insert(ctx context.Context, kind access.Kind, parentID ulid.ULID, childIDs []ulid.ULID) error {
	a, err := lookup(kind)
	if err != nil {
		return err
	}
	if len(childIDs) == 0 {
		return nil
	}
	_, err = store.Conn(ctx, s.db).Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s, %s)
		SELECT $1, child FROM unnest($2::text[]) AS child
		ON CONFLICT DO NOTHING
	`, a.table, a.parent, a.child), parentID.String(), idStrings(childIDs))
	if err != nil {
		return oops.Code("ACCESS_INSERT_FAILED").
			With("kind", string(kind)).
			With("parent_id", parentID.String()).
			Wrap(err)
	}
	return nil
}

// Delete implements access.GrantStore.
func (s *GrantStore) Delete(ctx context.Context, kind access.Kind, parentID ulid.ULID, childIDs []ulid.ULID) (int64, error) {
	a, err := lookup(kind)
	if err != nil {
		return 0, err
	}
	if len(childIDs) == 0 {
		return 0, nil
	}
	result, err := store.Conn(ctx, s.db).Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = ANY($2::text[])`, a.table, a.parent, a.child),
		parentID.String(), idStrings(childIDs))
	if err != nil {
		return 0, oops.Code("ACCESS_DELETE_FAILED").
			With("kind", string(kind)).
			With("parent_id", parentID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteAll implements access.GrantStore.
func (s *GrantStore) DeleteAll(ctx context.Context, kind access.Kind, parentID ulid.ULID) (int64, error) {
	a, err := lookup(kind)
	if err != nil {
		return 0, err
	}
	result, err := store.Conn(ctx, s.db).Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, a.table, a.parent), parentID.String())
	if err != nil {
		return 0, oops.Code("ACCESS_DELETE_FAILED").
			With("kind", string(kind)).
			With("parent_id", parentID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// PermissionsOf implements access.GrantStore.
func (s *GrantStore) PermissionsOf(ctx context.Context, kind access.Kind, parentID ulid.ULID) ([]access.Permission, error) {
	if kind == access.UserRoles {
		return nil, oops.Code("ACCESS_UNKNOWN_KIND").
			With("kind", string(kind)).
			Errorf("user roles do not link permissions")
	}
	a, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	rows, err := store.Conn(ctx, s.db).Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM permissions p
		JOIN %s x ON x.permission_id = p.id
		WHERE x.%s = $1
		ORDER BY p.group_name, p.name
	`, permissionColumns, a.table, a.parent), parentID.String())
	if err != nil {
		return nil, oops.Code("ACCESS_PERMISSIONS_QUERY_FAILED").
			With("kind", string(kind)).
			With("parent_id", parentID.String()).
			Wrap(err)
	}
	return scanPermissions(rows)
}

// RolesOfUser implements access.GrantStore.
func (s *GrantStore) RolesOfUser(ctx context.Context, userID ulid.ULID) ([]access.Role, error) {
	rows, err := store.Conn(ctx, s.db).Query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, userID.String())
	if err != nil {
		return nil, oops.Code("ACCESS_ROLES_QUERY_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var roles []access.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, oops.Code("ACCESS_SCAN_FAILED").With("operation", "scan role").Wrap(err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCESS_ROWS_ERROR").With("operation", "iterate roles").Wrap(err)
	}
	return roles, nil
}

func scanPermissions(rows pgx.Rows) ([]access.Permission, error) {
	defer rows.Close()
	var perms []access.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, oops.Code("ACCESS_SCAN_FAILED").With("operation", "scan permission").Wrap(err)
		}
		perms = append(perms, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCESS_ROWS_ERROR").With("operation", "iterate permissions").Wrap(err)
	}
	return perms, nil
}

// scanPermission scans a single row into a Permission.
// Callers are responsible for handling pgx.ErrNoRows.
func scanPermission(row pgx.Row) (*access.Permission, error) {
	var (
		idStr string
		p     access.Permission
	)
	if err := row.Scan(&idStr, &p.Group, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCESS_INVALID_ID").With("id", idStr).Wrap(err)
	}
	p.ID = id
	return &p, nil
}

// scanRole scans a single row into a Role.
// Callers are responsible for handling pgx.ErrNoRows.
func scanRole(row pgx.Row) (*access.Role, error) {
	var (
		idStr string
		r     access.Role
	)
	if err := row.Scan(&idStr, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCESS_INVALID_ID").With("id", idStr).Wrap(err)
	}
	r.ID = id
	return &r, nil
}

func idStrings(ids []ulid.ULID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// Compile-time interface check.
var _ access.GrantStore = (*GrantStore)(nil)
