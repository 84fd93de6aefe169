// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/store"
)

// PermissionRepository implements access.PermissionRepository using PostgreSQL.
type PermissionRepository struct {
	db store.Querier
}

// NewPermissionRepository creates a new PermissionRepository.
func NewPermissionRepository(db store.Querier) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// List returns every permission ordered by group and name.
func (r *PermissionRepository) List(ctx context.Context) ([]access.Permission, error) {
	rows, err := store.Conn(ctx, r.db).Query(ctx,
		`SELECT `+permissionColumns+` FROM permissions p ORDER BY p.group_name, p.name`)
	if err != nil {
		return nil, oops.Code("PERMISSION_LIST_FAILED").
			With("operation", "list permissions").
			Wrap(err)
	}
	return scanPermissions(rows)
}

// Create stores a new permission.
func (r *PermissionRepository) Create(ctx context.Context, perm *access.Permission) error {
	_, err := store.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO permissions (id, group_name, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, perm.ID.String(), perm.Group, perm.Name, perm.Description, perm.CreatedAt, perm.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("PERMISSION_EXISTS").
				With("key", perm.Key()).
				Errorf("permission %s already exists", perm.Key())
		}
		return oops.Code("PERMISSION_CREATE_FAILED").
			With("operation", "insert permission").
			With("key", perm.Key()).
			Wrap(err)
	}
	return nil
}

// UpdateDescription changes a permission's description.
func (r *PermissionRepository) UpdateDescription(ctx context.Context, id ulid.ULID, description string) error {
	result, err := store.Conn(ctx, r.db).Exec(ctx, `
		UPDATE permissions SET description = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), description, time.Now())
	if err != nil {
		return oops.Code("PERMISSION_UPDATE_FAILED").
			With("operation", "update description").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PERMISSION_NOT_FOUND").
			With("id", id.String()).
			Wrap(access.ErrNotFound)
	}
	return nil
}

// Delete removes permissions. Grants of them are removed by cascade.
func (r *PermissionRepository) Delete(ctx context.Context, ids []ulid.ULID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := store.Conn(ctx, r.db).Exec(ctx,
		`DELETE FROM permissions WHERE id = ANY($1::text[])`, idStrings(ids))
	if err != nil {
		return 0, oops.Code("PERMISSION_DELETE_FAILED").
			With("operation", "delete permissions").
			With("count", len(ids)).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ access.PermissionRepository = (*PermissionRepository)(nil)
