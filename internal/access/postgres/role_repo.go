// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/store"
)

// RoleRepository implements access.RoleRepository using PostgreSQL.
type RoleRepository struct {
	db store.Querier
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(db store.Querier) *RoleRepository {
	return &RoleRepository{db: db}
}

// Create stores a new role.
func (r *RoleRepository) Create(ctx context.Context, role *access.Role) error {
	_, err := store.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO roles (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, role.ID.String(), role.Name, role.Description, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ROLE_EXISTS").
				With("name", role.Name).
				Errorf("role %s already exists", role.Name)
		}
		return oops.Code("ROLE_CREATE_FAILED").
			With("operation", "insert role").
			With("name", role.Name).
			Wrap(err)
	}
	return nil
}

// GetByName retrieves a role by name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*access.Role, error) {
	row := store.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM roles
		WHERE name = $1
	`, name)

	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ROLE_NOT_FOUND").
			With("name", name).
			Wrap(access.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ROLE_GET_FAILED").
			With("operation", "get role by name").
			With("name", name).
			Wrap(err)
	}
	return role, nil
}

// Compile-time interface check.
var _ access.RoleRepository = (*RoleRepository)(nil)
