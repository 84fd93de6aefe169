// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package accesstest

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/access"
)

// Permissions returns an access.PermissionRepository over the store's
// permissions.
func (s *MemoryStore) Permissions() access.PermissionRepository {
	return memoryPermissions{s}
}

// Roles returns an access.RoleRepository over the store's roles.
func (s *MemoryStore) Roles() access.RoleRepository {
	return memoryRoles{s}
}

type memoryPermissions struct{ s *MemoryStore }

func (m memoryPermissions) List(_ context.Context) ([]access.Permission, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]access.Permission, 0, len(m.s.permissions))
	for _, p := range m.s.permissions {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b access.Permission) int { return strings.Compare(a.Key(), b.Key()) })
	return out, nil
}

func (m memoryPermissions) Create(_ context.Context, perm *access.Permission) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.permissions {
		if p.Key() == perm.Key() {
			return oops.Code("PERMISSION_EXISTS").With("key", perm.Key()).Errorf("permission exists")
		}
	}
	m.s.permissions[perm.ID] = *perm
	return nil
}

func (m memoryPermissions) UpdateDescription(_ context.Context, id ulid.ULID, description string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.permissions[id]
	if !ok {
		return oops.Code("PERMISSION_NOT_FOUND").Wrap(access.ErrNotFound)
	}
	p.Description = description
	p.UpdatedAt = time.Now()
	m.s.permissions[id] = p
	return nil
}

func (m memoryPermissions) Delete(_ context.Context, ids []ulid.ULID) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.s.permissions[id]; !ok {
			continue
		}
		delete(m.s.permissions, id)
		n++
		for _, kind := range []access.Kind{access.UserPermissions, access.RolePermissions} {
			for _, children := range m.s.links[kind] {
				delete(children, id)
			}
		}
	}
	return n, nil
}

type memoryRoles struct{ s *MemoryStore }

func (m memoryRoles) Create(_ context.Context, role *access.Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.roles {
		if r.Name == role.Name {
			return oops.Code("ROLE_EXISTS").With("name", role.Name).Errorf("role exists")
		}
	}
	m.s.roles[role.ID] = *role
	return nil
}

func (m memoryRoles) GetByName(_ context.Context, name string) (*access.Role, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.roles {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, oops.Code("ROLE_NOT_FOUND").With("name", name).Wrap(access.ErrNotFound)
}
