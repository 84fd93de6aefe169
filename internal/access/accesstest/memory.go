// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package accesstest provides an in-memory grant store for tests.
package accesstest

import (
	"context"
	"maps"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/warden-auth/warden/internal/access"
)

// MemoryStore is an access.GrantStore and access.Transactor backed by maps.
// InTransaction restores the previous state when fn fails.
type MemoryStore struct {
	mu          sync.Mutex
	permissions map[ulid.ULID]access.Permission
	roles       map[ulid.ULID]access.Role
	links       map[access.Kind]map[ulid.ULID]map[ulid.ULID]struct{}

	// FailInsert, when set, is returned by every Insert.
	FailInsert error
	// EffectiveCalls counts EffectivePermissions calls.
	EffectiveCalls int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		permissions: make(map[ulid.ULID]access.Permission),
		roles:       make(map[ulid.ULID]access.Role),
		links:       make(map[access.Kind]map[ulid.ULID]map[ulid.ULID]struct{}),
	}
	for _, k := range access.Kinds {
		s.links[k] = make(map[ulid.ULID]map[ulid.ULID]struct{})
	}
	return s
}

// AddPermission registers a permission and returns it.
func (s *MemoryStore) AddPermission(group, name string) access.Permission {
	p, err := access.NewPermission(group, name, "")
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[p.ID] = *p
	return *p
}

// AddRole registers a role and returns it.
func (s *MemoryStore) AddRole(name string) access.Role {
	r, err := access.NewRole(name, "")
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID] = *r
	return *r
}

// Rows returns the number of association rows of kind held by parentID.
func (s *MemoryStore) Rows(kind access.Kind, parentID ulid.ULID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links[kind][parentID])
}

// InTransaction implements access.Transactor.
func (s *MemoryStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.cloneLinks()
	s.mu.Unlock()

	err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Lock()
		s.links = snapshot
		s.mu.Unlock()
	}
	return err
}

func (s *MemoryStore) cloneLinks() map[access.Kind]map[ulid.ULID]map[ulid.ULID]struct{} {
	out := make(map[access.Kind]map[ulid.ULID]map[ulid.ULID]struct{}, len(s.links))
	for k, parents := range s.links {
		cp := make(map[ulid.ULID]map[ulid.ULID]struct{}, len(parents))
		for p, children := range parents {
			cp[p] = maps.Clone(children)
		}
		out[k] = cp
	}
	return out
}

// EffectivePermissions implements access.GrantStore.
func (s *MemoryStore) EffectivePermissions(_ context.Context, userID ulid.ULID) ([]access.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EffectiveCalls++

	ids := maps.Clone(s.links[access.UserPermissions][userID])
	if ids == nil {
		ids = make(map[ulid.ULID]struct{})
	}
	for roleID := range s.links[access.UserRoles][userID] {
		for permID := range s.links[access.RolePermissions][roleID] {
			ids[permID] = struct{}{}
		}
	}
	return s.permissionsLocked(ids), nil
}

// Children implements access.GrantStore.
func (s *MemoryStore) Children(_ context.Context, kind access.Kind, parentID ulid.ULID) ([]ulid.ULID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ulid.ULID, 0, len(s.links[kind][parentID]))
	for id := range s.links[kind][parentID] {
		out = append(out, id)
	}
	return out, nil
}

// Insert implements access.GrantStore.
func (s *MemoryStore) Insert(_ context.Context, kind access.Kind, parentID ulid.ULID, childIDs []ulid.ULID) error {
	if s.FailInsert != nil {
		return s.FailInsert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	children := s.links[kind][parentID]
	if children == nil {
		children = make(map[ulid.ULID]struct{})
		s.links[kind][parentID] = children
	}
	for _, id := range childIDs {
		children[id] = struct{}{}
	}
	return nil
}

// Delete implements access.GrantStore.
func (s *MemoryStore) Delete(_ context.Context, kind access.Kind, parentID ulid.ULID, childIDs []ulid.ULID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range childIDs {
		if _, ok := s.links[kind][parentID][id]; ok {
			delete(s.links[kind][parentID], id)
			n++
		}
	}
	return n, nil
}

// DeleteAll implements access.GrantStore.
func (s *MemoryStore) DeleteAll(_ context.Context, kind access.Kind, parentID ulid.ULID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.links[kind][parentID]))
	delete(s.links[kind], parentID)
	return n, nil
}

// PermissionsOf implements access.GrantStore.
func (s *MemoryStore) PermissionsOf(_ context.Context, kind access.Kind, parentID ulid.ULID) ([]access.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permissionsLocked(s.links[kind][parentID]), nil
}

// RolesOfUser implements access.GrantStore.
func (s *MemoryStore) RolesOfUser(_ context.Context, userID ulid.ULID) ([]access.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []access.Role
	for id := range s.links[access.UserRoles][userID] {
		if r, ok := s.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) permissionsLocked(ids map[ulid.ULID]struct{}) []access.Permission {
	out := make([]access.Permission, 0, len(ids))
	for id := range ids {
		if p, ok := s.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

var (
	_ access.GrantStore = (*MemoryStore)(nil)
	_ access.Transactor = (*MemoryStore)(nil)
)
