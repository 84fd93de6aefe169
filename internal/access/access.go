// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package access provides the permission model for Warden.
//
// A user holds permissions directly and through roles. The effective set is
// the union of both and is recomputed from the store on every query.
// Permissions are addressed by ULID in the store and by the key
// "group:name" in checks and the bundled catalog.
package access

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RootRoleName is the role that is granted every catalog permission.
const RootRoleName = "root"

// RootRoleDescription describes the root role.
const RootRoleDescription = "Role which has every permission that is seeded at startup"

// Permission is a capability atom, unique on (Group, Name).
type Permission struct {
	ID          ulid.ULID
	Group       string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns "group:name".
func (p Permission) Key() string {
	return p.Group + ":" + p.Name
}

// NewPermission creates a Permission with a fresh ID.
func NewPermission(group, name, description string) (*Permission, error) {
	group = strings.TrimSpace(group)
	name = strings.TrimSpace(name)
	if group == "" || strings.Contains(group, ":") {
		return nil, oops.Code("ACCESS_INVALID_PERMISSION").
			With("group", group).
			Errorf("permission group must be non-empty and contain no ':'")
	}
	if name == "" {
		return nil, oops.Code("ACCESS_INVALID_PERMISSION").
			With("group", group).
			Errorf("permission name cannot be empty")
	}
	now := time.Now()
	return &Permission{
		ID:          ulid.Make(),
		Group:       group,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ParseKey splits a "group:name" key. The name may itself contain ':'.
func ParseKey(key string) (group, name string, err error) {
	group, name, ok := strings.Cut(key, ":")
	if !ok || group == "" || name == "" {
		return "", "", oops.Code("ACCESS_INVALID_KEY").
			With("key", key).
			Errorf("permission key must have the form group:name")
	}
	return group, name, nil
}

// Role is a named bundle of permissions.
type Role struct {
	ID          ulid.ULID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRole creates a Role with a fresh ID.
func NewRole(name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.Code("ACCESS_INVALID_ROLE").Errorf("role name cannot be empty")
	}
	now := time.Now()
	return &Role{
		ID:          ulid.Make(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IDs returns the IDs of perms in order.
func IDs(perms []Permission) []ulid.ULID {
	ids := make([]ulid.ULID, len(perms))
	for i, p := range perms {
		ids[i] = p.ID
	}
	return ids
}

// Keys returns the keys of perms in order.
func Keys(perms []Permission) []string {
	keys := make([]string, len(perms))
	for i, p := range perms {
		keys[i] = p.Key()
	}
	return keys
}
