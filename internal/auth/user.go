// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxEmailLength bounds the stored email address.
const MaxEmailLength = 254

// User is a principal that can log in.
type User struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSnapshot is the copy of a user carried inside access tokens. It is
// never refreshed in place; a renewed access token carries a new snapshot.
type UserSnapshot struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// NewUser creates a validated, enabled User with a fresh ID.
func NewUser(email, passwordHash, firstName, lastName string) (*User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Email:        normalized,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lower-cases email and checks it parses as a bare
// address.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(e) > MaxEmailLength {
		return "", oops.Code("USER_INVALID_EMAIL").Errorf("email exceeds %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", oops.Code("USER_INVALID_EMAIL").With("email", e).Errorf("invalid email address")
	}
	return e, nil
}

// Snapshot copies the identity fields that go into an access token.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Enabled:   u.Enabled,
	}
}

// UserID parses the snapshot's ID.
func (s UserSnapshot) UserID() (ulid.ULID, error) {
	id, err := ulid.Parse(s.ID)
	if err != nil {
		return ulid.ULID{}, oops.Code("USER_INVALID_ID").With("id", s.ID).Wrap(err)
	}
	return id, nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns a USER_EXISTS error if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if no user has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive), enabled or not.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// SetEnabled enables or disables a user.
	SetEnabled(ctx context.Context, id ulid.ULID, enabled bool) error
}
