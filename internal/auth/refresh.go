// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshRecord is the server-side half of a refresh token. Deleting the
// record revokes the token regardless of its own expiry.
type RefreshRecord struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewRefreshRecord creates a validated RefreshRecord for a raw refresh token.
// Only the token's hash is kept.
func NewRefreshRecord(userID ulid.ULID, token string, issuedAt, expiresAt time.Time) (*RefreshRecord, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("REFRESH_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if token == "" {
		return nil, oops.Code("REFRESH_INVALID_TOKEN").Errorf("token cannot be empty")
	}
	if !expiresAt.After(issuedAt) {
		return nil, oops.Code("REFRESH_INVALID_EXPIRY").
			With("issued_at", issuedAt).
			With("expires_at", expiresAt).
			Errorf("expiry must be after issue time")
	}
	return &RefreshRecord{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: HashToken(token),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// IsExpiredAt returns true if the record would be expired at t.
func (r *RefreshRecord) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// HashToken computes the SHA256 hex digest under which a refresh token is
// stored.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionStore persists refresh records. It is the source of truth for
// revocation: a token with no record is not redeemable.
//
// Methods taking a token accept the raw token string and hash it themselves.
type SessionStore interface {
	// Create stores a new record. Several records per user are allowed.
	Create(ctx context.Context, record *RefreshRecord) error

	// FindByToken retrieves the record for a raw token.
	// Returns ErrNotFound if the token is unknown or revoked.
	FindByToken(ctx context.Context, token string) (*RefreshRecord, error)

	// DeleteByToken revokes a single token and returns the rows removed.
	// Zero rows means the token was unknown.
	DeleteByToken(ctx context.Context, token string) (int64, error)

	// DeleteByUser revokes every token of a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) (int64, error)

	// DeleteExpired removes records that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
