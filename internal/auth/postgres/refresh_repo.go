// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/store"
)

// RefreshTokenRepository implements auth.SessionStore using PostgreSQL.
// Tokens are looked up by their SHA256 digest.
type RefreshTokenRepository struct {
	db store.Querier
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(db store.Querier) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a new refresh record.
func (r *RefreshTokenRepository) Create(ctx context.Context, record *auth.RefreshRecord) error {
	_, err := store.Conn(ctx, r.db).Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		record.ID.String(),
		record.UserID.String(),
		record.TokenHash,
		record.IssuedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return oops.Code("REFRESH_TOKEN_CREATE_FAILED").
			With("operation", "insert refresh_token").
			With("user_id", record.UserID.String()).
			Wrap(err)
	}
	return nil
}

// FindByToken retrieves the record for a raw refresh token.
func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (*auth.RefreshRecord, error) {
	row := store.Conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, token_hash, issued_at, expires_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`, auth.HashToken(token))

	var (
		idStr, userIDStr string
		record           auth.RefreshRecord
	)
	err := row.Scan(&idStr, &userIDStr, &record.TokenHash, &record.IssuedAt, &record.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_TOKEN_GET_FAILED").
			With("operation", "get refresh_token by hash").
			Wrap(err)
	}

	if record.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("REFRESH_TOKEN_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if record.UserID, err = ulid.Parse(userIDStr); err != nil {
		return nil, oops.Code("REFRESH_TOKEN_INVALID_ID").With("user_id", userIDStr).Wrap(err)
	}
	return &record, nil
}

// DeleteByToken removes the record for a raw refresh token.
func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	result, err := store.Conn(ctx, r.db).Exec(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1`, auth.HashToken(token))
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_DELETE_FAILED").
			With("operation", "delete refresh_token").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteByUser removes every record of a user.
func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) (int64, error) {
	result, err := store.Conn(ctx, r.db).Exec(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_DELETE_BY_USER_FAILED").
			With("operation", "delete refresh_tokens by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes records that expired before the given time.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := store.Conn(ctx, r.db).Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired refresh_tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*RefreshTokenRepository)(nil)
