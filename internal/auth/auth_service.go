// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warden-auth/warden/internal/observability"
	"github.com/warden-auth/warden/pkg/errutil"
)

var tracer = otel.Tracer("warden/auth")

// dummyPasswordHash is verified against when the user is unknown or disabled
// so every login attempt costs one argon2id computation.
// It is not a credential and never matches.
//
//nolint:gosec // G101: intentionally fake hash
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// TokenPair is the result of a successful login.
type TokenPair struct {
	User    *User
	Access  *IssuedToken
	Refresh *IssuedToken
}

// SessionManager logs users in and out and renews access tokens.
type SessionManager struct {
	users    UserRepository
	sessions SessionStore
	hasher   PasswordHasher
	tokens   *TokenCodec
	logger   *slog.Logger
}

// NewSessionManager creates a SessionManager that logs to slog.Default().
func NewSessionManager(users UserRepository, sessions SessionStore, hasher PasswordHasher, tokens *TokenCodec) (*SessionManager, error) {
	return NewSessionManagerWithLogger(users, sessions, hasher, tokens, nil)
}

// NewSessionManagerWithLogger creates a SessionManager. A nil logger means
// slog.Default().
func NewSessionManagerWithLogger(users UserRepository, sessions SessionStore, hasher PasswordHasher, tokens *TokenCodec, logger *slog.Logger) (*SessionManager, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token codec is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
	}, nil
}

// Tokens returns the codec used to issue and verify tokens.
func (s *SessionManager) Tokens() *TokenCodec {
	return s.tokens
}

// Login verifies credentials and issues an access and refresh token. The
// refresh record is stored before the tokens are returned.
//
// Unknown email, disabled user and wrong password produce the same error and
// cost the same hash computation.
func (s *SessionManager) Login(ctx context.Context, email, password string) (pair *TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() {
		finishSpan(span, err)
		observability.RecordLogin(resultOf(err))
	}()

	user, reason, err := s.lookupForLogin(ctx, email)
	if err != nil {
		return nil, err
	}

	targetHash := dummyPasswordHash
	if user != nil {
		targetHash = user.PasswordHash
	}

	valid, verifyErr := s.hasher.Verify(ctx, password, targetHash)
	if verifyErr != nil {
		if user == nil {
			// The dummy hash is well-formed, so this is cancellation or a
			// saturated hasher.
			s.logger.DebugContext(ctx, "login rejected", "reason", reason, "error", verifyErr)
			return nil, errCredentialsInvalid()
		}
		return nil, s.internal(ctx, "verify password", verifyErr)
	}
	if user == nil || !valid {
		if user != nil {
			reason = "wrong password"
		}
		s.logger.DebugContext(ctx, "login rejected", "reason", reason)
		return nil, errCredentialsInvalid()
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return s.issuePair(ctx, user)
}

// lookupForLogin returns the user when it may log in. A nil user with a nil
// error means the login must be rejected for the returned reason.
func (s *SessionManager) lookupForLogin(ctx context.Context, email string) (*User, string, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, "malformed email", nil
	}
	user, err := s.users.GetByEmail(ctx, normalized)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, "unknown email", nil
	case err != nil:
		return nil, "", s.internal(ctx, "get user by email", err)
	case !user.Enabled:
		return nil, "user disabled", nil
	}
	return user, "", nil
}

func (s *SessionManager) issuePair(ctx context.Context, user *User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, s.internal(ctx, "issue access token", err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, s.internal(ctx, "issue refresh token", err)
	}

	record, err := NewRefreshRecord(user.ID, refresh.Token, refresh.IssuedAt, refresh.ExpiresAt)
	if err != nil {
		return nil, s.internal(ctx, "build refresh record", err)
	}
	if err := s.sessions.Create(ctx, record); err != nil {
		return nil, s.internal(ctx, "persist refresh record", err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String(), "session_id", record.ID.String())
	return &TokenPair{User: user, Access: access, Refresh: refresh}, nil
}

// Logout revokes the caller's own refresh token.
func (s *SessionManager) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.logout")
	defer func() {
		finishSpan(span, err)
		observability.RecordLogout("logout", resultOf(err))
	}()
	return s.deleteToken(ctx, refreshToken)
}

// Revoke revokes an arbitrary refresh token on behalf of an administrator.
func (s *SessionManager) Revoke(ctx context.Context, refreshToken string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.revoke")
	defer func() {
		finishSpan(span, err)
		observability.RecordLogout("revoke", resultOf(err))
	}()
	return s.deleteToken(ctx, refreshToken)
}

func (s *SessionManager) deleteToken(ctx context.Context, token string) error {
	if token == "" {
		return errSession(CodeSessionNotFound)
	}
	n, err := s.sessions.DeleteByToken(ctx, token)
	if err != nil {
		return s.internal(ctx, "delete refresh token", err)
	}
	if n == 0 {
		return errSession(CodeSessionNotFound)
	}
	return nil
}

// RevokeAll revokes every refresh token of the given user.
func (s *SessionManager) RevokeAll(ctx context.Context, user *User) (int64, error) {
	n, err := s.sessions.DeleteByUser(ctx, user.ID)
	if err != nil {
		return 0, s.internal(ctx, "delete user refresh tokens", err)
	}
	observability.RecordLogout("revoke_all", observability.ResultSuccess)
	return n, nil
}

// PurgeExpired removes refresh records that have expired.
func (s *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, s.internal(ctx, "delete expired refresh tokens", err)
	}
	return n, nil
}

// Renew issues a new access token from a refresh token. The refresh token
// must have a stored record, a valid signature and an enabled owner. It is
// not rotated.
func (s *SessionManager) Renew(ctx context.Context, refreshToken string) (access *IssuedToken, user *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.renew")
	defer func() {
		finishSpan(span, err)
		observability.RecordRenewal(resultOf(err))
	}()

	if refreshToken == "" {
		return nil, nil, errSession(CodeSessionNotFound)
	}

	if _, err := s.sessions.FindByToken(ctx, refreshToken); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, errSession(CodeSessionNotFound)
		}
		return nil, nil, s.internal(ctx, "find refresh token", err)
	}

	claims, err := s.tokens.DecodeRefresh(refreshToken)
	if err != nil {
		code := CodeTokenInvalid
		if errors.Is(err, ErrTokenExpired) {
			code = CodeTokenExpired
		}
		return nil, nil, errSession(code)
	}

	user, err = s.loadEnabledUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}

	access, err = s.tokens.IssueAccess(user)
	if err != nil {
		return nil, nil, s.internal(ctx, "issue access token", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	return access, user, nil
}

func (s *SessionManager) loadEnabledUser(ctx context.Context, rawID string) (*User, error) {
	id, err := UserSnapshot{ID: rawID}.UserID()
	if err != nil {
		return nil, errSession(CodeTokenInvalid)
	}
	user, err := s.users.GetByID(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, errSession(CodeUserUnavailable)
	case err != nil:
		return nil, s.internal(ctx, "get user by id", err)
	case !user.Enabled:
		return nil, errSession(CodeUserUnavailable)
	}
	return user, nil
}

// internal logs err in full and returns an opaque error.
func (s *SessionManager) internal(ctx context.Context, op string, err error) error {
	errutil.LogErrorContext(ctx, s.logger, "auth operation failed", oops.With("operation", op).Wrap(err))
	return errInternal(op)
}

// finishSpan ends span, tagging the failure reason. Only internal failures
// mark the span as errored; rejections are normal traffic.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		reason := ReasonOf(err)
		span.SetAttributes(attribute.String("auth.reason", string(reason)))
		if reason == ReasonInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return observability.ResultSuccess
	case ReasonOf(err) == ReasonInternal:
		return observability.ResultError
	default:
		return observability.ResultRejected
	}
}
