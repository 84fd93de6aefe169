// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"

	"github.com/warden-auth/warden/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes surfaced by SessionManager and PrincipalResolver. Lower layers
// use their own codes; these are the only ones callers should branch on.
const (
	CodeCredentialsInvalid = "AUTH_CREDENTIALS_INVALID"
	CodeTokenInvalid       = "AUTH_TOKEN_INVALID"
	CodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	CodeSessionNotFound    = "AUTH_SESSION_NOT_FOUND"
	CodeUserUnavailable    = "AUTH_USER_UNAVAILABLE"
	CodeInternal           = "AUTH_INTERNAL"
)

// Reason is the coarse classification of an authentication failure.
type Reason string

// Failure reasons, one per error code above.
const (
	ReasonNone               Reason = ""
	ReasonCredentialsInvalid Reason = "credentials_invalid"
	ReasonTokenInvalid       Reason = "token_invalid"
	ReasonTokenExpired       Reason = "token_expired"
	ReasonSessionNotFound    Reason = "session_not_found"
	ReasonUserUnavailable    Reason = "user_unavailable"
	ReasonInternal           Reason = "internal"
)

var reasonByCode = map[string]Reason{
	CodeCredentialsInvalid: ReasonCredentialsInvalid,
	CodeTokenInvalid:       ReasonTokenInvalid,
	CodeTokenExpired:       ReasonTokenExpired,
	CodeSessionNotFound:    ReasonSessionNotFound,
	CodeUserUnavailable:    ReasonUserUnavailable,
	CodeInternal:           ReasonInternal,
}

// ReasonOf classifies err. Errors without an auth code are Internal.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	if r, ok := reasonByCode[errutil.Code(err)]; ok {
		return r
	}
	return ReasonInternal
}

// IsCredentialsInvalid reports whether err is a login rejection.
func IsCredentialsInvalid(err error) bool {
	return ReasonOf(err) == ReasonCredentialsInvalid
}

// IsSessionFailure reports whether err rejects a session (logout, revoke or
// renewal) for a reason the caller caused rather than a server fault.
func IsSessionFailure(err error) bool {
	switch ReasonOf(err) {
	case ReasonTokenInvalid, ReasonTokenExpired, ReasonSessionNotFound, ReasonUserUnavailable:
		return true
	default:
		return false
	}
}

// The visible messages are deliberately identical within each group.
func errCredentialsInvalid() error {
	return oops.Code(CodeCredentialsInvalid).Errorf("invalid credentials")
}

func errSession(code string) error {
	return oops.Code(code).Errorf("invalid or expired session")
}

func errInternal(op string) error {
	return oops.Code(CodeInternal).With("operation", op).Errorf("internal error")
}
