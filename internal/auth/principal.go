// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
)

// Outcome is the terminal state of resolving a request's principal.
type Outcome int

// Resolution outcomes.
const (
	// OutcomeRejected means no principal could be established.
	OutcomeRejected Outcome = iota
	// OutcomeAuthenticated means the access token was valid.
	OutcomeAuthenticated
	// OutcomeRenewed means a new access token was issued from the refresh
	// token. The transport must hand it back to the client.
	OutcomeRenewed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeRenewed:
		return "renewed"
	default:
		return "rejected"
	}
}

// Presented holds the raw tokens a request carried. Either may be empty.
type Presented struct {
	AccessToken  string
	RefreshToken string
}

// Resolution is the result of PrincipalResolver.Resolve.
type Resolution struct {
	Outcome   Outcome
	Principal UserSnapshot
	// Access is set only for OutcomeRenewed.
	Access *IssuedToken
	// Err is set only for OutcomeRejected. Its code names the internal
	// reason; callers should show one generic message for all of them.
	Err error
}

// Renewer issues a new access token from a refresh token.
type Renewer interface {
	Renew(ctx context.Context, refreshToken string) (*IssuedToken, *User, error)
}

// PrincipalResolver turns the tokens presented with a request into a
// principal, renewing an expired access token when a refresh token is
// available.
type PrincipalResolver struct {
	tokens       *TokenCodec
	renewer      Renewer
	renewMissing bool
}

// PrincipalOption configures a PrincipalResolver.
type PrincipalOption func(*PrincipalResolver)

// WithMissingAccessRenewal lets a request that carries only a refresh token
// be renewed as if its access token had expired. Without it such a request
// is rejected as TokenInvalid.
func WithMissingAccessRenewal(enabled bool) PrincipalOption {
	return func(r *PrincipalResolver) {
		r.renewMissing = enabled
	}
}

// NewPrincipalResolver creates a PrincipalResolver.
func NewPrincipalResolver(tokens *TokenCodec, renewer Renewer, opts ...PrincipalOption) (*PrincipalResolver, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token codec is required")
	}
	if renewer == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("renewer is required")
	}
	r := &PrincipalResolver{tokens: tokens, renewer: renewer}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve decides the request's principal.
//
// A valid access token authenticates. An expired access token is renewed
// through the refresh token; a missing one only when WithMissingAccessRenewal
// is set. A token with a bad signature is rejected without trying to renew.
func (r *PrincipalResolver) Resolve(ctx context.Context, presented Presented) (res Resolution) {
	ctx, span := tracer.Start(ctx, "auth.resolve_principal")
	defer func() {
		span.SetAttributes(attribute.String("auth.outcome", res.Outcome.String()))
		finishSpan(span, res.Err)
	}()

	switch {
	case presented.AccessToken == "" && presented.RefreshToken == "":
		return rejected(errSession(CodeSessionNotFound))
	case presented.AccessToken == "":
		if !r.renewMissing {
			return rejected(errSession(CodeTokenInvalid))
		}
	default:
		claims, err := r.tokens.DecodeAccess(presented.AccessToken)
		if err == nil {
			return Resolution{Outcome: OutcomeAuthenticated, Principal: claims.User}
		}
		if !errors.Is(err, ErrTokenExpired) {
			return rejected(errSession(CodeTokenInvalid))
		}
		if presented.RefreshToken == "" {
			return rejected(errSession(CodeTokenExpired))
		}
	}

	access, user, err := r.renewer.Renew(ctx, presented.RefreshToken)
	if err != nil {
		return rejected(err)
	}
	return Resolution{Outcome: OutcomeRenewed, Principal: user.Snapshot(), Access: access}
}

func rejected(err error) Resolution {
	return Resolution{Outcome: OutcomeRejected, Err: err}
}
