// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinSecretLength is the shortest HMAC secret NewTokenCodec accepts.
const MinSecretLength = 32

// Sentinels wrapped by Decode errors. Expired is only reported for tokens
// whose signature verified.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

var signingMethod = jwt.SigningMethodHS256

// DefaultLeeway is the clock skew tolerated on time-based claims.
const DefaultLeeway = 5 * time.Second

// TokenConfig holds the secrets and lifetimes for issued tokens. Leeway is
// the clock skew allowed when checking iat and exp.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

// Validate checks that the secrets are usable and distinct and the lifetimes
// are positive.
func (c TokenConfig) Validate() error {
	switch {
	case len(c.AccessSecret) < MinSecretLength:
		return oops.Code("AUTH_CONFIG_INVALID").Errorf("access token secret must be at least %d bytes", MinSecretLength)
	case len(c.RefreshSecret) < MinSecretLength:
		return oops.Code("AUTH_CONFIG_INVALID").Errorf("refresh token secret must be at least %d bytes", MinSecretLength)
	case c.AccessSecret == c.RefreshSecret:
		return oops.Code("AUTH_CONFIG_INVALID").Errorf("access and refresh token secrets must differ")
	case c.AccessTTL <= 0:
		return oops.Code("AUTH_CONFIG_INVALID").Errorf("access token expiration must be positive")
	case c.RefreshTTL <= 0:
		return oops.Code("AUTH_CONFIG_INVALID").Errorf("refresh token expiration must be positive")
	case c.Leeway < 0:
		return oops.Code("AUTH_CONFIG_INVALID").Errorf("clock leeway must not be negative")
	case c.Leeway >= c.AccessTTL:
		return oops.Code("AUTH_CONFIG_INVALID").Errorf("clock leeway must be shorter than the access token expiration")
	}
	return nil
}

// AccessClaims is the payload of an access token: issue and expiry times plus
// a snapshot of the user.
type AccessClaims struct {
	User UserSnapshot `json:"user"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. It only names the user;
// the session store decides whether it is still valid.
type RefreshClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token with the claims it carries.
type IssuedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec signs and verifies access and refresh tokens with separate
// secrets.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	leeway        time.Duration
	now           func() time.Time
}

// TokenCodecOption configures a TokenCodec.
type TokenCodecOption func(*TokenCodec)

// WithClock replaces time.Now for issuing and validating tokens.
func WithClock(now func() time.Time) TokenCodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec validates cfg and returns a codec.
func NewTokenCodec(cfg TokenConfig, opts ...TokenCodecOption) (*TokenCodec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &TokenCodec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		leeway:        cfg.Leeway,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

func (c *TokenCodec) registered(ttl time.Duration, subject string) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

// IssueAccess builds and signs an access token for user.
func (c *TokenCodec) IssueAccess(user *User) (*IssuedToken, error) {
	claims := &AccessClaims{
		User:             user.Snapshot(),
		RegisteredClaims: c.registered(c.accessTTL, user.ID.String()),
	}
	return c.sign(claims, &claims.RegisteredClaims, c.accessSecret)
}

// IssueRefresh builds and signs a refresh token for the user ID.
func (c *TokenCodec) IssueRefresh(userID ulid.ULID) (*IssuedToken, error) {
	claims := &RefreshClaims{
		UserID:           userID.String(),
		RegisteredClaims: c.registered(c.refreshTTL, userID.String()),
	}
	return c.sign(claims, &claims.RegisteredClaims, c.refreshSecret)
}

// EncodeAccess signs claims as an access token.
func (c *TokenCodec) EncodeAccess(claims *AccessClaims) (string, error) {
	return c.encode(claims, c.accessSecret)
}

// EncodeRefresh signs claims as a refresh token.
func (c *TokenCodec) EncodeRefresh(claims *RefreshClaims) (string, error) {
	return c.encode(claims, c.refreshSecret)
}

func (c *TokenCodec) sign(claims jwt.Claims, reg *jwt.RegisteredClaims, secret []byte) (*IssuedToken, error) {
	token, err := c.encode(claims, secret)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{
		Token:     token,
		IssuedAt:  reg.IssuedAt.Time,
		ExpiresAt: reg.ExpiresAt.Time,
	}, nil
}

func (c *TokenCodec) encode(claims jwt.Claims, secret []byte) (string, error) {
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_ENCODE_FAILED").Wrap(err)
	}
	return signed, nil
}

// DecodeAccess verifies an access token and returns its claims.
func (c *TokenCodec) DecodeAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.decode(token, claims, c.accessSecret); err != nil {
		return nil, err
	}
	if claims.User.ID == "" {
		return nil, oops.Code(CodeTokenInvalid).With("reason", "missing user").Wrap(ErrTokenInvalid)
	}
	return claims, nil
}

// DecodeRefresh verifies a refresh token and returns its claims.
func (c *TokenCodec) DecodeRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.decode(token, claims, c.refreshSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, oops.Code(CodeTokenInvalid).With("reason", "missing user id").Wrap(ErrTokenInvalid)
	}
	return claims, nil
}

// decode checks the signature before any time-based claim, so a tampered
// token is always Invalid even when it has also expired.
func (c *TokenCodec) decode(token string, claims jwt.Claims, secret []byte) error {
	if token == "" {
		return oops.Code(CodeTokenInvalid).With("reason", "empty").Wrap(ErrTokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil && parsed.Valid:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return oops.Code(CodeTokenExpired).Wrap(ErrTokenExpired)
	case err != nil:
		return oops.Code(CodeTokenInvalid).With("reason", err.Error()).Wrap(ErrTokenInvalid)
	default:
		return oops.Code(CodeTokenInvalid).Wrap(ErrTokenInvalid)
	}
}
