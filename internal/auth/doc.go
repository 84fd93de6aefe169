// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package auth provides authentication for Warden.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates an enabled User with a normalized email
//   - NewRefreshRecord - creates the stored half of a refresh token
//
// # Tokens
//
// TokenCodec issues and verifies HS256 tokens. Access and refresh tokens are
// signed with different secrets. Decoding tells an expired token apart from
// an invalid one; only the former can lead to renewal.
//
// # Services
//
//   - SessionManager - login, logout, administrative revoke and renewal
//   - PrincipalResolver - per-request authentication with transparent renewal
//
// Services are created with New* constructors that validate dependencies.
// Failures leaving these services carry one of the Code* error codes and a
// generic message; the detailed cause is only logged.
package auth
