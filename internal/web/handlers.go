// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package web

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/pkg/errutil"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type revokeRequest struct {
	Token string `json:"token" validate:"required"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type meResponse struct {
	User        auth.UserSnapshot `json:"user"`
	Permissions []string          `json:"permissions"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleStatus(c echo.Context) error {
	return respond(c, http.StatusOK, statusResponse{Status: "ok", Version: s.version})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		if errutil.Code(err) == CodeValidationFailed {
			// A missing field reads like any other failed login.
			return oops.Code(auth.CodeCredentialsInvalid).Errorf("invalid credentials")
		}
		return err
	}

	pair, err := s.sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	s.cookies.setLogin(c, pair.Access.Token, pair.Refresh.Token)
	return respond(c, http.StatusOK, userResponse{
		ID:        pair.User.ID.String(),
		Email:     pair.User.Email,
		FirstName: pair.User.FirstName,
		LastName:  pair.User.LastName,
	})
}

// handleLogout clears the cookies whether or not the refresh token was
// still known.
func (s *Server) handleLogout(c echo.Context) error {
	token := cookieValue(c, RefreshCookie)
	s.cookies.clear(c)
	if err := s.sessions.Logout(c.Request().Context(), token); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil)
}

func (s *Server) handleRevoke(c echo.Context) error {
	var req revokeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := s.sessions.Revoke(c.Request().Context(), req.Token); err != nil {
		if auth.ReasonOf(err) == auth.ReasonSessionNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "refresh token not found")
		}
		return err
	}
	p, _ := PrincipalFrom(c)
	s.logger.InfoContext(c.Request().Context(), "refresh token revoked", "by_user_id", p.ID)
	return respond(c, http.StatusOK, nil)
}

func (s *Server) handleMe(c echo.Context) error {
	p, ok := PrincipalFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	userID, err := principalID(p)
	if err != nil {
		return err
	}
	perms, err := s.permissions.EffectivePermissions(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, meResponse{User: p, Permissions: access.Keys(perms)})
}
