// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/observability"
)

const principalKey = "warden.principal"

// PrincipalFrom returns the principal established by PrincipalMiddleware.
func PrincipalFrom(c echo.Context) (auth.UserSnapshot, bool) {
	p, ok := c.Get(principalKey).(auth.UserSnapshot)
	return p, ok
}

// presented collects the tokens carried by the request. A bearer header
// takes precedence over the access cookie.
func presented(c echo.Context) auth.Presented {
	p := auth.Presented{
		AccessToken:  cookieValue(c, AccessCookie),
		RefreshToken: cookieValue(c, RefreshCookie),
	}
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok && token != "" {
			p.AccessToken = token
		}
	}
	return p
}

// principalMiddleware authenticates the request, renewing the access token
// through the refresh cookie when needed.
func (s *Server) principalMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		res := s.principals.Resolve(c.Request().Context(), presented(c))
		switch res.Outcome {
		case auth.OutcomeAuthenticated:
		case auth.OutcomeRenewed:
			s.cookies.setRenewed(c, res.Access.Token)
		default:
			return res.Err
		}
		c.Set(principalKey, res.Principal)
		return next(c)
	}
}

func principalID(p auth.UserSnapshot) (ulid.ULID, error) {
	id, err := p.UserID()
	if err != nil {
		return ulid.ULID{}, oops.Code(auth.CodeTokenInvalid).With("id", p.ID).Errorf("invalid or expired session")
	}
	return id, nil
}

// requirePermission rejects principals that hold no permission matching
// pattern. It must run after principalMiddleware.
func (s *Server) requirePermission(pattern string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return echo.ErrUnauthorized
			}
			userID, err := principalID(p)
			if err != nil {
				return err
			}
			allowed, err := s.permissions.HasPermissionKey(c.Request().Context(), userID, pattern)
			if err != nil {
				return err
			}
			if !allowed {
				s.logger.InfoContext(c.Request().Context(), "permission denied",
					"user_id", p.ID, "pattern", pattern, "path", c.Path())
				return echo.NewHTTPError(http.StatusForbidden, msgForbidden)
			}
			return next(c)
		}
	}
}

// metricsMiddleware records request counts and latency by route.
func metricsMiddleware(m *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let the error handler pick the status before it is recorded.
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// requestLogger logs every completed request at debug level.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.DebugContext(c.Request().Context(), "http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"latency", time.Since(start),
				"remote_ip", c.RealIP(),
			)
			return nil
		}
	}
}
