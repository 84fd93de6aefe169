// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package web serves Warden's JSON API over HTTP. Tokens travel in
// HTTP-only cookies; an expired access cookie is renewed transparently on
// any authenticated route.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/observability"
)

// PermissionRevokeSessions guards the administrative revoke endpoint.
const PermissionRevokeSessions = "auth:revoke"

// Sessions logs users in and out.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Revoke(ctx context.Context, refreshToken string) error
}

// Principals resolves the principal of a request.
type Principals interface {
	Resolve(ctx context.Context, presented auth.Presented) auth.Resolution
}

// Permissions answers permission checks for a principal.
type Permissions interface {
	EffectivePermissions(ctx context.Context, userID ulid.ULID) ([]access.Permission, error)
	HasPermissionKey(ctx context.Context, userID ulid.ULID, pattern string) (bool, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Sessions    Sessions
	Principals  Principals
	Permissions Permissions
	// Metrics is optional.
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Options configure a Server.
type Options struct {
	Version       string
	SecureCookies bool
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Server is the HTTP API.
type Server struct {
	echo        *echo.Echo
	sessions    Sessions
	principals  Principals
	permissions Permissions
	cookies     cookieJar
	logger      *slog.Logger
	version     string

	httpServer *http.Server
	listener   net.Listener
	running    atomic.Bool
}

// NewServer builds the router.
func NewServer(d Deps, opts Options) (*Server, error) {
	switch {
	case d.Sessions == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("sessions are required")
	case d.Principals == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("principal resolver is required")
	case d.Permissions == nil:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("permission resolver is required")
	case opts.AccessTTL <= 0 || opts.RefreshTTL <= 0:
		return nil, oops.Code("WEB_INVALID_SERVER").Errorf("token lifetimes must be positive")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:        echo.New(),
		sessions:    d.Sessions,
		principals:  d.Principals,
		permissions: d.Permissions,
		cookies: cookieJar{
			secure:     opts.SecureCookies,
			accessTTL:  opts.AccessTTL,
			refreshTTL: opts.RefreshTTL,
		},
		logger:  logger,
		version: opts.Version,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler(logger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if d.Metrics != nil {
		e.Use(metricsMiddleware(d.Metrics))
	}
	e.Use(requestLogger(logger))

	api := e.Group("/api")
	api.GET("/status", s.handleStatus)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/logout", s.handleLogout)
	authGroup.POST("/revoke", s.handleRevoke, s.principalMiddleware, s.requirePermission(PermissionRevokeSessions))
	authGroup.GET("/me", s.handleMe, s.principalMiddleware)

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr and serves in the background. The returned channel
// reports serve errors and is closed when the server stops.
func (s *Server) Start(addr string) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := s.httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("http server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests. Stopping a server that is not running is
// a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("WEB_SHUTDOWN_FAILED").Wrap(err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Addr returns the listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
