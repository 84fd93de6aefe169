// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/pkg/errutil"
)

// Visible messages. Every session failure and every login failure reads the
// same regardless of cause.
const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidSession     = "invalid or expired session"
	msgForbidden          = "permission denied"
	msgInternal           = "internal server error"
)

// errorHandler renders every error returned by a handler or middleware as
// an Envelope.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, code, message := classify(err)
		if status >= http.StatusInternalServerError {
			errutil.LogErrorContext(c.Request().Context(), logger, "request failed", err)
		} else {
			logger.DebugContext(c.Request().Context(), "request rejected",
				"path", c.Path(), "status", status, "code", errutil.Code(err))
		}
		if writeErr := fail(c, status, code, message); writeErr != nil {
			logger.ErrorContext(c.Request().Context(), "write error response", "error", writeErr)
		}
	}
}

// classify checks our own codes before echo's HTTPError so a coded error
// that happens to wrap one keeps its public message.
func classify(err error) (status int, code, message string) {
	switch errutil.Code(err) {
	case CodeValidationFailed:
		return http.StatusBadRequest, CodeValidationFailed, err.Error()
	case CodeBadRequest:
		return http.StatusBadRequest, CodeBadRequest, "malformed request body"
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return classifyHTTP(httpErr)
	}

	switch auth.ReasonOf(err) {
	case auth.ReasonCredentialsInvalid:
		return http.StatusUnauthorized, CodeInvalidCredentials, msgInvalidCredentials
	case auth.ReasonTokenInvalid, auth.ReasonTokenExpired, auth.ReasonSessionNotFound, auth.ReasonUserUnavailable:
		return http.StatusUnauthorized, CodeInvalidSession, msgInvalidSession
	}
	return http.StatusInternalServerError, CodeInternal, msgInternal
}

func classifyHTTP(e *echo.HTTPError) (status int, code, message string) {
	message = http.StatusText(e.Code)
	if s, ok := e.Message.(string); ok && s != "" {
		message = s
	}
	switch e.Code {
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusUnauthorized:
		return e.Code, CodeInvalidSession, msgInvalidSession
	case http.StatusForbidden:
		code = CodeForbidden
	default:
		if e.Code >= http.StatusInternalServerError {
			return e.Code, CodeInternal, msgInternal
		}
		code = CodeBadRequest
	}
	return e.Code, code, message
}
