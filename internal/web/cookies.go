// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package web

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Cookie names carrying the tokens.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

type cookieJar struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (j cookieJar) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// setLogin sets both cookies after a login. The access cookie lives for the
// browser session; the refresh cookie lives as long as the refresh token.
func (j cookieJar) setLogin(c echo.Context, access, refresh string) {
	c.SetCookie(j.cookie(AccessCookie, access, 0))
	c.SetCookie(j.cookie(RefreshCookie, refresh, seconds(j.refreshTTL)))
}

// setRenewed replaces the access cookie after a renewal.
func (j cookieJar) setRenewed(c echo.Context, access string) {
	c.SetCookie(j.cookie(AccessCookie, access, seconds(j.accessTTL)))
}

func (j cookieJar) clear(c echo.Context) {
	c.SetCookie(j.cookie(AccessCookie, "", -1))
	c.SetCookie(j.cookie(RefreshCookie, "", -1))
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}

func cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
