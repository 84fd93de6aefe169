// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/warden-auth/warden/internal/access"
	"github.com/warden-auth/warden/internal/seed"
	"github.com/warden-auth/warden/internal/web"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

var _ = Describe("HTTP API", func() {
	var (
		server *httptest.Server
		client *http.Client
	)

	post := func(c *http.Client, path string, body any) (*http.Response, envelope) {
		payload, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		resp, err := c.Post(server.URL+path, "application/json", bytes.NewReader(payload))
		Expect(err).NotTo(HaveOccurred())
		return resp, decode(resp)
	}

	get := func(c *http.Client, path string) (*http.Response, envelope) {
		resp, err := c.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		return resp, decode(resp)
	}

	newClient := func() *http.Client {
		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		return &http.Client{Jar: jar, Timeout: 10 * time.Second}
	}

	BeforeEach(func() {
		resetDatabase()
		catalog, err := access.DefaultCatalog()
		Expect(err).NotTo(HaveOccurred())
		_, err = env.Seeder.Run(env.ctx, catalog, seed.Options{
			GrantRootRole:    true,
			SeedRootUser:     true,
			RootUserEmail:    "root@example.com",
			RootUserPassword: "change-me-now",
		})
		Expect(err).NotTo(HaveOccurred())
		createUser("carol@example.com", "carol-password")

		clock := &testClock{now: time.Now().UTC()}
		manager, principals := newSessions(clock)
		api, err := web.NewServer(web.Deps{
			Sessions:    manager,
			Principals:  principals,
			Permissions: env.Resolver,
			Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		}, web.Options{
			Version:    "integration",
			AccessTTL:  manager.Tokens().AccessTTL(),
			RefreshTTL: manager.Tokens().RefreshTTL(),
		})
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(api)
		client = newClient()
	})

	AfterEach(func() {
		server.Close()
	})

	It("runs a login, me and logout round trip on cookies", func() {
		resp, body := post(client, "/api/auth/login", map[string]string{
			"email": "root@example.com", "password": "change-me-now",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body.Success).To(BeTrue())

		resp, body = get(client, "/api/auth/me")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var me struct {
			User struct {
				Email string `json:"email"`
			} `json:"user"`
			Permissions []string `json:"permissions"`
		}
		Expect(json.Unmarshal(body.Data, &me)).To(Succeed())
		Expect(me.User.Email).To(Equal("root@example.com"))
		Expect(me.Permissions).To(ContainElement(web.PermissionRevokeSessions))

		resp, _ = post(client, "/api/auth/logout", map[string]string{})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp, body = get(client, "/api/auth/me")
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(body.Error.Code).To(Equal("INVALID_SESSION"))
	})

	It("rejects bad credentials with a generic error", func() {
		resp, body := post(client, "/api/auth/login", map[string]string{
			"email": "root@example.com", "password": "nope",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(body.Error.Code).To(Equal("INVALID_CREDENTIALS"))
	})

	It("lets an administrator revoke another session", func() {
		carol := newClient()
		resp, _ := post(carol, "/api/auth/login", map[string]string{
			"email": "carol@example.com", "password": "carol-password",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var refresh string
		for _, c := range resp.Cookies() {
			if c.Name == web.RefreshCookie {
				refresh = c.Value
			}
		}
		Expect(refresh).NotTo(BeEmpty())

		resp, _ = post(carol, "/api/auth/revoke", map[string]string{"token": refresh})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

		resp, _ = post(client, "/api/auth/login", map[string]string{
			"email": "root@example.com", "password": "change-me-now",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp, _ = post(client, "/api/auth/revoke", map[string]string{"token": refresh})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp, _ = post(client, "/api/auth/revoke", map[string]string{"token": refresh})
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})
})

func decode(resp *http.Response) envelope {
	defer func() { _ = resp.Body.Close() }()
	var body envelope
	Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
	return body
}
