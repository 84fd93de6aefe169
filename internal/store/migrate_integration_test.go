// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/warden-auth/warden/internal/store"
)

var _ = Describe("PostgreSQL store", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		pool      *pgxpool.Pool
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("warden_test"),
			postgres.WithUsername("warden"),
			postgres.WithPassword("warden"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	Describe("Migrator", func() {
		It("runs the full up, step and down cycle", func() {
			migrator, err := store.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			defer migrator.Close()

			version, dirty, err := migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())
			Expect(dirty).To(BeFalse())

			Expect(migrator.Up()).To(Succeed())
			st, err := migrator.Status()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Version).To(Equal(uint(3)))
			Expect(st.Pending).To(BeEmpty())

			Expect(migrator.Steps(-1)).To(Succeed())
			version, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(2)))

			Expect(migrator.Down()).To(Succeed())
			version, _, err = migrator.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())

			Expect(migrator.Up()).To(Succeed())
		})
	})

	Describe("Connect and Transactor", func() {
		BeforeAll(func() {
			var err error
			pool, err = store.Connect(ctx, store.PoolConfig{URL: connStr, MaxConns: 4, ConnectTimeout: 10 * time.Second})
			Expect(err).NotTo(HaveOccurred())
		})

		It("commits work done through the context transaction", func() {
			tx := store.NewTransactor(pool)
			err := tx.InTransaction(ctx, func(ctx context.Context) error {
				_, err := store.Conn(ctx, pool).Exec(ctx,
					`INSERT INTO roles (id, name) VALUES ('01TXCOMMIT0000000000000000', 'tx-commit')`)
				return err
			})
			Expect(err).NotTo(HaveOccurred())

			var name string
			Expect(pool.QueryRow(ctx, `SELECT name FROM roles WHERE id = '01TXCOMMIT0000000000000000'`).Scan(&name)).To(Succeed())
			Expect(name).To(Equal("tx-commit"))
		})

		It("rolls back when the function fails", func() {
			tx := store.NewTransactor(pool)
			err := tx.InTransaction(ctx, func(ctx context.Context) error {
				if _, err := store.Conn(ctx, pool).Exec(ctx,
					`INSERT INTO roles (id, name) VALUES ('01TXROLLBACK00000000000000', 'tx-rollback')`); err != nil {
					return err
				}
				return errors.New("force rollback")
			})
			Expect(err).To(HaveOccurred())

			err = pool.QueryRow(ctx, `SELECT name FROM roles WHERE id = '01TXROLLBACK00000000000000'`).Scan(new(string))
			Expect(errors.Is(err, pgx.ErrNoRows)).To(BeTrue())
		})

		It("rolls back when the context is cancelled mid-transaction", func() {
			tx := store.NewTransactor(pool)
			cctx, cancel := context.WithCancel(ctx)
			err := tx.InTransaction(cctx, func(txCtx context.Context) error {
				_, err := store.Conn(txCtx, pool).Exec(txCtx,
					`INSERT INTO roles (id, name) VALUES ('01TXCANCEL0000000000000000', 'tx-cancel')`)
				cancel()
				return err
			})
			Expect(err).To(HaveOccurred())

			err = pool.QueryRow(ctx, `SELECT name FROM roles WHERE id = '01TXCANCEL0000000000000000'`).Scan(new(string))
			Expect(errors.Is(err, pgx.ErrNoRows)).To(BeTrue())
		})
	})
})
