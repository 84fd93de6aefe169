// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationFile is one embedded up migration.
type migrationFile struct {
	version uint
	name    string
}

var embeddedMigrations = sync.OnceValues(scanMigrations)

// scanMigrations lists the up migrations in version order. Files that do not
// start with a six digit version are skipped with a warning.
func scanMigrations() ([]migrationFile, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	var files []migrationFile
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(base, "%06d", &version); err != nil {
			slog.Warn("skipping migration with unexpected name", "filename", entry.Name(), "error", err)
			continue
		}
		files = append(files, migrationFile{version: version, name: base})
	}
	slices.SortFunc(files, func(a, b migrationFile) int { return int(a.version) - int(b.version) })
	return files, nil
}

// allMigrationVersions returns the embedded versions in ascending order.
func allMigrationVersions() ([]uint, error) {
	files, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}
	out := make([]uint, len(files))
	for i, f := range files {
		out[i] = f.version
	}
	return out, nil
}

// MigrationName returns the NNNNNN_name of an embedded migration, or "" if
// no migration has that version.
func MigrationName(version uint) (string, error) {
	files, err := embeddedMigrations()
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.version == version {
			return f.name, nil
		}
	}
	return "", nil
}

// LatestVersion is the highest embedded migration version.
func LatestVersion() (uint, error) {
	files, err := embeddedMigrations()
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}
	return files[len(files)-1].version, nil
}

// CheckSchema reports whether the database behind q has every embedded
// migration applied and is not dirty. It reads golang-migrate's bookkeeping
// table directly so it can run on the serving pool.
func CheckSchema(ctx context.Context, q Querier) error {
	latest, err := LatestVersion()
	if err != nil {
		return err
	}

	var (
		version int64
		dirty   bool
	)
	err = q.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable:
		return oops.Code("DB_SCHEMA_OUTDATED").With("latest", latest).Errorf("no migrations have been applied")
	case err != nil:
		return oops.Code("DB_SCHEMA_CHECK_FAILED").Wrap(err)
	case dirty:
		return oops.Code("DB_SCHEMA_DIRTY").With("version", version).Errorf("migration %d is dirty", version)
	case uint(version) < latest:
		return oops.Code("DB_SCHEMA_OUTDATED").
			With("version", version).
			With("latest", latest).
			Errorf("schema is at version %d, expected %d", version, latest)
	}
	return nil
}
