// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/pkg/errutil"
)

type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	stepsCalled    bool
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDBErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Force(_ int) error            { return m.forceErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDBErr }

func (m *mockMigrate) Steps(_ int) error {
	m.stepsCalled = true
	return m.stepsErr
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@host:5432/db", "pgx5://u:p@host:5432/db"},
		{"postgresql://u:p@host/db?sslmode=disable", "pgx5://u:p@host/db?sslmode=disable"},
		{"pgx5://host/db", "pgx5://host/db"},
		{"badscheme://host/db", "badscheme://host/db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, migrateURL(tt.in))
		})
	}
}

func TestNewMigrator_InvalidScheme(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrator_NoChangeIsSuccess(t *testing.T) {
	m := &Migrator{m: &mockMigrate{
		upErr:    migrate.ErrNoChange,
		downErr:  migrate.ErrNoChange,
		stepsErr: migrate.ErrNoChange,
	}}
	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
	require.NoError(t, m.Steps(-1))
}

func TestMigrator_ErrorCodes(t *testing.T) {
	boom := errors.New("database locked")
	tests := []struct {
		name string
		mock *mockMigrate
		call func(*Migrator) error
		code string
	}{
		{"up", &mockMigrate{upErr: boom}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &mockMigrate{downErr: boom}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps", &mockMigrate{stepsErr: boom}, func(m *Migrator) error { return m.Steps(2) }, "MIGRATION_STEPS_FAILED"},
		{"force", &mockMigrate{forceErr: boom}, func(m *Migrator) error { return m.Force(2) }, "MIGRATION_FORCE_FAILED"},
		{"force negative", &mockMigrate{}, func(m *Migrator) error { return m.Force(-1) }, "INVALID_VERSION"},
		{"version", &mockMigrate{versionErr: boom}, func(m *Migrator) error { _, _, err := m.Version(); return err }, "MIGRATION_VERSION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errutil.AssertErrorCode(t, tt.call(&Migrator{m: tt.mock}), tt.code)
		})
	}
}

func TestMigrator_StepsZeroSkipsDriver(t *testing.T) {
	mm := &mockMigrate{stepsErr: errors.New("should not be called")}
	require.NoError(t, (&Migrator{m: mm}).Steps(0))
	assert.False(t, mm.stepsCalled)
}

func TestMigrator_Version(t *testing.T) {
	t.Run("nil version is zero", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(0), v)
		assert.False(t, dirty)
	})

	t.Run("dirty state is reported", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &mockMigrate{versionVal: 2, dirty: true}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})
}

func TestMigrator_Status(t *testing.T) {
	m := &Migrator{m: &mockMigrate{versionVal: 2}}

	st, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, uint(2), st.Version)
	assert.Equal(t, "000002_refresh_tokens", st.Name)
	assert.Equal(t, []uint{1, 2}, st.Applied)
	assert.Equal(t, []uint{3}, st.Pending)
}

func TestMigrator_StatusOnEmptyDatabase(t *testing.T) {
	m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}

	st, err := m.Status()
	require.NoError(t, err)
	assert.Empty(t, st.Name)
	assert.Empty(t, st.Applied)
	assert.Equal(t, []uint{1, 2, 3}, st.Pending)
}

func TestMigrator_Close(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		require.NoError(t, (&Migrator{m: &mockMigrate{}}).Close())
	})

	t.Run("source error", func(t *testing.T) {
		err := (&Migrator{m: &mockMigrate{closeSourceErr: errors.New("src")}}).Close()
		errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
		errutil.AssertErrorContext(t, err, "component", "source")
	})

	t.Run("database error", func(t *testing.T) {
		err := (&Migrator{m: &mockMigrate{closeDBErr: errors.New("db")}}).Close()
		errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
		errutil.AssertErrorContext(t, err, "component", "database")
	})

	t.Run("both errors keep the database error", func(t *testing.T) {
		err := (&Migrator{m: &mockMigrate{closeSourceErr: errors.New("src"), closeDBErr: errors.New("db")}}).Close()
		errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
		errutil.AssertErrorContext(t, err, "database_error", "db")
	})
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(3)
	require.NoError(t, err)
	assert.Equal(t, "000003_access_control", name)

	name, err = MigrationName(999)
	require.NoError(t, err)
	assert.Empty(t, name)
}
