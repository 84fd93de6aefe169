// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/store"
	"github.com/warden-auth/warden/pkg/errutil"
)

type fakeMigrator struct {
	calls    []string
	steps    int
	forced   int
	version  uint
	dirty    bool
	status   *store.MigrationStatus
	upErr    error
	closeErr error
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	f.version = 3
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	f.version = 0
	return nil
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, f.dirty, nil
}

func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = v
	return nil
}

func (f *fakeMigrator) Status() (*store.MigrationStatus, error) {
	return f.status, nil
}

func (f *fakeMigrator) Close() error {
	f.calls = append(f.calls, "close")
	return f.closeErr
}

// run executes the CLI against m and returns stdout.
func run(t *testing.T, m *fakeMigrator, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var gotURL string
	cmd := NewRootCmd(Deps{
		MigratorFactory: func(url string) (Migrator, error) {
			gotURL = url
			return m, nil
		},
	})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil && m != nil && len(m.calls) > 0 {
		assert.Equal(t, "postgres://warden@localhost/warden", gotURL)
	}
	return out.String(), err
}

func withDatabase(t *testing.T) {
	t.Helper()
	t.Setenv("WARDEN_DATABASE__URL", "postgres://warden@localhost/warden")
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd(Deps{})

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "seed", "purge", "version"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("database-url"))
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, nil, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "warden dev")
	assert.Contains(t, out, "commit: unknown")
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("WARDEN_DATABASE__URL", "")
	m := &fakeMigrator{}

	_, err := run(t, m, "migrate", "up")

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Empty(t, m.calls)
}

func TestMigrate_Up(t *testing.T) {
	withDatabase(t)
	m := &fakeMigrator{}

	out, err := run(t, m, "migrate", "up")

	require.NoError(t, err)
	assert.Equal(t, []string{"up", "close"}, m.calls)
	assert.Contains(t, out, "schema version 3")
}

func TestMigrate_BareCommandRunsUp(t *testing.T) {
	withDatabase(t)
	m := &fakeMigrator{}

	_, err := run(t, m, "migrate")

	require.NoError(t, err)
	assert.Equal(t, []string{"up", "close"}, m.calls)
}

func TestMigrate_DatabaseURLFlag(t *testing.T) {
	t.Setenv("WARDEN_DATABASE__URL", "postgres://env@localhost/other")
	m := &fakeMigrator{}

	_, err := run(t, m, "migrate", "up", "--database-url", "postgres://warden@localhost/warden")

	require.NoError(t, err)
}

func TestMigrate_Down(t *testing.T) {
	t.Run("default rolls back one", func(t *testing.T) {
		withDatabase(t)
		m := &fakeMigrator{version: 3}

		_, err := run(t, m, "migrate", "down")

		require.NoError(t, err)
		assert.Equal(t, -1, m.steps)
	})

	t.Run("steps", func(t *testing.T) {
		withDatabase(t)
		m := &fakeMigrator{version: 3}

		_, err := run(t, m, "migrate", "down", "--steps", "2")

		require.NoError(t, err)
		assert.Equal(t, -2, m.steps)
	})

	t.Run("all", func(t *testing.T) {
		withDatabase(t)
		m := &fakeMigrator{version: 3}

		out, err := run(t, m, "migrate", "down", "--steps", "0")

		require.NoError(t, err)
		assert.Equal(t, []string{"down", "close"}, m.calls)
		assert.Contains(t, out, "schema version 0")
	})

	t.Run("negative", func(t *testing.T) {
		withDatabase(t)
		m := &fakeMigrator{}

		_, err := run(t, m, "migrate", "down", "--steps=-1")

		errutil.AssertErrorCode(t, err, "INVALID_STEPS")
		assert.Equal(t, []string{"close"}, m.calls)
	})
}

func TestMigrate_Status(t *testing.T) {
	withDatabase(t)
	m := &fakeMigrator{status: &store.MigrationStatus{
		Version: 1,
		Name:    "000001_users",
		Applied: []uint{1},
		Pending: []uint{2, 3},
	}}

	out, err := run(t, m, "migrate", "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1 (000001_users)")
	assert.Contains(t, out, "Pending: 2")
	assert.Contains(t, out, "  000003")
}

func TestMigrate_Version(t *testing.T) {
	withDatabase(t)
	m := &fakeMigrator{version: 2, dirty: true}

	out, err := run(t, m, "migrate", "version")

	require.NoError(t, err)
	assert.Equal(t, "2 (dirty)\n", out)
}

func TestMigrate_Force(t *testing.T) {
	withDatabase(t)
	m := &fakeMigrator{}

	out, err := run(t, m, "migrate", "force", "2")

	require.NoError(t, err)
	assert.Equal(t, 2, m.forced)
	assert.Contains(t, out, "Forced schema version to 2")

	_, err = run(t, &fakeMigrator{}, "migrate", "force", "two")
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}

func TestMigrate_ErrorsPropagate(t *testing.T) {
	t.Run("up failure wins over close", func(t *testing.T) {
		withDatabase(t)
		upErr := errors.New("dirty database")
		m := &fakeMigrator{upErr: upErr, closeErr: errors.New("close")}

		_, err := run(t, m, "migrate", "up")

		assert.ErrorIs(t, err, upErr)
	})

	t.Run("close failure", func(t *testing.T) {
		withDatabase(t)
		closeErr := errors.New("close")
		m := &fakeMigrator{closeErr: closeErr}

		_, err := run(t, m, "migrate", "up")

		assert.ErrorIs(t, err, closeErr)
	})
}

func TestSeed_RejectsIncompleteRootUser(t *testing.T) {
	withDatabase(t)
	t.Setenv("WARDEN_SEEDING__SEED_ROOT_USER", "true")
	t.Setenv("WARDEN_SEEDING__ROOT_USER_EMAIL", "root@example.com")

	_, err := run(t, nil, "seed")

	errutil.AssertErrorCode(t, err, "SEED_INVALID_OPTIONS")
}

func TestServe_RequiresTokenSecrets(t *testing.T) {
	withDatabase(t)

	_, err := run(t, nil, "serve")

	errutil.AssertErrorCode(t, err, "AUTH_CONFIG_INVALID")
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "valid integer", input: "3", want: 3},
		{name: "zero is valid", input: "0", want: 0},
		{name: "leading whitespace is handled", input: "  42", want: 42},
		{name: "trailing chars are ignored", input: "3abc", want: 3},
		{name: "negative parses", input: "-1", want: -1},
		{name: "non-numeric", input: "abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseForceVersion(tt.input)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Zero(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
