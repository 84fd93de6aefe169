// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package config loads Warden's configuration from built-in defaults, an
// optional YAML file, WARDEN_ environment variables and command-line flags,
// each layer overriding the previous one.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/warden-auth/warden/internal/auth"
	"github.com/warden-auth/warden/internal/logging"
	"github.com/warden-auth/warden/internal/seed"
	"github.com/warden-auth/warden/internal/store"
	"github.com/warden-auth/warden/internal/xdg"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nested keys: WARDEN_AUTH__ACCESS_TOKEN_SECRET sets
// auth.access_token_secret.
const EnvPrefix = "WARDEN_"

// ConfigFlag is the flag naming an explicit configuration file.
const ConfigFlag = "config"

// Config is the complete process configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Seeding  SeedingConfig  `koanf:"seeding"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Address         string        `koanf:"address"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	SecureCookies   bool          `koanf:"secure_cookies"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL            string        `koanf:"url"`
	MinConnections int32         `koanf:"min_connections"`
	MaxConnections int32         `koanf:"max_connections"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	IdleTimeout    time.Duration `koanf:"idle_timeout"`
}

// AuthConfig configures token signing and password hashing.
type AuthConfig struct {
	AccessTokenSecret       string        `koanf:"access_token_secret"`
	RefreshTokenSecret      string        `koanf:"refresh_token_secret"`
	AccessTokenExpiration   time.Duration `koanf:"access_token_expiration"`
	RefreshTokenExpiration  time.Duration `koanf:"refresh_token_expiration"`
	HashConcurrency         int           `koanf:"hash_concurrency"`
	ClockLeeway             time.Duration `koanf:"clock_leeway"`
	// RenewMissingAccessToken lets a request carrying only a refresh token
	// be renewed instead of rejected.
	RenewMissingAccessToken bool          `koanf:"renew_missing_access_token"`
}

// SeedingConfig selects the optional seeding steps.
type SeedingConfig struct {
	RootUserEmail    string `koanf:"root_user_email"`
	RootUserPassword string `koanf:"root_user_password"`
	SeedRootUser     bool   `koanf:"seed_root_user"`
	GrantRootRole    bool   `koanf:"grant_root_role"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig configures the metrics and health listener. An empty address
// disables it.
type MetricsConfig struct {
	Address string `koanf:"address"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.address":                  "127.0.0.1:8080",
		"server.shutdown_timeout":         10 * time.Second,
		"server.secure_cookies":           false,
		"database.min_connections":        1,
		"database.max_connections":        10,
		"database.connect_timeout":        store.DefaultConnectTimeout,
		"database.idle_timeout":           5 * time.Minute,
		"auth.access_token_expiration":    15 * time.Minute,
		"auth.refresh_token_expiration":   14 * 24 * time.Hour,
		"auth.hash_concurrency":           4,
		"auth.clock_leeway":               auth.DefaultLeeway,
		"auth.renew_missing_access_token": false,
		"seeding.seed_root_user":          false,
		"seeding.grant_root_role":         true,
		"log.format":                      "json",
		"log.level":                       "info",
		"metrics.address":                 "127.0.0.1:9100",
	}
}

// Load builds the configuration. The file named by the --config flag is
// required to exist; without the flag the XDG default is read when present.
// Flags registered on flags under dashed names (database-url) override the
// matching dotted keys (database.url). flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	path, explicit, err := configPath(flags)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFile(k, path, explicit); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return &cfg, nil
}

func configPath(flags *pflag.FlagSet) (path string, explicit bool, err error) {
	if flags != nil {
		if f := flags.Lookup(ConfigFlag); f != nil && f.Value.String() != "" {
			return f.Value.String(), true, nil
		}
	}
	path, err = xdg.ConfigFile()
	if err != nil {
		// No home directory: run on defaults and environment only.
		return "", false, nil //nolint:nilerr // the default file is optional
	}
	return path, false, nil
}

func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
	return key, value
}

// flagKey maps a changed flag such as auth-access-token-expiration to
// auth.access_token_expiration. Unchanged flags keep the lower layers.
func flagKey(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if !f.Changed || f.Name == ConfigFlag {
			return "", nil
		}
		section, rest, ok := strings.Cut(f.Name, "-")
		if !ok {
			return "", nil
		}
		return section + "." + strings.ReplaceAll(rest, "-", "_"), posflag.FlagVal(flags, f)
	}
}

// ValidateDatabase checks the settings needed to reach the database. It is
// enough for commands that never issue tokens.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").With("key", "database.url").Errorf("database url is required")
	}
	if c.Database.MaxConnections <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "database.max_connections").
			Errorf("max connections must be positive")
	}
	if c.Database.MinConnections < 0 || c.Database.MinConnections > c.Database.MaxConnections {
		return oops.Code("CONFIG_INVALID").With("key", "database.min_connections").
			Errorf("min connections must be between 0 and max connections (%d)", c.Database.MaxConnections)
	}
	return nil
}

// Validate checks every setting the server depends on.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.Auth.HashConcurrency <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "auth.hash_concurrency").
			Errorf("hash concurrency must be positive")
	}
	if err := c.TokenConfig().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth").Wrap(err)
	}
	if err := c.SeedOptions().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "seeding").Wrap(err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").With("key", "log.format").
			Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// PoolConfig returns the database pool settings.
func (c *Config) PoolConfig() store.PoolConfig {
	return store.PoolConfig{
		URL:            c.Database.URL,
		MinConns:       c.Database.MinConnections,
		MaxConns:       c.Database.MaxConnections,
		ConnectTimeout: c.Database.ConnectTimeout,
		IdleTimeout:    c.Database.IdleTimeout,
	}
}

// TokenConfig returns the token codec settings.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  c.Auth.AccessTokenSecret,
		RefreshSecret: c.Auth.RefreshTokenSecret,
		AccessTTL:     c.Auth.AccessTokenExpiration,
		RefreshTTL:    c.Auth.RefreshTokenExpiration,
		Leeway:        c.Auth.ClockLeeway,
	}
}

// SeedOptions returns the seeding steps to run.
func (c *Config) SeedOptions() seed.Options {
	return seed.Options{
		GrantRootRole:    c.Seeding.GrantRootRole,
		SeedRootUser:     c.Seeding.SeedRootUser,
		RootUserEmail:    c.Seeding.RootUserEmail,
		RootUserPassword: c.Seeding.RootUserPassword,
	}
}

// RegisterFlags adds the configuration flags shared by every command.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFlag, "", "path to a YAML configuration file")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json or text)")
}

// RegisterServeFlags adds the listener flags of the serve command.
func RegisterServeFlags(flags *pflag.FlagSet) {
	flags.String("server-address", "", "HTTP API listen address")
	flags.String("metrics-address", "", "metrics and health listen address, empty to disable")
}
