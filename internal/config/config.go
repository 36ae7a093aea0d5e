// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads gatehouse settings from defaults, an optional YAML
// file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/logging"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is the complete service configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Session   SessionConfig   `koanf:"session"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	Directory DirectoryConfig `koanf:"directory"`
}

// HTTPConfig configures the auth endpoints.
type HTTPConfig struct {
	Addr           string   `koanf:"addr"`
	SecureCookies  bool     `koanf:"secure_cookies"`
	CookieName     string   `koanf:"cookie_name"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// SessionConfig configures the session store.
type SessionConfig struct {
	Backend       string        `koanf:"backend" jsonschema:"enum=postgres,enum=redis,enum=memory"`
	Lifetime      time.Duration `koanf:"lifetime"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	URL       string `koanf:"url"`
	KeyPrefix string `koanf:"key_prefix"`
}

// AuthConfig tunes hashing and storage timeouts.
type AuthConfig struct {
	OperationTimeout time.Duration `koanf:"operation_timeout"`
	Argon2           Argon2Config  `koanf:"argon2"`
}

// Argon2Config is the argon2id work factor for new digests.
type Argon2Config struct {
	Time      uint32 `koanf:"time"`
	MemoryKiB uint32 `koanf:"memory"`
	Threads   uint32 `koanf:"threads"`
}

// DirectoryConfig selects the account store.
type DirectoryConfig struct {
	Backend string `koanf:"backend" jsonschema:"enum=postgres,enum=memory"`
}

// DefaultAllowedOrigins is the CORS allow-list used when none is configured.
var DefaultAllowedOrigins = []string{"http://localhost:4200"}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:           ":3000",
			CookieName:     "gatehouse_session",
			AllowedOrigins: slices.Clone(DefaultAllowedOrigins),
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Database: DatabaseConfig{
			AutoMigrate: true,
		},
		Session: SessionConfig{
			Backend:       BackendPostgres,
			Lifetime:      auth.DefaultSessionExpiry,
			SweepInterval: auth.DefaultSweepInterval,
		},
		Redis: RedisConfig{KeyPrefix: "gatehouse:session"},
		Auth: AuthConfig{
			OperationTimeout: auth.DefaultOperationTimeout,
			Argon2: Argon2Config{
				Time:      auth.DefaultArgon2Params.Time,
				MemoryKiB: auth.DefaultArgon2Params.MemoryKiB,
				Threads:   uint32(auth.DefaultArgon2Params.Threads),
			},
		},
		Directory: DirectoryConfig{Backend: BackendPostgres},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"addr":              "http.addr",
	"secure-cookies":    "http.secure_cookies",
	"allowed-origin":    "http.allowed_origins",
	"metrics-addr":      "metrics.addr",
	"log-format":        "log.format",
	"log-level":         "log.level",
	"database-url":      "database.url",
	"auto-migrate":      "database.auto_migrate",
	"session-backend":   "session.backend",
	"session-lifetime":  "session.lifetime",
	"redis-url":         "redis.url",
	"directory-backend": "directory.backend",
}

// BindFlags registers the overridable settings on flags.
func BindFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("addr", d.HTTP.Addr, "listen address for the auth endpoints")
	flags.Bool("secure-cookies", d.HTTP.SecureCookies, "mark session cookies Secure")
	flags.StringSlice("allowed-origin", d.HTTP.AllowedOrigins, "CORS origin allowed to send credentials (repeatable)")
	flags.String("metrics-addr", d.Metrics.Addr, "observability server address (empty to disable)")
	flags.String("log-format", d.Log.Format, "log format (json, text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("database-url", "", "PostgreSQL URL (default $DATABASE_URL)")
	flags.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on startup")
	flags.String("session-backend", d.Session.Backend, "session store (postgres, redis, memory)")
	flags.Duration("session-lifetime", d.Session.Lifetime, "absolute session lifetime")
	flags.String("redis-url", "", "Redis URL for the redis session backend (default $REDIS_URL)")
	flags.String("directory-backend", d.Directory.Backend, "account store (postgres, memory)")
}

// Load reads and validates the configuration. path names a YAML file; when
// required is false a missing file is skipped. flags may be nil.
func Load(path string, required bool, flags *pflag.FlagSet) (*Config, error) {
	cfg, err := Read(path, required, flags)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that need only part of the
// configuration.
func Read(path string, required bool, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := loadFile(k, path, required); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	cfg.HTTP.AllowedOrigins = nil
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if !k.Exists("http.allowed_origins") {
		cfg.HTTP.AllowedOrigins = slices.Clone(DefaultAllowedOrigins)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = os.Getenv("REDIS_URL")
	}
	return &cfg, nil
}

// loadFile merges the YAML file at path into k after checking it against the
// config schema, so misspelled keys fail loudly instead of being ignored.
func loadFile(k *koanf.Koanf, path string, required bool) error {
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	if err := ValidateFile(data); err != nil {
		return oops.With("path", path).Wrap(err)
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	invalid := func(key string, value any, msg string) error {
		return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf("%s", msg)
	}

	switch {
	case c.HTTP.Addr == "":
		return invalid("http.addr", c.HTTP.Addr, "http.addr is required")
	case c.HTTP.CookieName == "":
		return invalid("http.cookie_name", c.HTTP.CookieName, "http.cookie_name is required")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", c.Log.Format, "log.format must be json or text")
	case c.Session.Lifetime <= 0:
		return invalid("session.lifetime", c.Session.Lifetime.String(), "session.lifetime must be positive")
	case c.Session.SweepInterval <= 0:
		return invalid("session.sweep_interval", c.Session.SweepInterval.String(), "session.sweep_interval must be positive")
	case c.Auth.OperationTimeout <= 0:
		return invalid("auth.operation_timeout", c.Auth.OperationTimeout.String(), "auth.operation_timeout must be positive")
	case c.Auth.Argon2.Threads > 255:
		return invalid("auth.argon2.threads", c.Auth.Argon2.Threads, "auth.argon2.threads must be at most 255")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level, "log.level must be debug, info, warn or error")
	}
	if err := c.Argon2Params().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth.argon2").Errorf("auth.argon2: %v", err)
	}

	switch c.Directory.Backend {
	case BackendPostgres, BackendMemory:
	default:
		return invalid("directory.backend", c.Directory.Backend, "directory.backend must be postgres or memory")
	}

	switch c.Session.Backend {
	case BackendPostgres, BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			return invalid("redis.url", "", "redis.url or REDIS_URL is required for the redis session backend")
		}
	default:
		return invalid("session.backend", c.Session.Backend, "session.backend must be postgres, redis or memory")
	}

	// Postgres sessions reference accounts(id), so the accounts must live there too.
	if c.Session.Backend == BackendPostgres && c.Directory.Backend != BackendPostgres {
		return invalid("session.backend", c.Session.Backend, "session.backend postgres requires directory.backend postgres")
	}

	if c.NeedsDatabase() && c.Database.URL == "" {
		return invalid("database.url", "", "database.url or DATABASE_URL is required for postgres backends")
	}
	return nil
}

// NeedsDatabase reports whether any backend uses PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return c.Directory.Backend == BackendPostgres || c.Session.Backend == BackendPostgres
}

// Argon2Params returns the hasher work factor.
func (c *Config) Argon2Params() auth.Argon2Params {
	return auth.Argon2Params{
		Time:      c.Auth.Argon2.Time,
		MemoryKiB: c.Auth.Argon2.MemoryKiB,
		Threads:   uint8(min(c.Auth.Argon2.Threads, 255)), //nolint:gosec // bounded above
		SaltLen:   auth.DefaultArgon2Params.SaltLen,
		KeyLen:    auth.DefaultArgon2Params.KeyLen,
	}
}

// AuthenticatorConfig returns the session state machine settings.
func (c *Config) AuthenticatorConfig() auth.AuthenticatorConfig {
	return auth.AuthenticatorConfig{
		SessionLifetime:  c.Session.Lifetime,
		OperationTimeout: c.Auth.OperationTimeout,
	}
}
