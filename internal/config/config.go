// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package config loads server configuration.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// YAML file, the DATABASE_URL environment variable, then command-line flags
// that were set explicitly.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/myjournal/myjournal/internal/auth"
)

// DatabaseURLEnv is the environment variable holding the PostgreSQL URL.
const DatabaseURLEnv = "DATABASE_URL"

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
)

// Config is the complete server configuration.
type Config struct {
	Listen      string         `koanf:"listen"`
	MetricsAddr string         `koanf:"metrics_addr"`
	LogFormat   string         `koanf:"log_format"`
	Database    DatabaseConfig `koanf:"database"`
	Store       StoreConfig    `koanf:"store"`
	Session     SessionConfig  `koanf:"session"`
	KDF         KDFConfig      `koanf:"kdf"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// StoreConfig selects where principals and entries live.
type StoreConfig struct {
	Backend string `koanf:"backend"`
}

// SessionConfig configures interactive sessions.
type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	BoltPath      string        `koanf:"bolt_path"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	SecureCookie  bool          `koanf:"secure_cookie"`
}

// KDFConfig holds the password derivation parameters. Zero work factors take
// the selected algorithm's defaults.
type KDFConfig struct {
	Algorithm  string `koanf:"algorithm"`
	Iterations uint32 `koanf:"iterations"`
	MemoryKiB  uint32 `koanf:"memory_kib"`
	Threads    uint8  `koanf:"threads"`
	KeyLength  uint32 `koanf:"key_length"`
	SaltLength int    `koanf:"salt_length"`
}

// Params converts the configuration into auth.KDFParams. Memory and thread
// settings are dropped for pbkdf2, which has neither.
func (c KDFConfig) Params() auth.KDFParams {
	argon := auth.DefaultKDFParams()
	p := auth.KDFParams{
		Algorithm:  c.Algorithm,
		Iterations: c.Iterations,
		MemoryKiB:  c.MemoryKiB,
		Threads:    c.Threads,
		KeyLength:  c.KeyLength,
	}
	if p.KeyLength == 0 {
		p.KeyLength = argon.KeyLength
	}
	switch p.Algorithm {
	case auth.AlgorithmArgon2id:
		if p.Iterations == 0 {
			p.Iterations = argon.Iterations
		}
		if p.MemoryKiB == 0 {
			p.MemoryKiB = argon.MemoryKiB
		}
		if p.Threads == 0 {
			p.Threads = argon.Threads
		}
	case auth.AlgorithmPBKDF2SHA512:
		p.MemoryKiB, p.Threads = 0, 0
		if p.Iterations == 0 {
			p.Iterations = auth.DefaultPBKDF2Iterations
		}
	}
	return p
}

// Default returns the built-in configuration.
func Default() Config {
	kdf := auth.DefaultKDFParams()
	return Config{
		Listen:      ":8080",
		MetricsAddr: "127.0.0.1:9100",
		LogFormat:   "json",
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 5,
			ConnectBackoff:  500 * time.Millisecond,
		},
		Store: StoreConfig{Backend: BackendPostgres},
		Session: SessionConfig{
			Backend:       BackendPostgres,
			BoltPath:      "sessions.db",
			TTL:           auth.DefaultSessionTTL,
			SweepInterval: 10 * time.Minute,
		},
		KDF: KDFConfig{
			Algorithm:  kdf.Algorithm,
			KeyLength:  kdf.KeyLength,
			SaltLength: auth.DefaultSaltLength,
		},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"listen":          "listen",
	"metrics-addr":    "metrics_addr",
	"log-format":      "log_format",
	"database-url":    "database.url",
	"auto-migrate":    "database.auto_migrate",
	"store-backend":   "store.backend",
	"session-backend": "session.backend",
	"session-bolt":    "session.bolt_path",
	"session-ttl":     "session.ttl",
	"secure-cookie":   "session.secure_cookie",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("listen", d.Listen, "HTTP listen address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("database-url", "", "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations on startup")
	fs.String("store-backend", d.Store.Backend, "user and entry storage (postgres or memory)")
	fs.String("session-backend", d.Session.Backend, "session storage (postgres, bolt or memory)")
	fs.String("session-bolt", d.Session.BoltPath, "bbolt file for the bolt session backend")
	fs.Duration("session-ttl", d.Session.TTL, "session lifetime")
	fs.Bool("secure-cookie", d.Session.SecureCookie, "mark the session cookie Secure")
}

// Load builds the configuration from path (optional) and fs (optional).
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if url := os.Getenv(DatabaseURLEnv); url != "" {
		if err := k.Set("database.url", url); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", DatabaseURLEnv).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "decode configuration").
			Wrap(err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable. Any error is fatal at
// startup.
func (c *Config) Validate() error {
	if err := validateAddr("listen", c.Listen, false); err != nil {
		return err
	}
	if err := validateAddr("metrics_addr", c.MetricsAddr, true); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log_format", "must be 'json' or 'text', got %q", c.LogFormat)
	}

	switch c.Store.Backend {
	case BackendPostgres, BackendMemory:
	default:
		return invalid("store.backend", "must be 'postgres' or 'memory', got %q", c.Store.Backend)
	}
	switch c.Session.Backend {
	case BackendPostgres:
		if c.Store.Backend != BackendPostgres {
			return invalid("session.backend", "postgres sessions require the postgres store")
		}
	case BackendBolt:
		if c.Session.BoltPath == "" {
			return invalid("session.bolt_path", "is required for the bolt backend")
		}
	case BackendMemory:
	default:
		return invalid("session.backend", "must be 'postgres', 'bolt' or 'memory', got %q", c.Session.Backend)
	}
	if c.NeedsDatabase() && c.Database.URL == "" {
		return invalid("database.url", "is required (set --database-url or $%s)", DatabaseURLEnv)
	}

	if c.Session.TTL < auth.MinSessionTTL {
		return invalid("session.ttl", "must be at least %s", auth.MinSessionTTL)
	}
	if c.Session.SweepInterval <= 0 {
		return invalid("session.sweep_interval", "must be positive")
	}

	if _, err := auth.NewKeyDeriver(c.KDF.Params(), c.KDF.SaltLength); err != nil {
		return oops.Code("CONFIG_INVALID").With("field", "kdf").Wrap(err)
	}
	return nil
}

// NeedsDatabase reports whether any component is backed by PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return c.Store.Backend == BackendPostgres || c.Session.Backend == BackendPostgres
}

func validateAddr(field, addr string, optional bool) error {
	if addr == "" {
		if optional {
			return nil
		}
		return invalid(field, "is required")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return invalid(field, "invalid address %q: %v", addr, err)
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").
		With("field", field).
		Errorf("%s %s", field, fmt.Sprintf(format, args...))
}
