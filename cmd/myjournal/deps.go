// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/myjournal/myjournal/internal/observability"
	"github.com/myjournal/myjournal/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// PoolFactory opens the PostgreSQL pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, url string, opts store.ConnectOptions, logger *slog.Logger) (*pgxpool.Pool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, logger *slog.Logger) ObservabilityServer

	// ListenerFactory creates the HTTP listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// PasswordReader prompts for a password without echo.
	// Default: readTerminalPassword
	PasswordReader func(prompt string, out io.Writer) (string, error)

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer

	// OnReady is called with the HTTP address once the server accepts requests.
	OnReady func(addr string)
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	AddCheck(checks ...observability.Check)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = store.Connect
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, logger)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	if out.PasswordReader == nil {
		out.PasswordReader = readTerminalPassword
	}
	if out.OnReady == nil {
		out.OnReady = func(string) {}
	}
	return &out
}
