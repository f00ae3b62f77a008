// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/access"
	"github.com/myjournal/myjournal/internal/account"
	"github.com/myjournal/myjournal/internal/auth"
	"github.com/myjournal/myjournal/internal/auth/bolt"
	authmemory "github.com/myjournal/myjournal/internal/auth/memory"
	authpostgres "github.com/myjournal/myjournal/internal/auth/postgres"
	"github.com/myjournal/myjournal/internal/config"
	"github.com/myjournal/myjournal/internal/journal"
	journalmemory "github.com/myjournal/myjournal/internal/journal/memory"
	journalpostgres "github.com/myjournal/myjournal/internal/journal/postgres"
	"github.com/myjournal/myjournal/internal/observability"
	"github.com/myjournal/myjournal/internal/store"
)

// entryStore is an entry repository that can also drop everything a
// principal owns.
type entryStore interface {
	journal.EntryRepository
	account.OwnedDataDeleter
}

// components is the object graph shared by the commands.
type components struct {
	principals  auth.PrincipalRepository
	sessions    auth.SessionStore
	entries     entryStore
	hasher      *auth.KeyDeriver
	sessionAuth *auth.SessionAuthenticator
	credAuth    *auth.CredentialAuthenticator
	journal     *journal.Service
	accounts    *account.Service
	janitor     *auth.Janitor
	pool        *pgxpool.Pool

	closers []func()
}

// readinessProbeHash names no session; looking it up exercises the session
// store without touching real data.
var readinessProbeHash = auth.HashSessionToken("readiness-probe")

// readinessChecks probes the session store, the janitor's last sweep and,
// when configured, the database.
func (c *components) readinessChecks() []observability.Check {
	checks := []observability.Check{
		{Name: "sessions", Probe: func(ctx context.Context) error {
			_, err := c.sessions.GetByTokenHash(ctx, readinessProbeHash)
			if err == nil || errors.Is(err, auth.ErrNotFound) {
				return nil
			}
			return err
		}},
		{Name: "janitor", Probe: func(context.Context) error {
			return c.janitor.Err()
		}},
	}
	if c.pool != nil {
		checks = append(checks, observability.Check{Name: "database", Probe: c.pool.Ping})
	}
	return checks
}

// Close releases the stores in reverse order of opening.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// buildComponents wires the stores and services selected by cfg. metrics may
// be nil.
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, deps *Deps) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.hasher, err = auth.NewKeyDeriver(cfg.KDF.Params(), cfg.KDF.SaltLength)
	if err != nil {
		return nil, err
	}

	var db store.Querier
	if cfg.NeedsDatabase() {
		if cfg.Database.AutoMigrate {
			if err := migrateUp(cfg.Database.URL, deps, logger); err != nil {
				return nil, err
			}
		}
		opts := store.DefaultConnectOptions()
		if cfg.Database.MaxConns > 0 {
			opts.MaxConns = cfg.Database.MaxConns
		}
		opts.Attempts = cfg.Database.ConnectAttempts
		if cfg.Database.ConnectBackoff > 0 {
			opts.Backoff = cfg.Database.ConnectBackoff
		}
		pool, err := deps.PoolFactory(ctx, cfg.Database.URL, opts, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pool.Close)
		c.pool = pool
		db = pool
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		c.principals = authpostgres.NewPrincipalRepository(db)
		c.entries = journalpostgres.NewEntryRepository(db)
	default:
		c.principals = authmemory.NewPrincipalRepository()
		c.entries = journalmemory.NewEntryRepository()
	}

	switch cfg.Session.Backend {
	case config.BackendPostgres:
		c.sessions = authpostgres.NewSessionRepository(db)
	case config.BackendBolt:
		s, err := bolt.Open(cfg.Session.BoltPath)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() {
			if err := s.Close(); err != nil {
				logger.Warn("failed to close session store", "error", err)
			}
		})
		c.sessions = s
	default:
		c.sessions = authmemory.NewSessionStore()
	}

	authOpts := []auth.Option{auth.WithLogger(logger), auth.WithSessionTTL(cfg.Session.TTL)}
	var guardOpts []access.GuardOption
	var sweepRecorder auth.SweepRecorder
	if metrics != nil {
		authOpts = append(authOpts, auth.WithRecorder(metrics))
		guardOpts = append(guardOpts, access.WithDecisionRecorder(metrics))
		sweepRecorder = metrics
	}

	c.sessionAuth, err = auth.NewSessionAuthenticator(c.principals, c.sessions, c.hasher, authOpts...)
	if err != nil {
		return nil, err
	}
	c.credAuth, err = auth.NewCredentialAuthenticator(c.principals, c.hasher, authOpts...)
	if err != nil {
		return nil, err
	}

	c.journal, err = journal.NewService(journal.ServiceConfig{
		Repo:   c.entries,
		Owners: c.principals,
		Guard:  access.NewGuard("entry", guardOpts...),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	c.accounts, err = account.NewService(account.Config{
		Principals: c.principals,
		Hasher:     c.hasher,
		Sessions:   c.sessions,
		OwnedData:  []account.OwnedDataDeleter{c.entries},
		Guard:      access.NewGuard("user", guardOpts...),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	c.janitor, err = auth.NewJanitor(c.sessions, cfg.Session.SweepInterval, logger, sweepRecorder)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// requirePersistentStore rejects configurations whose accounts vanish with
// the process.
func requirePersistentStore(cfg *config.Config) error {
	if cfg.Store.Backend != config.BackendPostgres {
		return oops.Code("CONFIG_INVALID").
			With("field", "store.backend").
			Errorf("account commands need the postgres store, got %q", cfg.Store.Backend)
	}
	return nil
}
