// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myjournal/myjournal/internal/auth"
	"github.com/myjournal/myjournal/internal/config"
	"github.com/myjournal/myjournal/internal/observability"
)

// brokenSessions fails every lookup and sweep.
type brokenSessions struct {
	auth.SessionStore
}

func (brokenSessions) GetByTokenHash(context.Context, string) (*auth.Session, error) {
	return nil, errors.New("bolt: database not open")
}

func (brokenSessions) DeleteExpired(context.Context) (int64, error) {
	return 0, errors.New("bolt: database not open")
}

func probe(t *testing.T, checks []observability.Check) map[string]error {
	t.Helper()
	out := make(map[string]error, len(checks))
	for _, c := range checks {
		out[c.Name] = c.Probe(context.Background())
	}
	return out
}

func TestReadinessChecks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("memory backends are ready", func(t *testing.T) {
		cfg := config.Default()
		cfg.Store.Backend = config.BackendMemory
		cfg.Session.Backend = config.BackendMemory
		cfg.KDF = config.KDFConfig{Algorithm: auth.AlgorithmArgon2id, Iterations: 1, MemoryKiB: 64, Threads: 1, KeyLength: 32, SaltLength: auth.MinSaltLength}

		c, err := buildComponents(context.Background(), &cfg, logger, nil, (&Deps{}).withDefaults())
		require.NoError(t, err)
		defer c.Close()

		results := probe(t, c.readinessChecks())
		assert.Equal(t, map[string]error{"sessions": nil, "janitor": nil}, results, "no database check without a pool")
	})

	t.Run("failing session store", func(t *testing.T) {
		j, err := auth.NewJanitor(brokenSessions{}, time.Minute, logger, nil)
		require.NoError(t, err)
		c := &components{sessions: brokenSessions{}, janitor: j}

		_, err = j.RunOnce(context.Background())
		require.Error(t, err)

		results := probe(t, c.readinessChecks())
		assert.Error(t, results["sessions"])
		assert.Error(t, results["janitor"])
	})
}
