// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package bolt_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myjournal/myjournal/internal/auth"
	"github.com/myjournal/myjournal/internal/auth/bolt"
	"github.com/myjournal/myjournal/pkg/errutil"
)

func openStore(t *testing.T) (*bolt.SessionStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := bolt.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func newSession(t *testing.T, principalID ulid.ULID, ttl time.Duration) *auth.Session {
	t.Helper()
	_, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	session, err := auth.NewSession(principalID, hash, time.Now().Add(ttl))
	require.NoError(t, err)
	return session
}

func TestOpen_InvalidPath(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "missing", "dir", "sessions.db"))
	assert.Nil(t, store)
	errutil.AssertErrorCode(t, err, "SESSION_STORE_OPEN_FAILED")
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	session := newSession(t, ulid.Make(), time.Hour)

	require.NoError(t, store.Create(ctx, session))

	got, err := store.GetByTokenHash(ctx, session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.PrincipalID, got.PrincipalID)
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))

	errutil.AssertErrorCode(t, store.Create(ctx, session), "SESSION_DUPLICATE")
}

func TestSessionStore_GetMissing(t *testing.T) {
	store, _ := openStore(t)
	_, err := store.GetByTokenHash(context.Background(), "nope")
	assert.True(t, errors.Is(err, auth.ErrNotFound))
}

func TestSessionStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := bolt.Open(path)
	require.NoError(t, err)
	session := newSession(t, ulid.Make(), time.Hour)
	require.NoError(t, store.Create(ctx, session))
	require.NoError(t, store.Close())

	reopened, err := bolt.Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()

	got, err := reopened.GetByTokenHash(ctx, session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
}

func TestSessionStore_Deletes(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	alice, bob := ulid.Make(), ulid.Make()

	a1 := newSession(t, alice, time.Hour)
	a2 := newSession(t, alice, time.Hour)
	b1 := newSession(t, bob, time.Hour)
	stale := newSession(t, bob, -time.Minute)
	for _, s := range []*auth.Session{a1, a2, b1, stale} {
		require.NoError(t, store.Create(ctx, s))
	}

	t.Run("delete by token hash is idempotent", func(t *testing.T) {
		require.NoError(t, store.DeleteByTokenHash(ctx, a1.TokenHash))
		require.NoError(t, store.DeleteByTokenHash(ctx, a1.TokenHash))
		_, err := store.GetByTokenHash(ctx, a1.TokenHash)
		assert.True(t, errors.Is(err, auth.ErrNotFound))
	})

	t.Run("delete expired", func(t *testing.T) {
		removed, err := store.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
		_, err = store.GetByTokenHash(ctx, b1.TokenHash)
		assert.NoError(t, err)
	})

	t.Run("delete by principal", func(t *testing.T) {
		require.NoError(t, store.DeleteByPrincipal(ctx, alice))
		_, err := store.GetByTokenHash(ctx, a2.TokenHash)
		assert.True(t, errors.Is(err, auth.ErrNotFound))
		_, err = store.GetByTokenHash(ctx, b1.TokenHash)
		assert.NoError(t, err)
	})
}
