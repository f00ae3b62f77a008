// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package bolt provides a SessionStore backed by a local bbolt file, for
// single-node deployments that want sessions to survive restarts.
package bolt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.etcd.io/bbolt"

	"github.com/myjournal/myjournal/internal/auth"
)

var bucketSessions = []byte("sessions")

// openTimeout bounds how long Open waits for the file lock held by another process.
const openTimeout = 5 * time.Second

// SessionStore keeps sessions in a bbolt bucket keyed by token hash.
type SessionStore struct {
	db *bbolt.DB
}

// Open opens (or creates) the session database at path.
func Open(path string) (*SessionStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, oops.Code("SESSION_STORE_OPEN_FAILED").With("path", path).Wrap(err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, oops.Code("SESSION_STORE_OPEN_FAILED").
			With("operation", "create bucket").
			Wrap(err)
	}
	return &SessionStore{db: db}, nil
}

// Close releases the database file.
func (s *SessionStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create stores a new session. A duplicate token hash is rejected.
func (s *SessionStore) Create(_ context.Context, session *auth.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").Wrap(err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		key := []byte(session.TokenHash)
		if b.Get(key) != nil {
			return oops.Code("SESSION_DUPLICATE").
				With("session_id", session.ID.String()).
				Errorf("session token already exists")
		}
		if err := b.Put(key, data); err != nil {
			return oops.Code("SESSION_CREATE_FAILED").Wrap(err)
		}
		return nil
	})
}

// GetByTokenHash retrieves a session by its token hash.
func (s *SessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	var session auth.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(tokenHash))
		if data == nil {
			return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		if err := json.Unmarshal(data, &session); err != nil {
			return oops.Code("SESSION_DECODE_FAILED").Wrap(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteByTokenHash removes a session. Missing sessions are ignored.
func (s *SessionStore) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(tokenHash))
	})
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}
	return nil
}

// DeleteByPrincipal removes all sessions bound to principalID.
func (s *SessionStore) DeleteByPrincipal(_ context.Context, principalID ulid.ULID) error {
	_, err := s.deleteWhere(func(session *auth.Session) bool {
		return session.PrincipalID == principalID
	})
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("principal_id", principalID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes expired sessions and returns how many were removed.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()
	removed, err := s.deleteWhere(func(session *auth.Session) bool {
		return session.IsExpiredAt(now)
	})
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_FAILED").With("operation", "delete expired").Wrap(err)
	}
	return removed, nil
}

// deleteWhere removes every session matching match in one transaction.
// Keys are collected first; bbolt cursors may skip entries when deleting in place.
func (s *SessionStore) deleteWhere(match func(*auth.Session) bool) (int64, error) {
	var removed int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)

		var doomed [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var session auth.Session
			if err := json.Unmarshal(v, &session); err != nil {
				return err
			}
			if match(&session) {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = int64(len(doomed))
		return nil
	})
	return removed, err
}

var _ auth.SessionStore = (*SessionStore)(nil)
