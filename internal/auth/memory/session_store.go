// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package memory provides an in-process SessionStore for single-node deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/auth"
)

// SessionStore keeps sessions in a map keyed by token hash.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]auth.Session
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]auth.Session),
	}
}

// Create stores a new session. A duplicate token hash is rejected.
func (s *SessionStore) Create(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.TokenHash]; exists {
		return oops.Code("SESSION_DUPLICATE").
			With("session_id", session.ID.String()).
			Errorf("session token already exists")
	}
	s.sessions[session.TokenHash] = *session
	return nil
}

// GetByTokenHash returns a copy of the stored session.
func (s *SessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &session, nil
}

// DeleteByTokenHash removes a session. Missing sessions are ignored.
func (s *SessionStore) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

// DeleteByPrincipal removes all sessions bound to principalID.
func (s *SessionStore) DeleteByPrincipal(_ context.Context, principalID ulid.ULID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, session := range s.sessions {
		if session.PrincipalID == principalID {
			delete(s.sessions, hash)
		}
	}
	return nil
}

// DeleteExpired removes expired sessions and returns how many were removed.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for hash, session := range s.sessions {
		if session.IsExpiredAt(now) {
			delete(s.sessions, hash)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ auth.SessionStore = (*SessionStore)(nil)
