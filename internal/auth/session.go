// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes  = 32             // 32 bytes = 64 hex chars
	DefaultSessionTTL  = 24 * time.Hour // 24 hour expiry
	MinSessionTTL      = time.Minute
	sessionTokenHexLen = SessionTokenBytes * 2
)

// Session binds a hashed opaque token to a principal ID. It never holds
// principal fields; the principal is re-fetched on every resolve.
type Session struct {
	ID          ulid.ULID `json:"id"`
	PrincipalID ulid.ULID `json:"principal_id"`
	TokenHash   string    `json:"token_hash"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewSession creates a validated Session instance.
func NewSession(principalID ulid.ULID, tokenHash string, expiresAt time.Time) (*Session, error) {
	if principalID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_PRINCIPAL").Errorf("principal ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &Session{
		ID:          ulid.Make(),
		PrincipalID: principalID,
		TokenHash:   tokenHash,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}, nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// LogValue keeps the token hash out of logs.
func (s *Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", s.ID.String()),
		slog.String("principal_id", s.PrincipalID.String()),
		slog.Time("expires_at", s.ExpiresAt),
	)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; only the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionStore persists sessions. Implementations must make Create,
// GetByTokenHash and DeleteByTokenHash atomic with respect to each other.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	// Returns ErrNotFound if no session matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteByTokenHash removes a session. Deleting a missing session is not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByPrincipal removes all sessions of a principal.
	DeleteByPrincipal(ctx context.Context, principalID ulid.ULID) error

	// DeleteExpired removes all expired sessions and returns the count removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
