// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/auth"
	"github.com/myjournal/myjournal/internal/store"
)

// SessionRepository implements auth.SessionStore using PostgreSQL.
type SessionRepository struct {
	db store.Querier
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db store.Querier) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID.String(),
		session.PrincipalID.String(),
		session.TokenHash,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("principal_id", session.PrincipalID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	var (
		idStr, principalIDStr string
		session               auth.Session
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(&idStr, &principalIDStr, &session.TokenHash, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if session.PrincipalID, err = ulid.Parse(principalIDStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_PRINCIPAL_ID").With("principal_id", principalIDStr).Wrap(err)
	}
	return &session, nil
}

// DeleteByTokenHash removes a session. Deleting a missing session is not an error.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteByPrincipal removes all sessions for a principal.
func (r *SessionRepository) DeleteByPrincipal(ctx context.Context, principalID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, principalID.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_PRINCIPAL_FAILED").
			With("operation", "delete sessions by principal").
			With("principal_id", principalID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, time.Now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionRepository)(nil)
