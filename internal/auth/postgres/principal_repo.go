// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/auth"
	"github.com/myjournal/myjournal/internal/store"
)

const principalColumns = `id, email, password_hash, salt, kdf, is_admin, created_at, updated_at`

// PrincipalRepository implements auth.PrincipalRepository using PostgreSQL.
type PrincipalRepository struct {
	db store.Querier
}

// NewPrincipalRepository creates a new PrincipalRepository.
func NewPrincipalRepository(db store.Querier) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

// Create stores a new principal.
func (r *PrincipalRepository) Create(ctx context.Context, p *auth.Principal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+principalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		p.ID.String(),
		p.Email,
		p.PasswordHash,
		p.Salt,
		p.KDF.String(),
		p.IsAdmin,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("AUTH_EMAIL_TAKEN").
			With("email", p.Email).
			Wrap(auth.ErrEmailTaken)
	}
	if err != nil {
		return oops.Code("PRINCIPAL_CREATE_FAILED").
			With("operation", "insert user").
			With("principal_id", p.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a principal by ID.
func (r *PrincipalRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+principalColumns+`
		FROM users
		WHERE id = $1
	`, id.String())

	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("principal_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("principal_id", id.String()).
			Wrap(err)
	}
	return p, nil
}

// GetByEmail retrieves a principal by email (case-insensitive).
func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+principalColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email)

	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return p, nil
}

// List returns every principal ordered by creation time.
func (r *PrincipalRepository) List(ctx context.Context) ([]*auth.Principal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+principalColumns+`
		FROM users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_LIST_FAILED").
			With("operation", "list users").
			Wrap(err)
	}
	defer rows.Close()

	var principals []*auth.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PRINCIPAL_ROWS_ERROR").
			With("operation", "iterate user rows").
			Wrap(err)
	}
	return principals, nil
}

// Update stores the email and admin flag of an existing principal.
func (r *PrincipalRepository) Update(ctx context.Context, p *auth.Principal) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET email = $2, is_admin = $3, updated_at = $4
		WHERE id = $1
	`, p.ID.String(), p.Email, p.IsAdmin, time.Now())
	if isUniqueViolation(err) {
		return oops.Code("AUTH_EMAIL_TAKEN").
			With("email", p.Email).
			Wrap(auth.ErrEmailTaken)
	}
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_FAILED").
			With("operation", "update user").
			With("principal_id", p.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("principal_id", p.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateCredential replaces the password hash, salt and KDF parameters.
func (r *PrincipalRepository) UpdateCredential(ctx context.Context, id ulid.ULID, cred auth.Credential) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, salt = $3, kdf = $4, updated_at = $5
		WHERE id = $1
	`, id.String(), cred.Hash, cred.Salt, cred.Params.String(), time.Now())
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_CREDENTIAL_FAILED").
			With("operation", "update credential").
			With("principal_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("principal_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a principal. Sessions and entries go with it through
// ON DELETE CASCADE.
func (r *PrincipalRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("PRINCIPAL_DELETE_FAILED").
			With("operation", "delete user").
			With("principal_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("principal_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanPrincipal scans a single row into a Principal.
// pgx.ErrNoRows is returned unchanged for callers to wrap.
func scanPrincipal(row pgx.Row) (*auth.Principal, error) {
	var (
		idStr  string
		kdfStr string
		p      auth.Principal
	)
	err := row.Scan(&idStr, &p.Email, &p.PasswordHash, &p.Salt, &kdfStr, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("PRINCIPAL_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	p.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}
	p.KDF, err = auth.ParseKDFParams(kdfStr)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_INVALID_KDF").
			With("principal_id", idStr).
			Wrap(err)
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ auth.PrincipalRepository = (*PrincipalRepository)(nil)
