// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package auth

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxEmailLength is the longest accepted email address (RFC 5321 path limit).
const MaxEmailLength = 254

// Principal is a user account and, once authenticated, the identity a request
// acts as. A user owns its own record.
type Principal struct {
	ID           ulid.ULID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Salt         []byte    `json:"-"`
	KDF          KDFParams `json:"-"`
	IsAdmin      bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewPrincipal creates a validated Principal with a new ID.
// The email is normalized; the credential must come from PasswordHasher.NewCredential.
func NewPrincipal(email string, cred Credential, isAdmin bool) (*Principal, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if len(cred.Hash) == 0 {
		return nil, oops.Code("AUTH_INVALID_CREDENTIAL").Errorf("password hash cannot be empty")
	}
	if len(cred.Salt) < MinSaltLength {
		return nil, oops.Code("AUTH_INVALID_CREDENTIAL").Errorf("salt must be at least %d bytes", MinSaltLength)
	}

	now := time.Now()
	return &Principal{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: cred.Hash,
		Salt:         cred.Salt,
		KDF:          cred.Params,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Credential returns the stored password credential.
func (p *Principal) Credential() Credential {
	return Credential{Hash: p.PasswordHash, Salt: p.Salt, Params: p.KDF}
}

// SetCredential replaces the stored password credential.
func (p *Principal) SetCredential(cred Credential) {
	p.PasswordHash = cred.Hash
	p.Salt = cred.Salt
	p.KDF = cred.Params
	p.UpdatedAt = time.Now()
}

// LogValue keeps credential fields out of logs.
func (p *Principal) LogValue() slog.Value {
	if p == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("id", p.ID.String()),
		slog.Bool("admin", p.IsAdmin),
	)
}

// NormalizeEmail trims surrounding space and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address ("user@host").
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email must be a plain address like user@example.com")
	}
	return nil
}

// PrincipalStore is the read side authenticators depend on.
type PrincipalStore interface {
	// GetByEmail retrieves a principal by email (case-insensitive).
	// Returns ErrNotFound if no principal has the given email.
	GetByEmail(ctx context.Context, email string) (*Principal, error)

	// GetByID retrieves a principal by ID.
	// Returns ErrNotFound if the principal does not exist.
	GetByID(ctx context.Context, id ulid.ULID) (*Principal, error)
}

// CredentialUpdater replaces a principal's stored credential.
type CredentialUpdater interface {
	UpdateCredential(ctx context.Context, id ulid.ULID, cred Credential) error
}

// PrincipalRepository manages principal persistence.
type PrincipalRepository interface {
	PrincipalStore
	CredentialUpdater

	// Create stores a new principal. Returns an error coded AUTH_EMAIL_TAKEN
	// when the email is already registered.
	Create(ctx context.Context, p *Principal) error

	// Update stores the email and admin flag of an existing principal.
	Update(ctx context.Context, p *Principal) error

	// Delete removes a principal.
	Delete(ctx context.Context, id ulid.ULID) error

	// List returns every principal ordered by creation time.
	List(ctx context.Context) ([]*Principal, error)
}
