// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package account manages user accounts: registration, profile changes,
// password changes and removal. Every operation on an existing account goes
// through the access guard with the account itself as owner.
package account

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/access"
	"github.com/myjournal/myjournal/internal/auth"
)

// MinPasswordLength is the shortest password accepted for new credentials.
const MinPasswordLength = 8

// ErrInvalidPassword is returned when a new password does not meet policy.
var ErrInvalidPassword = errors.New("invalid password")

// SessionRevoker destroys every session of a principal.
type SessionRevoker interface {
	DeleteByPrincipal(ctx context.Context, principalID ulid.ULID) error
}

// OwnedDataDeleter removes data owned by a principal that the database does
// not cascade on its own.
type OwnedDataDeleter interface {
	DeleteByOwner(ctx context.Context, ownerID ulid.ULID) error
}

// AccountPatch describes a change to an account. Nil fields are left as-is.
type AccountPatch struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Admin    *bool   `json:"admin,omitempty"`
}

// Config holds dependencies for Service.
type Config struct {
	Principals auth.PrincipalRepository
	Hasher     auth.PasswordHasher
	Sessions   SessionRevoker
	OwnedData  []OwnedDataDeleter
	Guard      *access.Guard
	Logger     *slog.Logger
}

// Service manages accounts.
type Service struct {
	principals auth.PrincipalRepository
	hasher     auth.PasswordHasher
	sessions   SessionRevoker
	ownedData  []OwnedDataDeleter
	guard      *access.Guard
	logger     *slog.Logger
}

// NewService creates a new Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Principals == nil {
		return nil, oops.Code("ACCOUNT_INVALID_DEPENDENCY").Errorf("principal repository is required")
	}
	if cfg.Hasher == nil {
		return nil, oops.Code("ACCOUNT_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if cfg.Guard == nil {
		cfg.Guard = access.NewGuard("user")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		principals: cfg.Principals,
		hasher:     cfg.Hasher,
		sessions:   cfg.Sessions,
		ownedData:  cfg.OwnedData,
		guard:      cfg.Guard,
		logger:     cfg.Logger,
	}, nil
}

// Register creates an account. Anyone may register; requester may be nil.
// Only an admin requester may create another admin.
func (s *Service) Register(ctx context.Context, requester *auth.Principal, email, password string, admin bool) (*auth.Principal, error) {
	if admin {
		if err := s.guard.RequireAdmin(requester, access.Modify); err != nil {
			return nil, err
		}
	}
	return s.create(ctx, email, password, admin)
}

// Provision creates an account without an acting principal. It is meant
// for operator tooling with direct access to the store.
func (s *Service) Provision(ctx context.Context, email, password string, admin bool) (*auth.Principal, error) {
	return s.create(ctx, email, password, admin)
}

func (s *Service) create(ctx context.Context, email, password string, admin bool) (*auth.Principal, error) {
	if err := auth.ValidateEmail(auth.NormalizeEmail(email)); err != nil {
		return nil, err
	}
	cred, err := s.newCredential(password)
	if err != nil {
		return nil, err
	}
	p, err := auth.NewPrincipal(email, cred, admin)
	if err != nil {
		return nil, err
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "create principal").
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "account registered", "principal", p)
	return p, nil
}

// ResetPassword replaces the password of the account registered under
// email and ends all of its sessions. Like Provision it bypasses the guard.
func (s *Service) ResetPassword(ctx context.Context, email, password string) error {
	p, err := s.principals.GetByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return err
	}
	cred, err := s.newCredential(password)
	if err != nil {
		return err
	}
	if err := s.principals.UpdateCredential(ctx, p.ID, cred); err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update credential").
			With("principal_id", p.ID.String()).
			Wrap(err)
	}
	if s.sessions != nil {
		if err := s.sessions.DeleteByPrincipal(ctx, p.ID); err != nil {
			return oops.Code("ACCOUNT_UPDATE_FAILED").
				With("operation", "revoke sessions").
				With("principal_id", p.ID.String()).
				Wrap(err)
		}
	}
	s.logger.InfoContext(ctx, "password reset", "principal_id", p.ID.String())
	return nil
}

// Get returns an account after checking read access.
func (s *Service) Get(ctx context.Context, actor *auth.Principal, id ulid.ULID) (*auth.Principal, error) {
	return s.load(ctx, actor, id, access.Read)
}

// List returns every account. Admin only.
func (s *Service) List(ctx context.Context, actor *auth.Principal) ([]*auth.Principal, error) {
	if err := s.guard.RequireAdmin(actor, access.Read); err != nil {
		return nil, err
	}
	principals, err := s.principals.List(ctx)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").Wrap(err)
	}
	return principals, nil
}

// Update applies patch after checking modify access. Changing the admin flag
// additionally requires an admin actor. A password change always derives a
// fresh salt.
func (s *Service) Update(ctx context.Context, actor *auth.Principal, id ulid.ULID, patch AccountPatch) (*auth.Principal, error) {
	target, err := s.load(ctx, actor, id, access.Modify)
	if err != nil {
		return nil, err
	}

	changed := false
	if patch.Admin != nil && *patch.Admin != target.IsAdmin {
		if err := s.guard.RequireAdmin(actor, access.Modify); err != nil {
			return nil, err
		}
		target.IsAdmin = *patch.Admin
		changed = true
	}
	if patch.Email != nil {
		email := auth.NormalizeEmail(*patch.Email)
		if err := auth.ValidateEmail(email); err != nil {
			return nil, err
		}
		if email != target.Email {
			target.Email = email
			changed = true
		}
	}

	var cred *auth.Credential
	if patch.Password != nil {
		c, err := s.newCredential(*patch.Password)
		if err != nil {
			return nil, err
		}
		cred = &c
	}

	if changed {
		if err := s.principals.Update(ctx, target); err != nil {
			return nil, oops.Code("ACCOUNT_UPDATE_FAILED").
				With("principal_id", id.String()).
				Wrap(err)
		}
	}
	if cred != nil {
		if err := s.principals.UpdateCredential(ctx, id, *cred); err != nil {
			return nil, oops.Code("ACCOUNT_UPDATE_FAILED").
				With("operation", "update credential").
				With("principal_id", id.String()).
				Wrap(err)
		}
		target.SetCredential(*cred)
		s.logger.InfoContext(ctx, "password changed", "principal_id", id.String(), "actor_id", actor.ID.String())
	}
	return target, nil
}

// Delete removes an account after checking delete access. The account's
// sessions and owned data go with it.
func (s *Service) Delete(ctx context.Context, actor *auth.Principal, id ulid.ULID) error {
	if _, err := s.load(ctx, actor, id, access.Delete); err != nil {
		return err
	}
	if s.sessions != nil {
		if err := s.sessions.DeleteByPrincipal(ctx, id); err != nil {
			return oops.Code("ACCOUNT_DELETE_FAILED").
				With("operation", "revoke sessions").
				With("principal_id", id.String()).
				Wrap(err)
		}
	}
	for _, d := range s.ownedData {
		if err := d.DeleteByOwner(ctx, id); err != nil {
			return oops.Code("ACCOUNT_DELETE_FAILED").
				With("operation", "delete owned data").
				With("principal_id", id.String()).
				Wrap(err)
		}
	}
	if err := s.principals.Delete(ctx, id); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("principal_id", id.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "account deleted", "principal_id", id.String(), "actor_id", actor.ID.String())
	return nil
}

func (s *Service) load(ctx context.Context, actor *auth.Principal, id ulid.ULID, op access.Operation) (*auth.Principal, error) {
	if actor == nil {
		return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(auth.ErrUnauthenticated)
	}
	p, err := s.principals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("principal_id", id.String()).
			Wrap(err)
	}
	// A user record is owned by the user it describes.
	if err := s.guard.Authorize(actor, p.ID, op); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) newCredential(password string) (auth.Credential, error) {
	if len(password) < MinPasswordLength {
		return auth.Credential{}, oops.Code("ACCOUNT_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Wrap(ErrInvalidPassword)
	}
	cred, err := s.hasher.NewCredential(password)
	if err != nil {
		return auth.Credential{}, oops.Code("ACCOUNT_CREDENTIAL_FAILED").Wrap(err)
	}
	return cred, nil
}
