// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/auth"
)

// PrincipalRepository is an in-memory auth.PrincipalRepository for testing.
type PrincipalRepository struct {
	mu   sync.RWMutex
	byID map[ulid.ULID]auth.Principal
}

// NewPrincipalRepository creates an empty in-memory principal repository.
func NewPrincipalRepository() *PrincipalRepository {
	return &PrincipalRepository{byID: make(map[ulid.ULID]auth.Principal)}
}

// Create stores a new principal.
func (r *PrincipalRepository) Create(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(p.Email, ulid.ULID{}) {
		return oops.Code("AUTH_EMAIL_TAKEN").With("email", p.Email).Wrap(auth.ErrEmailTaken)
	}
	r.byID[p.ID] = clonePrincipal(p)
	return nil
}

// GetByEmail retrieves a principal by email, ignoring case.
func (r *PrincipalRepository) GetByEmail(_ context.Context, email string) (*auth.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.byID {
		if strings.EqualFold(p.Email, email) {
			c := clonePrincipal(&p)
			return &c, nil
		}
	}
	return nil, oops.Code("PRINCIPAL_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// GetByID retrieves a principal by ID.
func (r *PrincipalRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").With("principal_id", id.String()).Wrap(auth.ErrNotFound)
	}
	c := clonePrincipal(&p)
	return &c, nil
}

// Update stores the email and admin flag of an existing principal.
func (r *PrincipalRepository) Update(_ context.Context, p *auth.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[p.ID]
	if !ok {
		return oops.Code("PRINCIPAL_NOT_FOUND").With("principal_id", p.ID.String()).Wrap(auth.ErrNotFound)
	}
	if r.emailTaken(p.Email, p.ID) {
		return oops.Code("AUTH_EMAIL_TAKEN").With("email", p.Email).Wrap(auth.ErrEmailTaken)
	}
	existing.Email = p.Email
	existing.IsAdmin = p.IsAdmin
	existing.UpdatedAt = time.Now()
	r.byID[p.ID] = existing
	return nil
}

// UpdateCredential replaces the stored credential of a principal.
func (r *PrincipalRepository) UpdateCredential(_ context.Context, id ulid.ULID, cred auth.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return oops.Code("PRINCIPAL_NOT_FOUND").With("principal_id", id.String()).Wrap(auth.ErrNotFound)
	}
	existing.SetCredential(auth.Credential{
		Hash:   slices.Clone(cred.Hash),
		Salt:   slices.Clone(cred.Salt),
		Params: cred.Params,
	})
	r.byID[id] = existing
	return nil
}

// Delete removes a principal.
func (r *PrincipalRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return oops.Code("PRINCIPAL_NOT_FOUND").With("principal_id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}

// List returns every principal ordered by creation time.
func (r *PrincipalRepository) List(_ context.Context) ([]*auth.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*auth.Principal, 0, len(r.byID))
	for _, p := range r.byID {
		c := clonePrincipal(&p)
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *auth.Principal) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return out, nil
}

// emailTaken must be called with r.mu held.
func (r *PrincipalRepository) emailTaken(email string, except ulid.ULID) bool {
	for id, p := range r.byID {
		if id != except && strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}

func clonePrincipal(p *auth.Principal) auth.Principal {
	c := *p
	c.PasswordHash = slices.Clone(p.PasswordHash)
	c.Salt = slices.Clone(p.Salt)
	return c
}

var _ auth.PrincipalRepository = (*PrincipalRepository)(nil)
