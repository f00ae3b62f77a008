// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package journal

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/access"
	"github.com/myjournal/myjournal/internal/auth"
)

// OwnerLookup resolves the principal that owns a journal.
type OwnerLookup interface {
	GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error)
}

// ServiceConfig holds dependencies for Service.
type ServiceConfig struct {
	Repo   EntryRepository
	Owners OwnerLookup
	Guard  *access.Guard
	Logger *slog.Logger
}

// Service provides authorized access to journal entries.
// Every operation on an existing entry loads it first, then asks the guard,
// then acts.
type Service struct {
	repo   EntryRepository
	owners OwnerLookup
	guard  *access.Guard
	logger *slog.Logger
}

// NewService creates a new Service. A nil guard gets a default entry guard.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil {
		return nil, oops.Code("JOURNAL_INVALID_DEPENDENCY").Errorf("entry repository is required")
	}
	if cfg.Owners == nil {
		return nil, oops.Code("JOURNAL_INVALID_DEPENDENCY").Errorf("owner lookup is required")
	}
	if cfg.Guard == nil {
		cfg.Guard = access.NewGuard("entry")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{repo: cfg.Repo, owners: cfg.Owners, guard: cfg.Guard, logger: cfg.Logger}, nil
}

// Create writes a new entry owned by p.
func (s *Service) Create(ctx context.Context, p *auth.Principal, in NewEntry) (*Entry, error) {
	if p == nil {
		return nil, unauthenticated()
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	e := &Entry{
		ID:        ulid.Make(),
		OwnerID:   p.ID,
		Date:      date.UTC(),
		Mood:      strings.TrimSpace(in.Mood),
		Text:      strings.TrimSpace(in.Text),
		Location:  in.Location,
		Weather:   in.Weather,
		UpdatedAt: time.Now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, oops.Code("JOURNAL_CREATE_FAILED").
			With("entry_id", e.ID.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "entry created", "entry_id", e.ID.String(), "owner_id", p.ID.String())
	return e, nil
}

// List returns p's own entries, newest first.
func (s *Service) List(ctx context.Context, p *auth.Principal) ([]*Entry, error) {
	if p == nil {
		return nil, unauthenticated()
	}
	return s.list(ctx, p.ID)
}

// ListFor returns the entries owned by ownerID. Only the owner or an admin
// may list them. An unknown owner is reported before any access decision.
func (s *Service) ListFor(ctx context.Context, p *auth.Principal, ownerID ulid.ULID) ([]*Entry, error) {
	if p == nil {
		return nil, unauthenticated()
	}
	if _, err := s.owners.GetByID(ctx, ownerID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("JOURNAL_OWNER_NOT_FOUND").
				With("owner_id", ownerID.String()).
				Wrap(err)
		}
		return nil, oops.Code("JOURNAL_LIST_FAILED").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	if err := s.guard.Authorize(p, ownerID, access.Read); err != nil {
		return nil, err
	}
	return s.list(ctx, ownerID)
}

func (s *Service) list(ctx context.Context, ownerID ulid.ULID) ([]*Entry, error) {
	entries, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, oops.Code("JOURNAL_LIST_FAILED").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	return entries, nil
}

// Get returns an entry after checking read access.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id ulid.ULID) (*Entry, error) {
	return s.load(ctx, p, id, access.Read)
}

// Update applies patch to an entry after checking modify access.
func (s *Service) Update(ctx context.Context, p *auth.Principal, id ulid.ULID, patch EntryPatch) (*Entry, error) {
	current, err := s.load(ctx, p, id, access.Modify)
	if err != nil {
		return nil, err
	}

	updated := current.Apply(patch)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, oops.Code("JOURNAL_UPDATE_FAILED").
			With("entry_id", id.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "entry updated", "entry_id", id.String(), "principal_id", p.ID.String())
	return updated, nil
}

// Delete removes an entry after checking delete access.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id ulid.ULID) error {
	if _, err := s.load(ctx, p, id, access.Delete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return oops.Code("JOURNAL_DELETE_FAILED").
			With("entry_id", id.String()).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "entry deleted", "entry_id", id.String(), "principal_id", p.ID.String())
	return nil
}

// load fetches an entry and authorizes op against its owner. A missing entry
// is reported before any access decision.
func (s *Service) load(ctx context.Context, p *auth.Principal, id ulid.ULID, op access.Operation) (*Entry, error) {
	if p == nil {
		return nil, unauthenticated()
	}
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("JOURNAL_GET_FAILED").
			With("entry_id", id.String()).
			Wrap(err)
	}
	if err := s.guard.Authorize(p, e.OwnerID, op); err != nil {
		return nil, err
	}
	return e, nil
}

func unauthenticated() error {
	return oops.Code("AUTH_UNAUTHENTICATED").Wrap(auth.ErrUnauthenticated)
}
