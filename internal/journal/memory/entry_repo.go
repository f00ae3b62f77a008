// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package memory provides an in-memory journal.EntryRepository.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/journal"
)

// EntryRepository is an in-memory journal.EntryRepository for testing and
// single-process development.
type EntryRepository struct {
	mu      sync.RWMutex
	entries map[ulid.ULID]journal.Entry
}

// NewEntryRepository creates an empty repository.
func NewEntryRepository() *EntryRepository {
	return &EntryRepository{entries: make(map[ulid.ULID]journal.Entry)}
}

// Create stores a new entry.
func (r *EntryRepository) Create(_ context.Context, e *journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.ID]; ok {
		return oops.Code("JOURNAL_DUPLICATE").With("entry_id", e.ID.String()).Errorf("entry already exists")
	}
	r.entries[e.ID] = cloneEntry(e)
	return nil
}

// Get retrieves an entry by ID.
func (r *EntryRepository) Get(_ context.Context, id ulid.ULID) (*journal.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, notFound(id)
	}
	c := cloneEntry(&e)
	return &c, nil
}

// ListByOwner returns the owner's entries, newest first.
func (r *EntryRepository) ListByOwner(_ context.Context, ownerID ulid.ULID) ([]*journal.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*journal.Entry
	for _, e := range r.entries {
		if e.OwnerID == ownerID {
			c := cloneEntry(&e)
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *journal.Entry) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.ID.Compare(a.ID)
	})
	return out, nil
}

// Update replaces an existing entry.
func (r *EntryRepository) Update(_ context.Context, e *journal.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.ID]; !ok {
		return notFound(e.ID)
	}
	r.entries[e.ID] = cloneEntry(e)
	return nil
}

// Delete removes an entry.
func (r *EntryRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return notFound(id)
	}
	delete(r.entries, id)
	return nil
}

// DeleteByOwner removes every entry of an owner.
func (r *EntryRepository) DeleteByOwner(_ context.Context, ownerID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		if e.OwnerID == ownerID {
			delete(r.entries, id)
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (r *EntryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func notFound(id ulid.ULID) error {
	return oops.Code("JOURNAL_NOT_FOUND").With("entry_id", id.String()).Wrap(journal.ErrNotFound)
}

func cloneEntry(e *journal.Entry) journal.Entry {
	c := *e
	if e.Location != nil {
		loc := *e.Location
		c.Location = &loc
	}
	return c
}

// Compile-time interface check.
var _ journal.EntryRepository = (*EntryRepository)(nil)
