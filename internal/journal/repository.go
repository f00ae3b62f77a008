// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package journal

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// EntryRepository manages entry persistence.
type EntryRepository interface {
	// Create persists a new entry.
	Create(ctx context.Context, e *Entry) error

	// Get retrieves an entry by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id ulid.ULID) (*Entry, error)

	// ListByOwner returns the owner's entries, newest first.
	ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*Entry, error)

	// Update stores the mutable fields of an existing entry.
	Update(ctx context.Context, e *Entry) error

	// Delete removes an entry by ID.
	Delete(ctx context.Context, id ulid.ULID) error
}
