// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package postgres implements journal.EntryRepository on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/journal"
	"github.com/myjournal/myjournal/internal/store"
)

const entryColumns = `id, owner_id, entry_date, mood, body, location, weather, updated_at`

// EntryRepository implements journal.EntryRepository using PostgreSQL.
type EntryRepository struct {
	db store.Querier
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db store.Querier) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create stores a new entry.
func (r *EntryRepository) Create(ctx context.Context, e *journal.Entry) error {
	loc, err := marshalLocation(e.Location)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID.String(), e.OwnerID.String(), e.Date, e.Mood, e.Text, loc, e.Weather, e.UpdatedAt)
	if err != nil {
		return oops.Code("ENTRY_CREATE_FAILED").
			With("operation", "insert entry").
			With("entry_id", e.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (r *EntryRepository) Get(ctx context.Context, id ulid.ULID) (*journal.Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id.String())
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("JOURNAL_NOT_FOUND").
			With("entry_id", id.String()).
			Wrap(journal.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ENTRY_GET_FAILED").
			With("operation", "get entry").
			With("entry_id", id.String()).
			Wrap(err)
	}
	return e, nil
}

// ListByOwner returns the owner's entries, newest first.
func (r *EntryRepository) ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*journal.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE owner_id = $1
		ORDER BY entry_date DESC, id DESC
	`, ownerID.String())
	if err != nil {
		return nil, oops.Code("ENTRY_LIST_FAILED").
			With("operation", "list entries").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var entries []*journal.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ENTRY_ROWS_ERROR").
			With("operation", "iterate entry rows").
			Wrap(err)
	}
	return entries, nil
}

// Update stores the mutable fields of an entry. The owner is never changed.
func (r *EntryRepository) Update(ctx context.Context, e *journal.Entry) error {
	loc, err := marshalLocation(e.Location)
	if err != nil {
		return err
	}
	result, err := r.db.Exec(ctx, `
		UPDATE entries
		SET entry_date = $2, mood = $3, body = $4, location = $5, weather = $6, updated_at = $7
		WHERE id = $1
	`, e.ID.String(), e.Date, e.Mood, e.Text, loc, e.Weather, e.UpdatedAt)
	if err != nil {
		return oops.Code("ENTRY_UPDATE_FAILED").
			With("operation", "update entry").
			With("entry_id", e.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("JOURNAL_NOT_FOUND").
			With("entry_id", e.ID.String()).
			Wrap(journal.ErrNotFound)
	}
	return nil
}

// Delete removes an entry.
func (r *EntryRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("ENTRY_DELETE_FAILED").
			With("operation", "delete entry").
			With("entry_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("JOURNAL_NOT_FOUND").
			With("entry_id", id.String()).
			Wrap(journal.ErrNotFound)
	}
	return nil
}

// DeleteByOwner removes every entry of an owner.
func (r *EntryRepository) DeleteByOwner(ctx context.Context, ownerID ulid.ULID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM entries WHERE owner_id = $1`, ownerID.String()); err != nil {
		return oops.Code("ENTRY_DELETE_BY_OWNER_FAILED").
			With("operation", "delete entries by owner").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	return nil
}

// scanEntry scans a single row into an Entry.
// pgx.ErrNoRows is returned unchanged for callers to wrap.
func scanEntry(row pgx.Row) (*journal.Entry, error) {
	var (
		idStr, ownerStr string
		loc             []byte
		e               journal.Entry
	)
	err := row.Scan(&idStr, &ownerStr, &e.Date, &e.Mood, &e.Text, &loc, &e.Weather, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("ENTRY_SCAN_FAILED").
			With("operation", "scan entry").
			Wrap(err)
	}
	if e.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("ENTRY_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if e.OwnerID, err = ulid.Parse(ownerStr); err != nil {
		return nil, oops.Code("ENTRY_INVALID_OWNER_ID").With("owner_id", ownerStr).Wrap(err)
	}
	if e.Location, err = unmarshalLocation(loc); err != nil {
		return nil, oops.With("entry_id", idStr).Wrap(err)
	}
	return &e, nil
}

func marshalLocation(p *journal.Point) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, oops.With("operation", "marshal location").Wrap(err)
	}
	return b, nil
}

func unmarshalLocation(data []byte) (*journal.Point, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p journal.Point
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, oops.Code("ENTRY_INVALID_LOCATION").With("operation", "unmarshal location").Wrap(err)
	}
	return &p, nil
}

// Compile-time interface check.
var _ journal.EntryRepository = (*EntryRepository)(nil)
