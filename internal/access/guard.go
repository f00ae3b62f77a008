// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package access decides whether a principal may act on an owned resource.
//
// The rule is the same for every resource kind, evaluated in order:
//  1. an admin may perform every operation on every resource
//  2. an owner may perform every operation on its own resource
//  3. everything else is denied
//
// A user record is owned by the user it describes. The guard never performs
// I/O: callers load the resource, confirm it exists and pass its owner ID.
package access

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/auth"
)

// ErrNotAuthorized is returned when an authenticated principal lacks
// permission for an operation.
var ErrNotAuthorized = errors.New("not authorized")

// Operation is an action performed on an owned resource.
type Operation uint8

// Operations covered by the guard.
const (
	Read Operation = iota + 1
	Modify
	Delete
)

func (o Operation) String() string {
	switch o {
	case Read:
		return "read"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("operation(%d)", uint8(o))
	}
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	return o >= Read && o <= Delete
}

// Decision records why a check allowed or denied access.
type Decision string

// Decision values.
const (
	AllowAdmin Decision = "allow_admin"
	AllowOwner Decision = "allow_owner"
	Deny       Decision = "deny"
)

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool {
	return d == AllowAdmin || d == AllowOwner
}

// DecisionRecorder observes guard decisions. Implementations must be safe for
// concurrent use.
type DecisionRecorder interface {
	RecordDecision(resource string, op Operation, decision Decision)
}

// Guard authorizes operations on one kind of resource.
type Guard struct {
	resource string
	recorder DecisionRecorder
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithDecisionRecorder reports every decision to r.
func WithDecisionRecorder(r DecisionRecorder) GuardOption {
	return func(g *Guard) {
		g.recorder = r
	}
}

// NewGuard creates a Guard for the named resource kind ("entry", "user").
// The name only labels decisions and errors.
func NewGuard(resource string, opts ...GuardOption) *Guard {
	g := &Guard{resource: resource}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resource returns the resource kind the guard protects.
func (g *Guard) Resource() string {
	return g.resource
}

// Decide evaluates the access rule. A nil principal, a zero owner ID or an
// unknown operation is denied.
func (g *Guard) Decide(p *auth.Principal, ownerID ulid.ULID, op Operation) Decision {
	d := decide(p, ownerID, op)
	if g.recorder != nil {
		g.recorder.RecordDecision(g.resource, op, d)
	}
	return d
}

// CanAccess reports whether p may perform op on a resource owned by ownerID.
func (g *Guard) CanAccess(p *auth.Principal, ownerID ulid.ULID, op Operation) bool {
	return g.Decide(p, ownerID, op).Allowed()
}

// Authorize is CanAccess for callers that propagate errors. A denial returns
// ErrNotAuthorized with code ACCESS_DENIED.
func (g *Guard) Authorize(p *auth.Principal, ownerID ulid.ULID, op Operation) error {
	if g.CanAccess(p, ownerID, op) {
		return nil
	}
	b := oops.Code("ACCESS_DENIED").
		With("resource", g.resource).
		With("operation", op.String()).
		With("owner_id", ownerID.String())
	if p != nil {
		b = b.With("principal_id", p.ID.String())
	}
	return b.Wrap(ErrNotAuthorized)
}

// RequireAdmin returns ErrNotAuthorized unless p is an admin. It guards
// operations with no single owner, such as listing every account.
func (g *Guard) RequireAdmin(p *auth.Principal, op Operation) error {
	if p != nil && p.IsAdmin && op.Valid() {
		if g.recorder != nil {
			g.recorder.RecordDecision(g.resource, op, AllowAdmin)
		}
		return nil
	}
	if g.recorder != nil {
		g.recorder.RecordDecision(g.resource, op, Deny)
	}
	b := oops.Code("ACCESS_DENIED").
		With("resource", g.resource).
		With("operation", op.String()).
		With("requires", "admin")
	if p != nil {
		b = b.With("principal_id", p.ID.String())
	}
	return b.Wrap(ErrNotAuthorized)
}

func decide(p *auth.Principal, ownerID ulid.ULID, op Operation) Decision {
	if p == nil || !op.Valid() || ownerID.Compare(ulid.ULID{}) == 0 {
		return Deny
	}
	if p.IsAdmin {
		return AllowAdmin
	}
	if p.ID.Compare(ownerID) == 0 {
		return AllowOwner
	}
	return Deny
}
