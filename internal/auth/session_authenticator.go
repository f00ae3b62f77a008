// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionGrant is the result of a successful interactive login.
// Token is the only copy of the plaintext session token.
type SessionGrant struct {
	Token   string
	Session *Session
}

// SessionAuthenticator implements interactive login: credentials are checked
// once and the principal ID is bound to a server-side session.
type SessionAuthenticator struct {
	check    *credentialCheck
	sessions SessionStore
	ttl      time.Duration
	logger   *slog.Logger
}

// NewSessionAuthenticator creates a SessionAuthenticator.
func NewSessionAuthenticator(principals PrincipalStore, sessions SessionStore, hasher PasswordHasher, opts ...Option) (*SessionAuthenticator, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	o := buildOptions(opts)
	if o.ttl < MinSessionTTL {
		return nil, errConfiguration("session ttl %s below minimum %s", o.ttl, MinSessionTTL)
	}

	check, err := newCredentialCheck(SchemeSession, principals, hasher, o)
	if err != nil {
		return nil, err
	}

	return &SessionAuthenticator{
		check:    check,
		sessions: sessions,
		ttl:      o.ttl,
		logger:   o.logger,
	}, nil
}

// Login verifies credentials and creates a session bound to the principal.
// Any credential failure returns ErrAuthFailed and creates no session.
func (a *SessionAuthenticator) Login(ctx context.Context, identifier, password string) (*SessionGrant, error) {
	principal, err := a.check.check(ctx, identifier, password)
	if err != nil {
		return nil, err
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(principal.ID, tokenHash, time.Now().Add(a.ttl))
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := a.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	a.logger.InfoContext(ctx, "session created", "session", session)
	return &SessionGrant{Token: token, Session: session}, nil
}

// Resolve returns the principal bound to token. A missing, malformed or
// expired session returns ErrUnauthenticated. The principal is always
// re-fetched so changes to email or admin flag apply immediately.
func (a *SessionAuthenticator) Resolve(ctx context.Context, token string) (*Principal, error) {
	if len(token) != sessionTokenHexLen {
		return nil, errUnauthenticated()
	}
	tokenHash := HashSessionToken(token)

	session, err := a.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errUnauthenticated()
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		a.discard(ctx, tokenHash, "expired")
		return nil, errUnauthenticated()
	}

	principal, err := a.check.principals.GetByID(ctx, session.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			a.discard(ctx, tokenHash, "principal deleted")
			return nil, errUnauthenticated()
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get principal by id").
			With("principal_id", session.PrincipalID.String()).
			Wrap(err)
	}
	return principal, nil
}

// Logout destroys the session for token. Unknown or already destroyed
// tokens are not an error.
func (a *SessionAuthenticator) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := a.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// LogoutAll destroys every session of a principal.
func (a *SessionAuthenticator) LogoutAll(ctx context.Context, principalID ulid.ULID) error {
	if err := a.sessions.DeleteByPrincipal(ctx, principalID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete sessions by principal").
			With("principal_id", principalID.String()).
			Wrap(err)
	}
	return nil
}

func (a *SessionAuthenticator) discard(ctx context.Context, tokenHash, reason string) {
	if err := a.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil {
		a.logger.WarnContext(ctx, "failed to discard session", "reason", reason, "error", err)
	}
}
