// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// credentialCheck is the lookup-then-verify step shared by both authenticators.
// Each authenticator owns its own instance.
type credentialCheck struct {
	scheme     string
	principals PrincipalStore
	hasher     PasswordHasher
	logger     *slog.Logger
	recorder   Recorder

	// dummy is verified against when the identifier is unknown so the
	// not-found path costs the same derivation as a wrong password.
	dummy Credential
}

func newCredentialCheck(scheme string, principals PrincipalStore, hasher PasswordHasher, o options) (*credentialCheck, error) {
	if principals == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("principal store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if o.logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}

	// Random throwaway password: the dummy must never match anything.
	throwaway := make([]byte, 32)
	if _, err := rand.Read(throwaway); err != nil {
		return nil, errConfiguration("secure random source unavailable: %v", err)
	}
	dummy, err := hasher.NewCredential(hex.EncodeToString(throwaway))
	if err != nil {
		return nil, errConfiguration("derive dummy credential: %v", err)
	}

	return &credentialCheck{
		scheme:     scheme,
		principals: principals,
		hasher:     hasher,
		logger:     o.logger,
		recorder:   o.recorder,
		dummy:      dummy,
	}, nil
}

// check returns the principal identified by identifier if password matches.
// Unknown identifier and wrong password both return the AUTH_FAILED outcome.
func (c *credentialCheck) check(ctx context.Context, identifier, password string) (*Principal, error) {
	principal, lookupErr := c.principals.GetByEmail(ctx, NormalizeEmail(identifier))

	var target Credential
	var exists bool

	switch {
	case lookupErr == nil:
		target = principal.Credential()
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		target = c.dummy
	default:
		c.recorder.RecordAttempt(c.scheme, OutcomeError)
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get principal by email").
			Wrap(lookupErr)
	}

	// Always verify (constant-time operation for timing attack prevention)
	start := time.Now()
	valid, verifyErr := c.hasher.Verify(password, target.Salt, target.Hash, target.Params)
	if exists && c.hasher.NeedsUpgrade(target.Params) {
		// A credential stored with other parameters still pays one derivation
		// at the configured cost, the floor an unknown identifier pays.
		_, _ = c.hasher.Verify(password, c.dummy.Salt, c.dummy.Hash, c.dummy.Params)
	}
	c.recorder.RecordDerivation(time.Since(start))

	if verifyErr != nil {
		if !exists {
			c.recorder.RecordAttempt(c.scheme, OutcomeFailed)
			return nil, errAuthFailed()
		}
		c.recorder.RecordAttempt(c.scheme, OutcomeError)
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("principal_id", principal.ID.String()).
			Wrap(verifyErr)
	}

	if !exists || !valid {
		c.recorder.RecordAttempt(c.scheme, OutcomeFailed)
		c.logger.DebugContext(ctx, "authentication failed", "scheme", c.scheme)
		return nil, errAuthFailed()
	}

	c.recorder.RecordAttempt(c.scheme, OutcomeSuccess)
	c.upgrade(ctx, principal, password)
	return principal, nil
}

// upgrade rederives the credential with the configured parameters and a fresh
// salt when it was stored with older ones. Failures are logged; the login
// itself has already succeeded.
func (c *credentialCheck) upgrade(ctx context.Context, principal *Principal, password string) {
	if !c.hasher.NeedsUpgrade(principal.KDF) {
		return
	}
	updater, ok := c.principals.(CredentialUpdater)
	if !ok {
		return
	}

	cred, err := c.hasher.NewCredential(password)
	if err != nil {
		c.logger.WarnContext(ctx, "credential upgrade failed",
			"principal", principal, "operation", "derive", "error", err)
		return
	}
	if err := updater.UpdateCredential(ctx, principal.ID, cred); err != nil {
		c.logger.WarnContext(ctx, "credential upgrade failed",
			"principal", principal, "operation", "persist", "error", err)
		return
	}
	principal.SetCredential(cred)
	c.logger.InfoContext(ctx, "credential upgraded",
		"principal", principal, "kdf", cred.Params.String())
}
