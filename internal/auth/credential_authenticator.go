// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package auth

import "context"

// CredentialAuthenticator verifies credentials presented with every request.
// It holds no session store, so it cannot trust or create session state.
type CredentialAuthenticator struct {
	check *credentialCheck
}

// NewCredentialAuthenticator creates a CredentialAuthenticator.
func NewCredentialAuthenticator(principals PrincipalStore, hasher PasswordHasher, opts ...Option) (*CredentialAuthenticator, error) {
	check, err := newCredentialCheck(SchemeCredential, principals, hasher, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &CredentialAuthenticator{check: check}, nil
}

// Authenticate returns the principal for identifier if password matches.
// Every call performs a full derivation. A request carrying neither an
// identifier nor a password presented no credential and returns
// ErrUnauthenticated without a lookup.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, identifier, password string) (*Principal, error) {
	if identifier == "" && password == "" {
		return nil, errUnauthenticated()
	}
	return a.check.check(ctx, identifier, password)
}
