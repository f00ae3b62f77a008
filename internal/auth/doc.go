// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package auth provides password credentials and authentication for MyJournal.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewPrincipal - creates a Principal with a normalized email and derived credential
//   - NewSession - creates a Session with validated principal and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
//
// # Authenticators
//
// Two independent authenticators share the PrincipalStore and PasswordHasher:
//   - SessionAuthenticator - interactive login, session resolve and logout
//   - CredentialAuthenticator - per-request verification with no session state
//
// Both return ErrAuthFailed for an unknown identifier and for a wrong password,
// and both pay the cost of one key derivation on either path.
//
// Authenticators are created with New*Authenticator constructors that validate
// dependencies and derive their dummy credential up front.
package auth
