// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when registering an email that already has an account.
var ErrEmailTaken = errors.New("email already registered")

// ErrAuthFailed is returned when presented credentials do not identify a principal.
// An unknown identifier and a wrong password produce the same error.
var ErrAuthFailed = errors.New("invalid email or password")

// ErrUnauthenticated is returned when no valid session or credentials were presented.
var ErrUnauthenticated = errors.New("authentication required")

// ErrConfiguration is returned when hashing parameters are unusable or no secure
// randomness is available. It must abort startup.
var ErrConfiguration = errors.New("invalid credential configuration")

// errAuthFailed builds the single AuthFailed outcome. It carries no context so
// every failure path has the same shape.
func errAuthFailed() error {
	return oops.Code("AUTH_FAILED").Wrap(ErrAuthFailed)
}

func errUnauthenticated() error {
	return oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrUnauthenticated)
}

func errConfiguration(format string, args ...any) error {
	return oops.Code("AUTH_CONFIG_INVALID").Wrapf(ErrConfiguration, format, args...)
}
