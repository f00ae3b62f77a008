// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package auth

import (
	"log/slog"
	"time"
)

// Authentication schemes, used as metric labels.
const (
	SchemeSession    = "session"
	SchemeCredential = "credential"
)

// Attempt outcomes, used as metric labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeError   = "error"
)

// Recorder receives authentication events for metrics.
type Recorder interface {
	RecordAttempt(scheme, outcome string)
	RecordDerivation(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(string, string)   {}
func (nopRecorder) RecordDerivation(time.Duration) {}

type options struct {
	logger   *slog.Logger
	recorder Recorder
	ttl      time.Duration
}

// Option configures an authenticator.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithSessionTTL sets how long sessions live. Ignored by CredentialAuthenticator.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		recorder: nopRecorder{},
		ttl:      DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
