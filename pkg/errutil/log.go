// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package errutil holds helpers for working with oops errors.
package errutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a context for trace correlation.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if octx := oopsErr.Context(); len(octx) > 0 {
			attrs = append(attrs, "context", octx)
		}
		logger.ErrorContext(ctx, msg, attrs...)
	} else {
		logger.ErrorContext(ctx, msg, "error", err)
	}
}

// Code returns the oops code carried by err, or "" if it has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() == nil {
		return ""
	}
	return fmt.Sprint(oopsErr.Code())
}
