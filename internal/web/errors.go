// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/myjournal/myjournal/internal/access"
	"github.com/myjournal/myjournal/internal/account"
	"github.com/myjournal/myjournal/internal/auth"
	"github.com/myjournal/myjournal/internal/journal"
	"github.com/myjournal/myjournal/pkg/errutil"
)

var (
	errBadRequest = errors.New("bad request")
	errNoResource = errors.New("not found")
)

func badRequest(field string, err error) error {
	return oops.Code("WEB_INVALID_INPUT").
		With("field", field).
		Wrapf(errBadRequest, "%s: %v", field, err)
}

// noResource is returned for identifiers that cannot name a resource.
// It answers exactly like a lookup miss.
func noResource(raw string) error {
	return oops.Code("WEB_NOT_FOUND").With("id", raw).Wrap(errNoResource)
}

func unauthenticated() error {
	return oops.Code("AUTH_UNAUTHENTICATED").Wrap(auth.ErrUnauthenticated)
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var ve *journal.ValidationError
	switch {
	case errors.Is(err, auth.ErrAuthFailed), errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, journal.ErrNotFound), errors.Is(err, errNoResource):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	case errors.As(err, &ve),
		errors.Is(err, account.ErrInvalidPassword),
		errors.Is(err, errBadRequest),
		errutil.Code(err) == "AUTH_INVALID_EMAIL":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error response. Server errors are logged and
// their details withheld from the client.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		errutil.LogErrorContext(c.Request.Context(), s.logger, "request failed", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	case http.StatusUnauthorized:
		msg := auth.ErrUnauthenticated.Error()
		if errors.Is(err, auth.ErrAuthFailed) {
			msg = auth.ErrAuthFailed.Error()
		}
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	case http.StatusForbidden:
		c.AbortWithStatusJSON(status, gin.H{"error": access.ErrNotAuthorized.Error()})
		return
	case http.StatusNotFound:
		c.AbortWithStatusJSON(status, gin.H{"error": "not found"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": errutil.Code(err)})
}
