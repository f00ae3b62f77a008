// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/myjournal/myjournal/internal/auth"
)

const basicChallenge = `Basic realm="myjournal", charset="UTF-8"`

// principalHandler is a handler that runs only for an authenticated principal.
type principalHandler func(c *gin.Context, p *auth.Principal)

type loginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// requireSession resolves the session cookie before running h.
func (s *Server) requireSession(h principalHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.sessionPrincipal(c)
		if err != nil {
			if _, cerr := c.Cookie(SessionCookie); cerr == nil && errors.Is(err, auth.ErrUnauthenticated) {
				s.clearSessionCookie(c)
			}
			s.fail(c, err)
			return
		}
		h(c, p)
	}
}

// requireBasic verifies the request's Basic credentials before running h.
func (s *Server) requireBasic(h principalHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", basicChallenge)
			s.fail(c, unauthenticated())
			return
		}
		p, err := s.credentials.Authenticate(c.Request.Context(), user, pass)
		if err != nil {
			c.Header("WWW-Authenticate", basicChallenge)
			s.fail(c, err)
			return
		}
		h(c, p)
	}
}

// optionalBasic runs h with a nil principal when no credentials were sent.
// Credentials that were sent must be valid.
func (s *Server) optionalBasic(h principalHandler) gin.HandlerFunc {
	withCredentials := s.requireBasic(h)
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			h(c, nil)
			return
		}
		withCredentials(c)
	}
}

func (s *Server) sessionPrincipal(c *gin.Context) (*auth.Principal, error) {
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		return nil, unauthenticated()
	}
	return s.sessions.Resolve(c.Request.Context(), token)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}

	ctx := c.Request.Context()
	grant, err := s.sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}

	// A fresh login replaces whatever session the client carried.
	if old, err := c.Cookie(SessionCookie); err == nil && old != "" {
		if err := s.sessions.Logout(ctx, old); err != nil {
			s.logger.WarnContext(ctx, "failed to discard previous session", "error", err)
		}
	}

	s.setSessionCookie(c, grant.Token, grant.Session.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"principal_id": grant.Session.PrincipalID.String(),
		"expires_at":   grant.Session.ExpiresAt,
	})
}

func (s *Server) logout(c *gin.Context) {
	token, _ := c.Cookie(SessionCookie)
	if err := s.sessions.Logout(c.Request.Context(), token); err != nil {
		s.fail(c, err)
		return
	}
	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// whoami reports the principal behind the session cookie, if any.
func (s *Server) whoami(c *gin.Context) {
	p, err := s.sessionPrincipal(c)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			c.JSON(http.StatusOK, gin.H{"authenticated": false})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "principal": p})
}

func (s *Server) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", s.secureCookie, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", s.secureCookie, true)
}
