// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/myjournal/myjournal/internal/account"
	"github.com/myjournal/myjournal/internal/auth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// settingsForm changes the caller's own account. Empty fields are left alone.
type settingsForm struct {
	Account  string `form:"account" json:"account"`
	Password string `form:"password" json:"password"`
}

func (s *Server) getSettings(c *gin.Context, p *auth.Principal) {
	me, err := s.accounts.Get(c.Request.Context(), p, p.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": me})
}

func (s *Server) updateSettings(c *gin.Context, p *auth.Principal) {
	var form settingsForm
	if err := c.ShouldBind(&form); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	var patch account.AccountPatch
	if form.Account != "" {
		patch.Email = &form.Account
	}
	if form.Password != "" {
		patch.Password = &form.Password
	}
	me, err := s.accounts.Update(c.Request.Context(), p, p.ID, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": me})
}

func (s *Server) listUsers(c *gin.Context, p *auth.Principal) {
	users, err := s.accounts.List(c.Request.Context(), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	if users == nil {
		users = []*auth.Principal{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// registerUser creates an account. requester is nil for anonymous sign-up.
func (s *Server) registerUser(c *gin.Context, requester *auth.Principal) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	p, err := s.accounts.Register(c.Request.Context(), requester, req.Email, req.Password, req.Admin)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": p})
}

func (s *Server) getUser(c *gin.Context, p *auth.Principal) {
	id, err := parseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	u, err := s.accounts.Get(c.Request.Context(), p, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (s *Server) updateUser(c *gin.Context, p *auth.Principal) {
	id, err := parseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var patch account.AccountPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.fail(c, badRequest("body", err))
		return
	}
	u, err := s.accounts.Update(c.Request.Context(), p, id, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (s *Server) deleteUser(c *gin.Context, p *auth.Principal) {
	id, err := parseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.accounts.Delete(c.Request.Context(), p, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
