// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package web exposes the journal over HTTP using gin.
//
// Interactive routes authenticate with a session cookie issued by POST /login.
// Routes under /api authenticate every request with HTTP Basic credentials.
// Each protected route is wrapped exactly once by requireSession or
// requireBasic, and the wrapper hands the authenticated principal to the
// handler as an argument.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/myjournal/myjournal/internal/account"
	"github.com/myjournal/myjournal/internal/auth"
	"github.com/myjournal/myjournal/internal/journal"
)

// SessionCookie is the name of the interactive session cookie.
const SessionCookie = "myjournal_session"

var tracer = otel.Tracer("myjournal/web")

// SessionAuthenticator is the interactive login flow.
type SessionAuthenticator interface {
	Login(ctx context.Context, identifier, password string) (*auth.SessionGrant, error)
	Resolve(ctx context.Context, token string) (*auth.Principal, error)
	Logout(ctx context.Context, token string) error
}

// CredentialAuthenticator verifies credentials sent with every request.
type CredentialAuthenticator interface {
	Authenticate(ctx context.Context, identifier, password string) (*auth.Principal, error)
}

// RequestRecorder counts served requests.
type RequestRecorder interface {
	RecordRequest(method, route string, status int)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, string, int) {}

// Config holds dependencies for Server.
type Config struct {
	Sessions     SessionAuthenticator
	Credentials  CredentialAuthenticator
	Journal      *journal.Service
	Accounts     *account.Service
	Recorder     RequestRecorder
	Logger       *slog.Logger
	SecureCookie bool
}

// Server routes HTTP requests to the journal and account services.
type Server struct {
	sessions     SessionAuthenticator
	credentials  CredentialAuthenticator
	journal      *journal.Service
	accounts     *account.Service
	recorder     RequestRecorder
	logger       *slog.Logger
	secureCookie bool
	engine       *gin.Engine
}

// New creates a Server and registers its routes.
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("session authenticator is required")
	case cfg.Credentials == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("credential authenticator is required")
	case cfg.Journal == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("journal service is required")
	case cfg.Accounts == nil:
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("account service is required")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		sessions:     cfg.Sessions,
		credentials:  cfg.Credentials,
		journal:      cfg.Journal,
		accounts:     cfg.Accounts,
		recorder:     cfg.Recorder,
		logger:       cfg.Logger,
		secureCookie: cfg.SecureCookie,
		engine:       gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.observe())
	s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/", s.whoami)
	r.POST("/login", s.login)
	r.GET("/logout", s.logout)
	r.POST("/logout", s.logout)

	r.GET("/journal", s.requireSession(s.listEntries))
	r.POST("/journal", s.requireSession(s.createEntryForm))
	r.GET("/journal/:id", s.requireSession(s.getEntry))
	r.POST("/journal/:id/modify", s.requireSession(s.modifyEntryForm))
	r.POST("/journal/:id/delete", s.requireSession(s.deleteEntry))
	r.GET("/settings", s.requireSession(s.getSettings))
	r.POST("/settings", s.requireSession(s.updateSettings))

	api := r.Group("/api")
	api.GET("/entries", s.requireBasic(s.listEntries))
	api.POST("/entries", s.requireBasic(s.createEntry))
	api.GET("/entries/:id", s.requireBasic(s.getEntry))
	api.PATCH("/entries/:id", s.requireBasic(s.updateEntry))
	api.DELETE("/entries/:id", s.requireBasic(s.deleteEntry))

	api.GET("/users", s.requireBasic(s.listUsers))
	api.POST("/users", s.optionalBasic(s.registerUser))
	api.GET("/users/:id", s.requireBasic(s.getUser))
	api.PATCH("/users/:id", s.requireBasic(s.updateUser))
	api.DELETE("/users/:id", s.requireBasic(s.deleteUser))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

// observe traces and records every request once its handler chain has
// finished.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		s.recorder.RecordRequest(c.Request.Method, route, status)
		s.logger.DebugContext(ctx, "request served",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start))
	}
}
