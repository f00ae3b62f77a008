// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myjournal/myjournal/internal/account"
	"github.com/myjournal/myjournal/internal/auth"
	"github.com/myjournal/myjournal/internal/auth/memory"
	"github.com/myjournal/myjournal/internal/journal"
	journalmem "github.com/myjournal/myjournal/internal/journal/memory"
	"github.com/myjournal/myjournal/internal/web"
	"github.com/myjournal/myjournal/pkg/errutil"
)

const testPassword = "correct horse"

type requestLog struct {
	mu    sync.Mutex
	calls []string
}

func (r *requestLog) RecordRequest(method, route string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, method+" "+route+" "+http.StatusText(status))
}

func (r *requestLog) has(call string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == call {
			return true
		}
	}
	return false
}

type fixture struct {
	handler  http.Handler
	sessions *memory.SessionStore
	entries  *journalmem.EntryRepository
	requests *requestLog
	alice    *auth.Principal
	bob      *auth.Principal
	admin    *auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hasher, err := auth.NewKeyDeriver(auth.KDFParams{
		Algorithm:  auth.AlgorithmArgon2id,
		Iterations: 1,
		MemoryKiB:  64,
		Threads:    1,
		KeyLength:  32,
	}, auth.DefaultSaltLength)
	require.NoError(t, err)

	principals := memory.NewPrincipalRepository()
	sessions := memory.NewSessionStore()
	entries := journalmem.NewEntryRepository()

	sessionAuth, err := auth.NewSessionAuthenticator(principals, sessions, hasher, auth.WithLogger(logger))
	require.NoError(t, err)
	credAuth, err := auth.NewCredentialAuthenticator(principals, hasher, auth.WithLogger(logger))
	require.NoError(t, err)

	journalSvc, err := journal.NewService(journal.ServiceConfig{Repo: entries, Owners: principals, Logger: logger})
	require.NoError(t, err)
	accountSvc, err := account.NewService(account.Config{
		Principals: principals,
		Hasher:     hasher,
		Sessions:   sessions,
		OwnedData:  []account.OwnedDataDeleter{entries},
		Logger:     logger,
	})
	require.NoError(t, err)

	newUser := func(email string, admin bool) *auth.Principal {
		cred, err := hasher.NewCredential(testPassword)
		require.NoError(t, err)
		p, err := auth.NewPrincipal(email, cred, admin)
		require.NoError(t, err)
		require.NoError(t, principals.Create(ctx, p))
		return p
	}

	requests := &requestLog{}
	srv, err := web.New(web.Config{
		Sessions:    sessionAuth,
		Credentials: credAuth,
		Journal:     journalSvc,
		Accounts:    accountSvc,
		Recorder:    requests,
		Logger:      logger,
	})
	require.NoError(t, err)

	return &fixture{
		handler:  srv.Handler(),
		sessions: sessions,
		entries:  entries,
		requests: requests,
		alice:    newUser("alice@example.com", false),
		bob:      newUser("bob@example.com", false),
		admin:    newUser("admin@example.com", true),
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func basic(req *http.Request, email string) *http.Request {
	req.SetBasicAuth(email, testPassword)
	return req
}

// login returns the session cookie for email.
func (f *fixture) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := f.do(formRequest(http.MethodPost, "/login", url.Values{"username": {email}, "password": {testPassword}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == web.SessionCookie {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func withCookie(req *http.Request, c *http.Cookie) *http.Request {
	req.AddCookie(c)
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func entryID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	entry, ok := decode(t, rec)["entry"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return entry["id"].(string)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := web.New(web.Config{})
	errutil.AssertErrorCode(t, err, "WEB_INVALID_DEPENDENCY")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	t.Run("sets an http-only lax session cookie", func(t *testing.T) {
		c := f.login(t, "alice@example.com")
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.Len(t, c.Value, 64)
		assert.Positive(t, c.MaxAge)
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		wrong := f.do(formRequest(http.MethodPost, "/login", url.Values{"username": {"alice@example.com"}, "password": {"nope"}}))
		unknown := f.do(formRequest(http.MethodPost, "/login", url.Values{"username": {"mallory@example.com"}, "password": {testPassword}}))

		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
		assert.Empty(t, wrong.Result().Cookies())
	})

	t.Run("accepts json", func(t *testing.T) {
		rec := f.do(jsonRequest(t, http.MethodPost, "/login", map[string]string{"username": "bob@example.com", "password": testPassword}))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, f.bob.ID.String(), decode(t, rec)["principal_id"])
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	c := f.login(t, "alice@example.com")

	rec := f.do(withCookie(httptest.NewRequest(http.MethodPost, "/logout", nil), c))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(withCookie(httptest.NewRequest(http.MethodGet, "/journal", nil), c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	t.Run("without a session is not an error", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/logout", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	f := newFixture(t)
	first := f.login(t, "alice@example.com")

	req := formRequest(http.MethodPost, "/login", url.Values{"username": {"alice@example.com"}, "password": {testPassword}})
	rec := f.do(withCookie(req, first))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(withCookie(httptest.NewRequest(http.MethodGet, "/journal", nil), first))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWhoami(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["authenticated"])

	c := f.login(t, "alice@example.com")
	rec = f.do(withCookie(httptest.NewRequest(http.MethodGet, "/", nil), c))
	body := decode(t, rec)
	assert.Equal(t, true, body["authenticated"])
	principal := body["principal"].(map[string]any)
	assert.Equal(t, "alice@example.com", principal["email"])
	assert.NotContains(t, rec.Body.String(), "salt")
}

func TestSessionRoutes_RequireSession(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/journal", "/settings"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	t.Run("forged cookie is cleared", func(t *testing.T) {
		req := withCookie(httptest.NewRequest(http.MethodGet, "/journal", nil),
			&http.Cookie{Name: web.SessionCookie, Value: strings.Repeat("ab", 32)})
		rec := f.do(req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotEmpty(t, rec.Result().Cookies())
		assert.Negative(t, rec.Result().Cookies()[0].MaxAge)
	})
}

func TestInteractiveJournal(t *testing.T) {
	f := newFixture(t)
	c := f.login(t, "alice@example.com")

	rec := f.do(withCookie(formRequest(http.MethodPost, "/journal", url.Values{
		"mood":  {"calm"},
		"entry": {"walked by the river"},
		"date":  {"2026-03-01"},
		"lat":   {"52.5"},
		"lon":   {"13.4"},
	}), c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := entryID(t, rec)

	rec = f.do(withCookie(httptest.NewRequest(http.MethodGet, "/journal", nil), c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["entries"], 1)

	t.Run("modify keeps fields left empty", func(t *testing.T) {
		rec := f.do(withCookie(formRequest(http.MethodPost, "/journal/"+id+"/modify", url.Values{"mood": {"tired"}}), c))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		entry := decode(t, rec)["entry"].(map[string]any)
		assert.Equal(t, "tired", entry["mood"])
		assert.Equal(t, "walked by the river", entry["text"])
	})

	t.Run("mood is required", func(t *testing.T) {
		rec := f.do(withCookie(formRequest(http.MethodPost, "/journal", url.Values{"entry": {"no mood"}}), c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "JOURNAL_INVALID_ENTRY", decode(t, rec)["code"])
	})

	t.Run("half a location is rejected", func(t *testing.T) {
		rec := f.do(withCookie(formRequest(http.MethodPost, "/journal", url.Values{"mood": {"x"}, "entry": {"y"}, "lat": {"1"}}), c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-finite location is rejected", func(t *testing.T) {
		for _, lat := range []string{"NaN", "Inf", "-Inf"} {
			rec := f.do(withCookie(formRequest(http.MethodPost, "/journal", url.Values{
				"mood": {"ok"}, "entry": {"text"}, "lat": {lat}, "lon": {"0"},
			}), c))
			assert.Equal(t, http.StatusBadRequest, rec.Code, lat)
			assert.Equal(t, "JOURNAL_INVALID_ENTRY", decode(t, rec)["code"], lat)
		}
		rec := f.do(withCookie(httptest.NewRequest(http.MethodGet, "/journal", nil), c))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode(t, rec)["entries"], 1)
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.do(withCookie(httptest.NewRequest(http.MethodPost, "/journal/"+id+"/delete", nil), c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 0, f.entries.Len())
	})
}

func TestJournal_Authorization(t *testing.T) {
	f := newFixture(t)

	rec := f.do(basic(jsonRequest(t, http.MethodPost, "/api/entries", map[string]string{"mood": "ok", "text": "private"}), "alice@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := entryID(t, rec)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"owner reads", basic(httptest.NewRequest(http.MethodGet, "/api/entries/"+id, nil), "alice@example.com"), http.StatusOK},
		{"admin reads", basic(httptest.NewRequest(http.MethodGet, "/api/entries/"+id, nil), "admin@example.com"), http.StatusOK},
		{"other user cannot read", basic(httptest.NewRequest(http.MethodGet, "/api/entries/"+id, nil), "bob@example.com"), http.StatusForbidden},
		{"other user cannot modify", basic(jsonRequest(t, http.MethodPatch, "/api/entries/"+id, map[string]string{"mood": "hacked"}), "bob@example.com"), http.StatusForbidden},
		{"other user cannot delete", basic(httptest.NewRequest(http.MethodDelete, "/api/entries/"+id, nil), "bob@example.com"), http.StatusForbidden},
		{"other user cannot list", basic(httptest.NewRequest(http.MethodGet, "/api/entries?owner="+f.alice.ID.String(), nil), "bob@example.com"), http.StatusForbidden},
		{"admin lists owner", basic(httptest.NewRequest(http.MethodGet, "/api/entries?owner="+f.alice.ID.String(), nil), "admin@example.com"), http.StatusOK},
		{"unknown owner", basic(httptest.NewRequest(http.MethodGet, "/api/entries?owner=01ARZ3NDEKTSV4RRFFQ69G5FAV", nil), "admin@example.com"), http.StatusNotFound},
		{"unknown owner before access decision", basic(httptest.NewRequest(http.MethodGet, "/api/entries?owner=01ARZ3NDEKTSV4RRFFQ69G5FAV", nil), "bob@example.com"), http.StatusNotFound},
		{"missing entry", basic(httptest.NewRequest(http.MethodGet, "/api/entries/01ARZ3NDEKTSV4RRFFQ69G5FAV", nil), "bob@example.com"), http.StatusNotFound},
		{"malformed id", basic(httptest.NewRequest(http.MethodGet, "/api/entries/not-an-id", nil), "bob@example.com"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusForbidden {
				assert.NotContains(t, rec.Body.String(), "private")
			}
		})
	}

	rec = f.do(basic(httptest.NewRequest(http.MethodGet, "/api/entries/"+id, nil), "alice@example.com"))
	assert.Contains(t, rec.Body.String(), `"mood":"ok"`)
}

func TestAPI_BasicAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/entries", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.SetBasicAuth("alice@example.com", "wrong")
	rec = f.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	rec = f.do(basic(httptest.NewRequest(http.MethodGet, "/api/entries", nil), "alice@example.com"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())

	t.Run("creates no session", func(t *testing.T) {
		assert.Empty(t, rec.Result().Cookies())
	})
}

func TestAPI_Users(t *testing.T) {
	f := newFixture(t)

	t.Run("anonymous registration", func(t *testing.T) {
		rec := f.do(jsonRequest(t, http.MethodPost, "/api/users", map[string]any{"email": "Carol@Example.com", "password": "long enough"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		user := decode(t, rec)["user"].(map[string]any)
		assert.Equal(t, "carol@example.com", user["email"])
		assert.Equal(t, false, user["admin"])
	})

	t.Run("anonymous admin registration is forbidden", func(t *testing.T) {
		rec := f.do(jsonRequest(t, http.MethodPost, "/api/users", map[string]any{"email": "eve@example.com", "password": "long enough", "admin": true}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin creates admin", func(t *testing.T) {
		rec := f.do(basic(jsonRequest(t, http.MethodPost, "/api/users", map[string]any{"email": "ops@example.com", "password": "long enough", "admin": true}), "admin@example.com"))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("bad credentials on registration are rejected", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/users", map[string]any{"email": "dan@example.com", "password": "long enough"})
		req.SetBasicAuth("alice@example.com", "wrong")
		assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec := f.do(jsonRequest(t, http.MethodPost, "/api/users", map[string]any{"email": "alice@example.com", "password": "long enough"}))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("short password", func(t *testing.T) {
		rec := f.do(jsonRequest(t, http.MethodPost, "/api/users", map[string]any{"email": "frank@example.com", "password": "short"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid email", func(t *testing.T) {
		rec := f.do(jsonRequest(t, http.MethodPost, "/api/users", map[string]any{"email": "not an email", "password": "long enough"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("listing is admin only", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, f.do(basic(httptest.NewRequest(http.MethodGet, "/api/users", nil), "alice@example.com")).Code)
		assert.Equal(t, http.StatusOK, f.do(basic(httptest.NewRequest(http.MethodGet, "/api/users", nil), "admin@example.com")).Code)
	})

	t.Run("users read only themselves", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, f.do(basic(httptest.NewRequest(http.MethodGet, "/api/users/"+f.alice.ID.String(), nil), "alice@example.com")).Code)
		assert.Equal(t, http.StatusForbidden, f.do(basic(httptest.NewRequest(http.MethodGet, "/api/users/"+f.alice.ID.String(), nil), "bob@example.com")).Code)
	})

	t.Run("users cannot grant themselves admin", func(t *testing.T) {
		rec := f.do(basic(jsonRequest(t, http.MethodPatch, "/api/users/"+f.bob.ID.String(), map[string]any{"admin": true}), "bob@example.com"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin deletes user and their data", func(t *testing.T) {
		rec := f.do(basic(jsonRequest(t, http.MethodPost, "/api/entries", map[string]string{"mood": "m", "text": "t"}), "bob@example.com"))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = f.do(basic(httptest.NewRequest(http.MethodDelete, "/api/users/"+f.bob.ID.String(), nil), "admin@example.com"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 0, f.entries.Len())

		rec = f.do(basic(httptest.NewRequest(http.MethodGet, "/api/entries", nil), "bob@example.com"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	c := f.login(t, "alice@example.com")

	rec := f.do(withCookie(httptest.NewRequest(http.MethodGet, "/settings", nil), c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")

	rec = f.do(withCookie(formRequest(http.MethodPost, "/settings", url.Values{
		"account":  {"alice@new.example.com"},
		"password": {"battery staple"},
	}), c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("session follows the renamed account", func(t *testing.T) {
		rec := f.do(withCookie(httptest.NewRequest(http.MethodGet, "/", nil), c))
		assert.Contains(t, rec.Body.String(), "alice@new.example.com")
	})

	t.Run("new password is required", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.SetBasicAuth("alice@new.example.com", "battery staple")
		assert.Equal(t, http.StatusOK, f.do(req).Code)

		req = httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.SetBasicAuth("alice@new.example.com", testPassword)
		assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	})
}

func TestRequestsAreRecorded(t *testing.T) {
	f := newFixture(t)

	f.do(httptest.NewRequest(http.MethodGet, "/api/entries", nil))
	f.do(httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.True(t, f.requests.has("GET /api/entries Unauthorized"))
	assert.True(t, f.requests.has("GET unmatched Not Found"))
}
