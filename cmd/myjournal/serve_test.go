// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myjournal/myjournal/internal/web"
	"github.com/myjournal/myjournal/pkg/errutil"
)

// fastKDFConfig keeps argon2id cheap for end-to-end tests.
const fastKDFConfig = `
kdf:
  algorithm: argon2id
  iterations: 1
  memory_kib: 64
  threads: 1
  key_length: 32
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "myjournal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func startServe(t *testing.T, args ...string) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	configFile = writeConfig(t, fastKDFConfig)
	t.Cleanup(func() { configFile = "" })

	ready := make(chan string, 1)
	deps := &Deps{
		LogWriter: io.Discard,
		OnReady:   func(addr string) { ready <- addr },
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cmd := newServeCmd(deps)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(append([]string{
		"--listen", "127.0.0.1:0",
		"--metrics-addr", "",
		"--store-backend", "memory",
		"--session-backend", "memory",
	}, args...))

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	select {
	case addr := <-ready:
		return "http://" + addr, cancel, done
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not become ready")
	}
	return "", cancel, done
}

func TestServe_EndToEnd(t *testing.T) {
	base, cancel, done := startServe(t)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Post(base+"/api/users", "application/json",
		strings.NewReader(`{"email":"alice@example.com","password":"correct horse"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = client.PostForm(base+"/login", url.Values{"username": {"alice@example.com"}, "password": {"correct horse"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == web.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)

	req, err := http.NewRequest(http.MethodPost, base+"/journal", strings.NewReader(url.Values{"mood": {"fine"}, "entry": {"hello"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(session)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, base+"/api/entries", nil)
	require.NoError(t, err)
	req.SetBasicAuth("alice@example.com", "correct horse")
	resp, err = client.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"mood":"fine"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestServe_InvalidConfiguration(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	configFile = ""

	cmd := newServeCmd(&Deps{LogWriter: io.Discard})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--store-backend", "postgres"})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "field", "database.url")
}

func TestServe_ListenFailure(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	configFile = writeConfig(t, fastKDFConfig)
	t.Cleanup(func() { configFile = "" })

	cmd := newServeCmd(&Deps{
		LogWriter: io.Discard,
		ListenerFactory: func(string, string) (net.Listener, error) {
			return nil, errors.New("address already in use")
		},
	})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"--listen", "127.0.0.1:8080",
		"--metrics-addr", "",
		"--store-backend", "memory",
		"--session-backend", "memory",
	})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "LISTEN_FAILED")
}

func TestServe_BoltSessions(t *testing.T) {
	boltPath := filepath.Join(t.TempDir(), "sessions.db")
	_, cancel, done := startServe(t, "--session-backend", "bolt", "--session-bolt", boltPath)

	_, err := os.Stat(boltPath)
	assert.NoError(t, err, "bolt file is created")

	cancel()
	require.NoError(t, <-done)
}
