// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/config"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Directory.Backend = config.BackendMemory
	cfg.Session.Backend = config.BackendMemory
	cfg.Session.SweepInterval = 50 * time.Millisecond
	cfg.Log.Level = "error"
	cfg.Auth.Argon2 = config.Argon2Config{Time: 1, MemoryKiB: 64, Threads: 1}
	return cfg
}

func TestRunServe_MemoryBackends(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type addrs struct{ web, metrics string }
	readyCh := make(chan addrs, 1)
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, memoryConfig(), &serveHooks{ready: func(web, metrics string) {
			readyCh <- addrs{web, metrics}
		}})
	}()

	var a addrs
	select {
	case a = <-readyCh:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not become ready")
	}

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Timeout: 5 * time.Second}
	base := "http://" + a.web

	post := func(path, body string) (int, string) {
		resp, err := client.Post(base+path, "application/json", strings.NewReader(body)) //nolint:noctx // test request
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(b)
	}
	get := func(url string) (int, string) {
		resp, err := client.Get(url) //nolint:noctx // test request
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(b)
	}

	code, _ := post("/register", `{"email":"alice@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, code)

	code, _ = post("/login", `{"email":"alice@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, code)

	code, body := get(base + "/auth/status")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"isAuthenticated":true`)

	code, _ = get(base + "/logout")
	require.Equal(t, http.StatusOK, code)

	_, body = get(base + "/auth/status")
	assert.JSONEq(t, `{"isAuthenticated":false}`, body)

	code, _ = get("http://" + a.metrics + "/healthz/readiness")
	assert.Equal(t, http.StatusOK, code)
	_, metrics := get("http://" + a.metrics + "/metrics")
	assert.Contains(t, metrics, `gatehouse_auth_requests_total{operation="login",outcome="success"} 1`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestRunServe_MetricsDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Metrics.Addr = ""

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, cfg, &serveHooks{ready: func(_, metrics string) {
			assert.Empty(t, metrics)
			cancel()
		}})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		cancel()
		t.Fatal("serve did not shut down")
	}
}

func TestRunServe_InvalidLogLevel(t *testing.T) {
	cfg := memoryConfig()
	cfg.Log.Level = "loud"
	err := runServe(context.Background(), cfg, nil)
	require.Error(t, err)
}
