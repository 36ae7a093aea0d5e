// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/web"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestServer_Lifecycle(t *testing.T) {
	srv := newTestServer(t, stack{})
	server := web.NewServer("127.0.0.1:0", srv.router, discardLogger())
	assert.Empty(t, server.Addr())

	errCh, err := server.Start()
	require.NoError(t, err)

	_, err = server.Start()
	errutil.AssertErrorCode(t, err, "WEB_ALREADY_RUNNING")

	resp, err := http.Get("http://" + server.Addr() + "/auth/status") //nolint:noctx // test request
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"isAuthenticated":false}`, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		assert.False(t, ok, "unexpected serve error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("error channel not closed after Stop")
	}
}

func TestServer_ListenFailure(t *testing.T) {
	first := web.NewServer("127.0.0.1:0", http.NotFoundHandler(), discardLogger())
	_, err := first.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	second := web.NewServer(first.Addr(), http.NotFoundHandler(), discardLogger())
	_, err = second.Start()
	errutil.AssertErrorCode(t, err, "WEB_LISTEN_FAILED")
}
