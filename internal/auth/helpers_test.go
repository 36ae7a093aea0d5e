// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/memory"
)

var testParams = auth.Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1, SaltLen: 16, KeyLen: 32}

func testHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasherWithParams(testParams)
	require.NoError(t, err)
	return h
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureLogger returns a debug-level JSON logger writing into the buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// logEntries decodes every JSON log line in buf.
func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

// authFixture wires the services over in-memory stores.
type authFixture struct {
	accounts      *memory.AccountRepository
	sessions      *memory.SessionStore
	hasher        *auth.Argon2idHasher
	registrar     *auth.Registrar
	verifier      *auth.PasswordVerifier
	authenticator *auth.Authenticator
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		accounts: memory.NewAccountRepository(),
		sessions: memory.NewSessionStore(),
		hasher:   testHasher(t),
	}

	var err error
	f.registrar, err = auth.NewRegistrarWithLogger(f.accounts, f.hasher, discardLogger())
	require.NoError(t, err)
	f.verifier, err = auth.NewPasswordVerifierWithLogger(f.accounts, f.hasher, discardLogger())
	require.NoError(t, err)
	f.authenticator, err = auth.NewAuthenticatorWithLogger(f.verifier, f.accounts, f.sessions,
		auth.DefaultAuthenticatorConfig(), discardLogger())
	require.NoError(t, err)
	return f
}

func (f *authFixture) register(t *testing.T, email, password string) auth.Principal {
	t.Helper()
	p, err := f.registrar.Register(context.Background(), auth.Credential{Email: email, Password: password})
	require.NoError(t, err)
	return p
}
