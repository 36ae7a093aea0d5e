// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestGenerateSessionToken(t *testing.T) {
	token, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)

	assert.Len(t, token, 64)
	_, err = hex.DecodeString(token)
	require.NoError(t, err)

	assert.Equal(t, auth.HashSessionToken(token), hash)
	assert.NotEqual(t, token, hash)
	assert.True(t, auth.WellFormedSessionToken(token))

	seen := map[string]bool{token: true}
	for range 100 {
		next, _, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		assert.False(t, seen[next], "token repeated")
		seen[next] = true
	}
}

func TestWellFormedSessionToken(t *testing.T) {
	valid, _, err := auth.GenerateSessionToken()
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"generated", valid, true},
		{"empty", "", false},
		{"too short", valid[:63], false},
		{"too long", valid + "0", false},
		{"not hex", strings.Repeat("g", 64), false},
		{"uppercase hex", strings.ToUpper(valid), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.WellFormedSessionToken(tt.token))
		})
	}
}

func TestVerifySessionToken(t *testing.T) {
	token, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)

	ok, err := auth.VerifySessionToken(token, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	other, _, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	ok, err = auth.VerifySessionToken(other, hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = auth.VerifySessionToken("", hash)
	errutil.AssertErrorCode(t, err, "SESSION_TOKEN_EMPTY")
	_, err = auth.VerifySessionToken(token, "")
	errutil.AssertErrorCode(t, err, "SESSION_HASH_EMPTY")
}

func TestNewSession(t *testing.T) {
	ref := ulid.Make()
	expires := time.Now().Add(time.Hour)

	t.Run("valid", func(t *testing.T) {
		s, err := auth.NewSession(ref, "hash", "agent", "10.0.0.1", expires)
		require.NoError(t, err)
		assert.Equal(t, ref, s.AccountID)
		assert.Equal(t, "hash", s.TokenHash)
		assert.Equal(t, "agent", s.UserAgent)
		assert.Equal(t, "10.0.0.1", s.IPAddress)
		assert.False(t, s.CreatedAt.IsZero())
		assert.True(t, s.ExpiresAt.Equal(expires))
		assert.False(t, s.IsExpired())
	})

	t.Run("metadata is optional", func(t *testing.T) {
		_, err := auth.NewSession(ref, "hash", "", "", expires)
		require.NoError(t, err)
	})

	tests := []struct {
		name    string
		ref     ulid.ULID
		hash    string
		expires time.Time
		code    string
	}{
		{"zero account", ulid.ULID{}, "hash", expires, "SESSION_INVALID_ACCOUNT"},
		{"empty hash", ref, "", expires, "SESSION_INVALID_HASH"},
		{"zero expiry", ref, "hash", time.Time{}, "SESSION_INVALID_EXPIRY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewSession(tt.ref, tt.hash, "", "", tt.expires)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestSession_IsExpiredAt(t *testing.T) {
	expires := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := &auth.Session{ExpiresAt: expires}

	assert.False(t, s.IsExpiredAt(expires.Add(-time.Nanosecond)))
	assert.True(t, s.IsExpiredAt(expires), "a session is expired at its expiry instant")
	assert.True(t, s.IsExpiredAt(expires.Add(time.Second)))
}
