// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client, ""), mr
}

func newSession(t *testing.T, lifetime time.Duration) *auth.Session {
	t.Helper()
	_, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	session, err := auth.NewSession(ulid.Make(), hash, "Mozilla/5.0", "203.0.113.5", time.Now().Add(lifetime))
	require.NoError(t, err)
	return session
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	session := newSession(t, time.Hour)

	require.NoError(t, store.Create(ctx, session))
	assert.True(t, mr.Exists(DefaultKeyPrefix+":"+session.TokenHash))

	ttl := mr.TTL(DefaultKeyPrefix + ":" + session.TokenHash)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	got, err := store.GetByTokenHash(ctx, session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, session.TokenHash, got.TokenHash)
	assert.Equal(t, session.AccountID, got.AccountID)
	assert.Equal(t, session.UserAgent, got.UserAgent)
	assert.Equal(t, session.IPAddress, got.IPAddress)
	assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
}

func TestSessionStore_CreateRejectsReusedHash(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	session := newSession(t, time.Hour)

	require.NoError(t, store.Create(ctx, session))
	err := store.Create(ctx, session)
	errutil.AssertErrorCode(t, err, "SESSION_CREATE_FAILED")
}

func TestSessionStore_CreateRejectsExpired(t *testing.T) {
	store, _ := newTestStore(t)
	session := newSession(t, time.Hour)
	session.ExpiresAt = time.Now().Add(-time.Second)

	err := store.Create(context.Background(), session)
	errutil.AssertErrorCode(t, err, "SESSION_ALREADY_EXPIRED")
}

func TestSessionStore_KeyExpiresWithSession(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	session := newSession(t, time.Minute)
	require.NoError(t, store.Create(ctx, session))

	mr.FastForward(2 * time.Minute)

	_, err := store.GetByTokenHash(ctx, session.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	session := newSession(t, time.Hour)
	require.NoError(t, store.Create(ctx, session))

	require.NoError(t, store.Delete(ctx, session.TokenHash))

	_, err := store.GetByTokenHash(ctx, session.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	err = store.Delete(ctx, session.TokenHash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	errutil.AssertErrorCode(t, err, "SESSION_NOT_FOUND")
}

func TestSessionStore_CorruptValue(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set(DefaultKeyPrefix+":abc", "{not json"))

	_, err := store.GetByTokenHash(context.Background(), "abc")
	errutil.AssertErrorCode(t, err, "SESSION_DECODE_FAILED")
	assert.NotErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionStore_Unavailable(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	store := NewSessionStore(client, "")
	ctx := context.Background()

	_, err := store.GetByTokenHash(ctx, "abc")
	errutil.AssertErrorCode(t, err, "SESSION_GET_BY_TOKEN_FAILED")
	assert.NotErrorIs(t, err, auth.ErrNotFound)

	errutil.AssertErrorCode(t, store.Ping(ctx), "SESSION_STORE_UNAVAILABLE")
}

func TestSessionStore_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewSessionStore(client, "tenant-a")

	session := newSession(t, time.Hour)
	require.NoError(t, store.Create(context.Background(), session))
	assert.True(t, mr.Exists("tenant-a:"+session.TokenHash))
}

func TestSessionStore_DeleteExpiredIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)
	removed, err := store.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
