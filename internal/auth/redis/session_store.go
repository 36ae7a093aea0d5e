// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package redis implements auth.SessionStore on Redis. Each session is a
// JSON value whose key expires with the session.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "gatehouse:session"

type sessionRecord struct {
	AccountID string    `json:"account_id"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore implements auth.SessionStore using Redis.
type SessionStore struct {
	rdb    goredis.Cmdable
	prefix string
	now    func() time.Time
}

// NewSessionStore creates a SessionStore. An empty prefix selects DefaultKeyPrefix.
func NewSessionStore(rdb goredis.Cmdable, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SessionStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *SessionStore) key(tokenHash string) string {
	return s.prefix + ":" + tokenHash
}

// Create stores the session with a TTL matching its expiry. A session whose
// key already exists is refused.
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return oops.Code("SESSION_ALREADY_EXPIRED").
			With("expires_at", session.ExpiresAt).
			Errorf("session expires in the past")
	}

	payload, err := json.Marshal(sessionRecord{
		AccountID: session.AccountID.String(),
		UserAgent: session.UserAgent,
		IPAddress: session.IPAddress,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	created, err := s.rdb.SetNX(ctx, s.key(session.TokenHash), payload, ttl).Result()
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "set session").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	if !created {
		return oops.Code("SESSION_CREATE_FAILED").
			With("account_id", session.AccountID.String()).
			Errorf("session token hash already in use")
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	data, err := s.rdb.Get(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	accountID, err := ulid.Parse(record.AccountID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").
			With("account_id", record.AccountID).
			Wrap(err)
	}

	return &auth.Session{
		TokenHash: tokenHash,
		AccountID: accountID,
		UserAgent: record.UserAgent,
		IPAddress: record.IPAddress,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Delete removes a session by token hash.
func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	removed, err := s.rdb.Del(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	if removed == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired always reports zero: Redis evicts expired keys itself.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// Ping reports whether Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return oops.Code("SESSION_STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
