// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Credential field constraints.
const (
	MaxEmailLength    = 254
	MaxPasswordLength = 1024 // bounds hashing cost per request
)

// Account is a registered identity as stored in the directory.
// Accounts are immutable once created.
type Account struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
}

// NewAccount creates a validated Account with a fresh ID.
// passwordHash must already be a digest produced by a PasswordHasher.
func NewAccount(email, passwordHash string) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &Account{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Principal returns the authenticated identity derived from the account.
func (a *Account) Principal() Principal {
	return Principal{ID: a.ID, Email: a.Email}
}

// Principal is the authenticated identity attached to a session.
// It never carries the password digest.
type Principal struct {
	ID    ulid.ULID `json:"id"`
	Email string    `json:"email"`
}

// Credential is an email/password pair submitted by a client.
type Credential struct {
	Email    string
	Password string
}

// ValidateEmail applies the minimal shape checks for an account email.
// Emails are stored and compared exactly as given.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if strings.TrimSpace(email) != email || !utf8.ValidString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email contains invalid characters")
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email must contain a local part and a domain")
	}
	return nil
}

// ValidatePassword checks the plaintext password submitted at registration.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code("AUTH_INVALID_PASSWORD").Errorf("password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// AccountReader looks accounts up by email and by ID.
type AccountReader interface {
	// GetByEmail retrieves an account by exact email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByID retrieves an account by ID.
	// Returns ErrNotFound if the account does not exist.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)
}

// AccountRepository is the account directory.
type AccountRepository interface {
	AccountReader

	// Create stores a new account. Returns ErrDuplicateAccount when the
	// email is already registered; the check and insert are atomic.
	Create(ctx context.Context, account *Account) error
}
