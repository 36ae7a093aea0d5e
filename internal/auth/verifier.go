// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// DefaultOperationTimeout bounds each directory or session store call.
const DefaultOperationTimeout = 5 * time.Second

// CredentialVerifier resolves a credential to a principal.
// Failures are *Rejection values.
type CredentialVerifier interface {
	Verify(ctx context.Context, cred Credential) (Principal, error)
}

// PasswordVerifier checks an email/password credential against the directory.
type PasswordVerifier struct {
	accounts    AccountReader
	hasher      PasswordHasher
	logger      *slog.Logger
	timeout     time.Duration
	dummyDigest string
}

// NewPasswordVerifier creates a PasswordVerifier that logs to slog.Default().
func NewPasswordVerifier(accounts AccountReader, hasher PasswordHasher) (*PasswordVerifier, error) {
	return NewPasswordVerifierWithLogger(accounts, hasher, slog.Default())
}

// NewPasswordVerifierWithLogger creates a PasswordVerifier with a custom logger.
func NewPasswordVerifierWithLogger(accounts AccountReader, hasher PasswordHasher, logger *slog.Logger) (*PasswordVerifier, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("account reader is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}

	// The dummy digest is verified when the email is unknown, so both
	// rejection paths cost one hash with the configured work factor.
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, oops.Code("AUTH_DUMMY_DIGEST_FAILED").Wrap(err)
	}
	dummy, err := hasher.Hash(hex.EncodeToString(seed))
	if err != nil {
		return nil, oops.Code("AUTH_DUMMY_DIGEST_FAILED").Wrap(err)
	}

	return &PasswordVerifier{
		accounts:    accounts,
		hasher:      hasher,
		logger:      logger,
		timeout:     DefaultOperationTimeout,
		dummyDigest: dummy,
	}, nil
}

// SetTimeout overrides the directory lookup timeout. Non-positive values
// disable the per-call deadline.
func (v *PasswordVerifier) SetTimeout(d time.Duration) {
	v.timeout = d
}

// Verify implements CredentialVerifier.
func (v *PasswordVerifier) Verify(ctx context.Context, cred Credential) (Principal, error) {
	// No stored password can be this long, so skip the hash.
	if len(cred.Password) > MaxPasswordLength {
		v.logger.DebugContext(ctx, "login rejected", "reason", "password_too_long")
		return Principal{}, invalidCredentials(nil)
	}

	lookupCtx, cancel := withTimeout(ctx, v.timeout)
	account, lookupErr := v.accounts.GetByEmail(lookupCtx, cred.Email)
	cancel()

	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		errutil.LogError(v.logger, "credential lookup failed", lookupErr)
		return Principal{}, storageFailure("account lookup failed", lookupErr)
	}

	exists := lookupErr == nil
	digest := v.dummyDigest
	if exists {
		digest = account.PasswordHash
	}

	// Always verify so unknown emails cost the same as wrong passwords.
	valid, verifyErr := v.hasher.Verify(cred.Password, digest)

	if !exists {
		v.logger.DebugContext(ctx, "login rejected", "reason", "unknown_email")
		return Principal{}, invalidCredentials(nil)
	}
	if verifyErr != nil {
		errutil.LogError(v.logger, "stored password digest is malformed",
			oops.With("account_id", account.ID.String()).Wrap(verifyErr))
		return Principal{}, invalidCredentials(verifyErr)
	}
	if !valid {
		v.logger.DebugContext(ctx, "login rejected", "reason", "password_mismatch", "account_id", account.ID.String())
		return Principal{}, invalidCredentials(nil)
	}

	if v.hasher.NeedsUpgrade(account.PasswordHash) {
		v.logger.InfoContext(ctx, "password digest uses an outdated work factor", "account_id", account.ID.String())
	}

	return account.Principal(), nil
}

// withTimeout applies d as a deadline when positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Compile-time interface check.
var _ CredentialVerifier = (*PasswordVerifier)(nil)
