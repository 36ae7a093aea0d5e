// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// Registrar creates accounts.
type Registrar struct {
	accounts AccountRepository
	hasher   PasswordHasher
	logger   *slog.Logger
	timeout  time.Duration
}

// NewRegistrar creates a Registrar that logs to slog.Default().
func NewRegistrar(accounts AccountRepository, hasher PasswordHasher) (*Registrar, error) {
	return NewRegistrarWithLogger(accounts, hasher, slog.Default())
}

// NewRegistrarWithLogger creates a Registrar with a custom logger.
func NewRegistrarWithLogger(accounts AccountRepository, hasher PasswordHasher, logger *slog.Logger) (*Registrar, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &Registrar{
		accounts: accounts,
		hasher:   hasher,
		logger:   logger,
		timeout:  DefaultOperationTimeout,
	}, nil
}

// SetTimeout overrides the directory write timeout.
func (r *Registrar) SetTimeout(d time.Duration) {
	r.timeout = d
}

// Register hashes the password and stores a new account.
// Uniqueness is decided by the repository; there is no pre-check.
func (r *Registrar) Register(ctx context.Context, cred Credential) (Principal, error) {
	if err := ValidateEmail(cred.Email); err != nil {
		return Principal{}, reject(RejectionValidation, "a valid email is required", err)
	}
	if err := ValidatePassword(cred.Password); err != nil {
		return Principal{}, reject(RejectionValidation, "a password is required", err)
	}

	digest, err := r.hasher.Hash(cred.Password)
	if err != nil {
		errutil.LogError(r.logger, "password hashing failed", err)
		return Principal{}, reject(RejectionInternal, "password could not be hashed", err)
	}

	account, err := NewAccount(cred.Email, digest)
	if err != nil {
		return Principal{}, reject(RejectionValidation, "a valid email is required", err)
	}

	createCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.accounts.Create(createCtx, account); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			r.logger.InfoContext(ctx, "registration rejected", "reason", "duplicate_email")
			return Principal{}, reject(RejectionDuplicateAccount, "email already registered", err)
		}
		wrapped := oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
		errutil.LogError(r.logger, "registration failed", wrapped)
		return Principal{}, storageFailure("account could not be stored", wrapped)
	}

	r.logger.InfoContext(ctx, "account registered", "account_id", account.ID.String())
	return account.Principal(), nil
}
