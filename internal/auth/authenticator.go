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

// State is the authentication state of a single request.
type State struct {
	Principal *Principal
}

// Authenticated reports whether the request carries a live session.
func (s State) Authenticated() bool {
	return s.Principal != nil
}

// Unauthenticated is the default request state.
var Unauthenticated = State{}

// LoginOptions carries request metadata for Login.
type LoginOptions struct {
	// PresentedToken is the session token the client already held, if any.
	// It is destroyed once the new session exists.
	PresentedToken string
	UserAgent      string
	IPAddress      string
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Principal Principal
	Session   *Session
	// Token is the plaintext session token for the client cookie.
	Token string
}

// AuthenticatorConfig tunes an Authenticator.
type AuthenticatorConfig struct {
	SessionLifetime  time.Duration
	OperationTimeout time.Duration
}

// DefaultAuthenticatorConfig returns the 24h session lifetime and default timeout.
func DefaultAuthenticatorConfig() AuthenticatorConfig {
	return AuthenticatorConfig{
		SessionLifetime:  DefaultSessionExpiry,
		OperationTimeout: DefaultOperationTimeout,
	}
}

// Authenticator drives the login, logout and per-request session resolution
// transitions.
type Authenticator struct {
	verifier CredentialVerifier
	accounts AccountReader
	sessions SessionStore
	cfg      AuthenticatorConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator that logs to slog.Default().
func NewAuthenticator(verifier CredentialVerifier, accounts AccountReader, sessions SessionStore, cfg AuthenticatorConfig) (*Authenticator, error) {
	return NewAuthenticatorWithLogger(verifier, accounts, sessions, cfg, slog.Default())
}

// NewAuthenticatorWithLogger creates an Authenticator with a custom logger.
func NewAuthenticatorWithLogger(verifier CredentialVerifier, accounts AccountReader, sessions SessionStore, cfg AuthenticatorConfig, logger *slog.Logger) (*Authenticator, error) {
	if verifier == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("credential verifier is required")
	}
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("account reader is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	if cfg.SessionLifetime <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").
			With("session_lifetime", cfg.SessionLifetime.String()).
			Errorf("session lifetime must be positive")
	}

	return &Authenticator{
		verifier: verifier,
		accounts: accounts,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SessionLifetime returns how long a new session stays valid.
func (a *Authenticator) SessionLifetime() time.Duration {
	return a.cfg.SessionLifetime
}

// Login verifies the credential and creates a new session.
func (a *Authenticator) Login(ctx context.Context, cred Credential, opts LoginOptions) (*LoginResult, error) {
	principal, err := a.verifier.Verify(ctx, cred)
	if err != nil {
		var r *Rejection
		if errors.As(err, &r) {
			return nil, r
		}
		return nil, reject(RejectionInternal, "credential verification failed", err)
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		errutil.LogError(a.logger, "session token generation failed", err)
		return nil, reject(RejectionInternal, "session token generation failed", err)
	}

	session, err := NewSession(PrincipalToSessionRef(principal), tokenHash, opts.UserAgent, opts.IPAddress,
		a.now().Add(a.cfg.SessionLifetime))
	if err != nil {
		return nil, reject(RejectionInternal, "session construction failed", err)
	}

	createCtx, cancel := withTimeout(ctx, a.cfg.OperationTimeout)
	err = a.sessions.Create(createCtx, session)
	cancel()
	if err != nil {
		wrapped := oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("account_id", principal.ID.String()).
			Wrap(err)
		errutil.LogError(a.logger, "session create failed", wrapped)
		return nil, storageFailure("session could not be created", wrapped)
	}

	if opts.PresentedToken != "" {
		a.discardPresentedSession(ctx, opts.PresentedToken)
	}

	a.logger.InfoContext(ctx, "login succeeded", "account_id", principal.ID.String())

	return &LoginResult{Principal: principal, Session: session, Token: token}, nil
}

// discardPresentedSession removes the session a client held before logging
// in again. Failures are logged; the new session stays valid.
func (a *Authenticator) discardPresentedSession(ctx context.Context, token string) {
	if !WellFormedSessionToken(token) {
		return
	}
	delCtx, cancel := withTimeout(ctx, a.cfg.OperationTimeout)
	defer cancel()
	if err := a.sessions.Delete(delCtx, HashSessionToken(token)); err != nil && !errors.Is(err, ErrNotFound) {
		errutil.LogError(a.logger, "previous session cleanup failed", err)
	}
}

// Logout destroys the session for token. Missing or unknown tokens succeed.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	if !WellFormedSessionToken(token) {
		return nil
	}

	delCtx, cancel := withTimeout(ctx, a.cfg.OperationTimeout)
	defer cancel()

	err := a.sessions.Delete(delCtx, HashSessionToken(token))
	if err == nil || errors.Is(err, ErrNotFound) {
		return nil
	}

	wrapped := oops.Code("AUTH_LOGOUT_FAILED").
		With("operation", "delete session").
		Wrap(err)
	errutil.LogError(a.logger, "logout failed", wrapped)
	return storageFailure("session could not be destroyed", wrapped)
}

// Resolve maps a presented session token to the request state.
// Unknown, expired or orphaned sessions resolve to Unauthenticated with a nil
// error; only storage failures return an error.
func (a *Authenticator) Resolve(ctx context.Context, token string) (State, error) {
	if !WellFormedSessionToken(token) {
		return Unauthenticated, nil
	}

	lookupCtx, cancel := withTimeout(ctx, a.cfg.OperationTimeout)
	defer cancel()

	session, err := a.sessions.GetByTokenHash(lookupCtx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Unauthenticated, nil
		}
		wrapped := oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
		errutil.LogError(a.logger, "session lookup failed", wrapped)
		return Unauthenticated, storageFailure("session lookup failed", wrapped)
	}

	if session.IsExpiredAt(a.now()) {
		return Unauthenticated, nil
	}

	principal, err := SessionRefToPrincipal(lookupCtx, a.accounts, session.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			a.logger.WarnContext(ctx, "session references a missing account", "account_id", session.AccountID.String())
			return Unauthenticated, nil
		}
		errutil.LogError(a.logger, "principal rehydration failed", err)
		return Unauthenticated, storageFailure("account lookup failed", err)
	}

	return State{Principal: &principal}, nil
}
