// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth provides credential authentication and server-side sessions.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewAccount - creates an Account with a validated email and a digest
//   - NewSession - creates a Session bound to an account reference
//
// Direct struct initialization bypasses validation and may create invalid state.
//
// # Services
//
//   - Registrar - hashes the password and stores a new account
//   - PasswordVerifier - resolves an email/password credential to a Principal
//   - Authenticator - login, logout and per-request session resolution
//   - Sweeper - background purge of expired sessions
//
// Storage is injected through AccountRepository and SessionStore; see the
// postgres, redis and memory subpackages.
//
// # Failures
//
// Service failures are *Rejection values. Use KindOf to classify them.
// Unknown email and wrong password share RejectionInvalidCredential.
package auth
