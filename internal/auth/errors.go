// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateAccount is returned by an AccountRepository when the email is
// already registered. The repository is the only uniqueness arbiter.
var ErrDuplicateAccount = errors.New("account already exists")

// RejectionKind classifies a failed authentication operation.
type RejectionKind string

// Rejection kinds. InvalidCredential covers both unknown email and wrong
// password so callers cannot tell them apart.
const (
	RejectionValidation        RejectionKind = "AUTH_VALIDATION"
	RejectionInvalidCredential RejectionKind = "AUTH_INVALID_CREDENTIALS"
	RejectionDuplicateAccount  RejectionKind = "AUTH_DUPLICATE_ACCOUNT"
	RejectionStorage           RejectionKind = "AUTH_STORAGE_ERROR"
	RejectionInternal          RejectionKind = "AUTH_INTERNAL"
)

// Rejection is the typed outcome of a failed authentication operation.
// Message is safe to show to clients; the cause is for logs only.
type Rejection struct {
	Kind    RejectionKind
	Message string
	cause   error
}

// Error implements error.
func (r *Rejection) Error() string {
	if r.cause == nil {
		return fmt.Sprintf("%s: %s", r.Kind, r.Message)
	}
	return fmt.Sprintf("%s: %s: %v", r.Kind, r.Message, r.cause)
}

// Unwrap returns the underlying cause, if any.
func (r *Rejection) Unwrap() error {
	return r.cause
}

func reject(kind RejectionKind, message string, cause error) *Rejection {
	return &Rejection{Kind: kind, Message: message, cause: cause}
}

// invalidCredentials is the single rejection for unknown email and wrong password.
func invalidCredentials(cause error) *Rejection {
	return reject(RejectionInvalidCredential, "invalid email or password", cause)
}

func storageFailure(message string, cause error) *Rejection {
	return reject(RejectionStorage, message, cause)
}

// KindOf reports the rejection kind carried by err.
// Errors that are not rejections are classified as RejectionInternal.
func KindOf(err error) RejectionKind {
	if err == nil {
		return ""
	}
	var r *Rejection
	if errors.As(err, &r) {
		return r.Kind
	}
	return RejectionInternal
}

// IsRejection reports whether err is a rejection of the given kind.
func IsRejection(err error, kind RejectionKind) bool {
	return err != nil && KindOf(err) == kind
}
