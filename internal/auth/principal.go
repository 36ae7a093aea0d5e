// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// PrincipalToSessionRef reduces a principal to the reference kept in a session.
func PrincipalToSessionRef(p Principal) SessionRef {
	return p.ID
}

// SessionRefToPrincipal rehydrates a principal from its session reference by
// reading the account afresh. Returns ErrNotFound if the account is gone.
func SessionRefToPrincipal(ctx context.Context, accounts AccountReader, ref SessionRef) (Principal, error) {
	account, err := accounts.GetByID(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, err
		}
		return Principal{}, oops.Code("SESSION_REF_RESOLVE_FAILED").
			With("account_id", ref.String()).
			Wrap(err)
	}
	return account.Principal(), nil
}
