// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/mocks"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestPrincipalSessionRefRoundTrip(t *testing.T) {
	account, err := auth.NewAccount("ada@example.com", "digest")
	require.NoError(t, err)
	principal := account.Principal()

	accounts := mocks.NewMockAccountRepository(t)
	accounts.On("GetByID", mock.Anything, account.ID).Return(account, nil)

	ref := auth.PrincipalToSessionRef(principal)
	got, err := auth.SessionRefToPrincipal(context.Background(), accounts, ref)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
}

func TestSessionRefToPrincipal_Errors(t *testing.T) {
	account, err := auth.NewAccount("ada@example.com", "digest")
	require.NoError(t, err)

	t.Run("missing account", func(t *testing.T) {
		accounts := mocks.NewMockAccountRepository(t)
		accounts.On("GetByID", mock.Anything, account.ID).Return(nil, auth.ErrNotFound)

		_, err := auth.SessionRefToPrincipal(context.Background(), accounts, account.ID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("storage failure", func(t *testing.T) {
		accounts := mocks.NewMockAccountRepository(t)
		accounts.On("GetByID", mock.Anything, account.ID).Return(nil, errors.New("connection refused"))

		_, err := auth.SessionRefToPrincipal(context.Background(), accounts, account.ID)
		errutil.AssertErrorCode(t, err, "SESSION_REF_RESOLVE_FAILED")
		errutil.AssertErrorContext(t, err, "account_id", account.ID.String())
	})
}
