// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/mocks"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestNewSweeper_Validation(t *testing.T) {
	_, err := auth.NewSweeper(nil, time.Minute, nil, nil)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_DEPENDENCY")

	_, err = auth.NewSweeper(mocks.NewMockSessionStore(t), 0, nil, nil)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")
}

func TestSweeper_SweepOnce(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	principal := f.register(t, "ada@example.com", "pw")

	for _, offset := range []time.Duration{-time.Hour, -time.Minute, time.Hour} {
		_, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		s, err := auth.NewSession(principal.ID, hash, "", "", time.Now().Add(offset))
		require.NoError(t, err)
		require.NoError(t, f.sessions.Create(ctx, s))
	}

	var observed int64
	sweeper, err := auth.NewSweeper(f.sessions, time.Minute, discardLogger(), func(n int64) { observed += n })
	require.NoError(t, err)

	assert.Equal(t, int64(2), sweeper.SweepOnce(ctx))
	assert.Equal(t, int64(2), observed)
	assert.Equal(t, 1, f.sessions.Len())
}

func TestSweeper_SweepOnceStoreError(t *testing.T) {
	sessions := mocks.NewMockSessionStore(t)
	sessions.On("DeleteExpired", mock.Anything).Return(int64(0), errors.New("connection reset"))

	logger, buf := captureLogger()
	called := false
	sweeper, err := auth.NewSweeper(sessions, time.Minute, logger, func(int64) { called = true })
	require.NoError(t, err)

	assert.Zero(t, sweeper.SweepOnce(context.Background()))
	assert.False(t, called)
	assert.Contains(t, buf.String(), "expired session sweep failed")
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	sessions := mocks.NewMockSessionStore(t)
	var sweeps atomic.Int32
	sessions.On("DeleteExpired", mock.Anything).
		Run(func(mock.Arguments) { sweeps.Add(1) }).
		Return(int64(0), nil)

	sweeper, err := auth.NewSweeper(sessions, 5*time.Millisecond, discardLogger(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeps.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
