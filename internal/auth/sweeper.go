// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = 10 * time.Minute

// SweepObserver receives the number of sessions removed by each sweep.
type SweepObserver func(removed int64)

// Sweeper periodically deletes expired sessions. Expired sessions are already
// ignored by Resolve; sweeping only reclaims storage.
type Sweeper struct {
	sessions SessionStore
	interval time.Duration
	logger   *slog.Logger
	observe  SweepObserver
}

// NewSweeper creates a Sweeper. observe may be nil.
func NewSweeper(sessions SessionStore, interval time.Duration, logger *slog.Logger, observe SweepObserver) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if interval <= 0 {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{sessions: sessions, interval: interval, logger: logger, observe: observe}, nil
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single purge and returns the number of removed sessions.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	removed, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		errutil.LogError(s.logger, "expired session sweep failed", err)
		return 0
	}
	if removed > 0 {
		s.logger.DebugContext(ctx, "expired sessions removed", "count", removed)
	}
	if s.observe != nil {
		s.observe(removed)
	}
	return removed
}
