// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/memory"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/auth/redis"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/web"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// shutdownTimeout bounds draining in-flight requests on exit.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		Long: `Start the HTTP service exposing /register, /login, /logout and
/auth/status, plus the observability server for metrics and health probes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, nil)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

// serveHooks lets tests observe a running service.
type serveHooks struct {
	// ready is called with the bound addresses once both servers listen.
	ready func(webAddr, metricsAddr string)
}

// backends holds the storage selected by configuration.
type backends struct {
	accounts auth.AccountRepository
	sessions auth.SessionStore
	pingers  map[string]store.Pinger
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// ready pings every network backend.
func (b *backends) ready(ctx context.Context) error {
	for name, p := range b.pingers {
		if err := p.Ping(ctx); err != nil {
			return oops.Code("BACKEND_NOT_READY").With("backend", name).Wrap(err)
		}
	}
	return nil
}

// runServe runs the service until ctx is cancelled or a server fails.
func runServe(ctx context.Context, cfg *config.Config, hooks *serveHooks) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault("gatehouse", version, cfg.Log.Format, level)

	logger.Info("starting gatehouse",
		"addr", cfg.HTTP.Addr,
		"directory_backend", cfg.Directory.Backend,
		"session_backend", cfg.Session.Backend,
	)

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer *observability.Server
		observer  web.AuthObserver
		sweepObs  auth.SweepObserver
	)
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, b.ready, logger)
		observer = obsServer.Metrics()
		sweepObs = obsServer.Metrics().ObserveSweep
	}

	router, err := buildRouter(cfg, b, observer, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if cfg.Session.Backend != config.BackendRedis {
		sweeper, err := auth.NewSweeper(b.sessions, cfg.Session.SweepInterval, logger, sweepObs)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	}
	defer wg.Wait()
	defer cancel()

	metricsAddr := ""
	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer stopServer(logger, "observability", obsServer.Stop)
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		metricsAddr = obsServer.Addr()
	}

	webServer := web.NewServer(cfg.HTTP.Addr, router, logger)
	webErrCh, err := webServer.Start()
	if err != nil {
		return oops.With("operation", "start web server").Wrap(err)
	}
	defer stopServer(logger, "web", webServer.Stop)
	go monitorServerErrors(ctx, cancel, webErrCh, "web", logger)

	logger.Info("gatehouse ready", "addr", webServer.Addr(), "metrics_addr", metricsAddr)
	if hooks != nil && hooks.ready != nil {
		hooks.ready(webServer.Addr(), metricsAddr)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// openBackends connects the account directory and session store.
func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{pingers: map[string]store.Pinger{}}

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		var err error
		pool, err = store.Connect(ctx, cfg.Database.URL, store.DefaultConnectOptions(), logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.pingers["postgres"] = pool

		if cfg.Database.AutoMigrate {
			if err := applyMigrations(cfg.Database.URL, logger); err != nil {
				b.close()
				return nil, err
			}
		}
	}

	switch cfg.Directory.Backend {
	case config.BackendPostgres:
		b.accounts = postgres.NewAccountRepository(pool)
	default:
		logger.Warn("using in-memory account directory; accounts are lost on exit")
		b.accounts = memory.NewAccountRepository()
	}

	switch cfg.Session.Backend {
	case config.BackendPostgres:
		b.sessions = postgres.NewSessionRepository(pool)
	case config.BackendRedis:
		opts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			b.close()
			return nil, oops.Code("CONFIG_INVALID").With("key", "redis.url").Wrap(err)
		}
		rdb := goredis.NewClient(opts)
		b.closers = append(b.closers, func() { _ = rdb.Close() })

		sessions := redis.NewSessionStore(rdb, cfg.Redis.KeyPrefix)
		if err := store.WaitForPing(ctx, sessions, store.DefaultConnectOptions(), logger); err != nil {
			b.close()
			return nil, oops.With("backend", "redis").Wrap(err)
		}
		b.sessions = sessions
		b.pingers["redis"] = sessions
	default:
		logger.Warn("using in-memory session store; sessions are lost on exit")
		b.sessions = memory.NewSessionStore()
	}

	return b, nil
}

// applyMigrations brings the schema up to date.
func applyMigrations(databaseURL string, logger *slog.Logger) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			errutil.LogError(logger, "closing migrator", closeErr)
		}
	}()

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	if err := m.Up(); err != nil {
		return err
	}
	logger.Info("applied migrations", "count", len(pending))
	return nil
}

// buildRouter wires the auth services over b into the HTTP layer.
func buildRouter(cfg *config.Config, b *backends, observer web.AuthObserver, logger *slog.Logger) (*gin.Engine, error) {
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Argon2Params())
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewPasswordVerifierWithLogger(b.accounts, hasher, logger)
	if err != nil {
		return nil, err
	}
	verifier.SetTimeout(cfg.Auth.OperationTimeout)

	registrar, err := auth.NewRegistrarWithLogger(b.accounts, hasher, logger)
	if err != nil {
		return nil, err
	}
	registrar.SetTimeout(cfg.Auth.OperationTimeout)

	authn, err := auth.NewAuthenticatorWithLogger(verifier, b.accounts, b.sessions, cfg.AuthenticatorConfig(), logger)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	return web.NewRouter(web.Dependencies{
		Registrar:     registrar,
		Authenticator: authn,
		Cookies: web.CookiePolicy{
			Name:   cfg.HTTP.CookieName,
			Secure: cfg.HTTP.SecureCookies,
			MaxAge: cfg.Session.Lifetime,
		},
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Metrics:        observer,
		Logger:         logger,
	})
}

func stopServer(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a serve error.
// It exits when an error is received, the channel closes, or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
