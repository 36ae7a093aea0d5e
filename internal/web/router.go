// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package web exposes the authentication operations over HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Registrar creates accounts. Satisfied by *auth.Registrar.
type Registrar interface {
	Register(ctx context.Context, cred auth.Credential) (auth.Principal, error)
}

// Authenticator drives login, logout and session resolution.
// Satisfied by *auth.Authenticator.
type Authenticator interface {
	Login(ctx context.Context, cred auth.Credential, opts auth.LoginOptions) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (auth.State, error)
	SessionLifetime() time.Duration
}

// AuthObserver records the outcome of one endpoint call.
// Satisfied by *observability.Metrics.
type AuthObserver interface {
	ObserveAuth(operation, outcome string, elapsed time.Duration)
}

// Dependencies are the collaborators of the HTTP layer.
type Dependencies struct {
	Registrar     Registrar
	Authenticator Authenticator
	Cookies       CookiePolicy
	// AllowedOrigins may send credentialed cross-origin requests. Entries
	// may be glob patterns like "https://*.example.com".
	AllowedOrigins []string
	// Metrics is optional.
	Metrics AuthObserver
	Logger  *slog.Logger
}

type handlers struct {
	registrar Registrar
	authn     Authenticator
	cookies   CookiePolicy
	metrics   AuthObserver
	logger    *slog.Logger
}

// NewRouter builds the gin engine serving the auth endpoints.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Registrar == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("registrar is required")
	}
	if deps.Authenticator == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("authenticator is required")
	}
	if deps.Logger == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	if deps.Cookies.Name == "" {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("cookie name is required")
	}

	literal, patterns, err := splitOrigins(deps.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	corsCfg := cors.Config{
		AllowOrigins:     literal,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(patterns) > 0 {
		corsCfg.AllowOriginFunc = patterns.allow
	}
	if err := corsCfg.Validate(); err != nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").
			With("allowed_origins", deps.AllowedOrigins).
			Wrap(err)
	}

	if deps.Cookies.MaxAge <= 0 {
		deps.Cookies.MaxAge = deps.Authenticator.SessionLifetime()
	}

	h := &handlers{
		registrar: deps.Registrar,
		authn:     deps.Authenticator,
		cookies:   deps.Cookies,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}

	r := gin.New()
	r.Use(
		RequestID(),
		AccessLog(deps.Logger),
		Recovery(deps.Logger),
		cors.New(corsCfg),
		LimitBody(MaxBodyBytes),
	)

	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.GET("/logout", h.logout)

	authed := r.Group("/auth", Authenticate(deps.Authenticator, deps.Cookies.Name, deps.Logger))
	authed.GET("/status", h.status)
	authed.GET("/me", RequireAuth(), h.me)

	return r, nil
}
