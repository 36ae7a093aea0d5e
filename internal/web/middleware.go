// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

const (
	requestIDHeader = "X-Request-ID"
	// maxRequestIDLength bounds client-supplied request IDs.
	maxRequestIDLength = 128
	stateKey           = "gatehouse.auth_state"
	// MaxBodyBytes caps request bodies. Credentials are far smaller.
	MaxBodyBytes int64 = 16 << 10
)

// RequestID tags the request context with the client's X-Request-ID or a
// fresh ULID, and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = ulid.Make().String()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog writes one line per request. Server errors log at warn.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			logger.WarnContext(c.Request.Context(), "request failed", attrs...)
			return
		}
		logger.InfoContext(c.Request.Context(), "request completed", attrs...)
	}
}

// LimitBody caps the request body at limit bytes. Reads past the cap fail,
// so JSON binding reports an invalid body.
func LimitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// Recovery turns a handler panic into a generic 500.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := oops.Code("WEB_PANIC").
			With("path", c.Request.URL.Path).
			Errorf("panic: %v", recovered)
		errutil.LogErrorContext(c.Request.Context(), logger, "handler panicked", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Message: "Internal server error",
			Error:   genericError,
		})
	})
}

// Authenticate resolves the session cookie into the request's auth state.
// Requests without a live session continue unauthenticated; a storage failure
// aborts with 500.
func Authenticate(authn Authenticator, cookieName string, logger *slog.Logger) gin.HandlerFunc {
	policy := CookiePolicy{Name: cookieName}
	return func(c *gin.Context) {
		state, err := authn.Resolve(c.Request.Context(), policy.token(c.Request))
		if err != nil {
			errutil.LogErrorContext(c.Request.Context(), logger, "session resolution failed", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
				Message: "Authentication error",
				Error:   genericError,
			})
			return
		}
		c.Set(stateKey, state)
		c.Next()
	}
}

// RequireAuth rejects requests that Authenticate left unauthenticated.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !StateFrom(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, messageBody{Message: "Authentication required"})
			return
		}
		c.Next()
	}
}

// StateFrom returns the auth state stored by Authenticate.
func StateFrom(c *gin.Context) auth.State {
	if v, ok := c.Get(stateKey); ok {
		if state, ok := v.(auth.State); ok {
			return state
		}
	}
	return auth.Unauthenticated
}

// CurrentPrincipal returns the authenticated principal, if any.
func CurrentPrincipal(c *gin.Context) (auth.Principal, bool) {
	state := StateFrom(c)
	if !state.Authenticated() {
		return auth.Principal{}, false
	}
	return *state.Principal, true
}
