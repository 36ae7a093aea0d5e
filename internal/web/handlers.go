// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// genericError replaces internal failure details in responses.
const genericError = "internal error"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type messageBody struct {
	Message string `json:"message"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type userResponse struct {
	Message string   `json:"message"`
	User    userBody `json:"user"`
}

type statusResponse struct {
	IsAuthenticated bool      `json:"isAuthenticated"`
	User            *userBody `json:"user,omitempty"`
}

func newUserBody(p auth.Principal) userBody {
	return userBody{ID: p.ID.String(), Email: p.Email}
}

func (h *handlers) register(c *gin.Context) {
	start := time.Now()
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.observe("register", start, rejectionOutcome(auth.RejectionValidation))
		c.JSON(http.StatusBadRequest, messageBody{Message: "Invalid request body"})
		return
	}

	principal, err := h.registrar.Register(c.Request.Context(), auth.Credential{Email: req.Email, Password: req.Password})
	h.observe("register", start, outcome(err))
	if err != nil {
		var r *auth.Rejection
		switch {
		case errors.As(err, &r) && r.Kind == auth.RejectionValidation:
			c.JSON(http.StatusBadRequest, messageBody{Message: r.Message})
		case errors.As(err, &r) && r.Kind == auth.RejectionDuplicateAccount:
			c.JSON(http.StatusConflict, errorBody{Message: "Registration failed", Error: "email already registered"})
		default:
			c.JSON(http.StatusInternalServerError, errorBody{Message: "Registration failed", Error: genericError})
		}
		return
	}

	c.JSON(http.StatusCreated, userResponse{Message: "User registered successfully", User: newUserBody(principal)})
}

func (h *handlers) login(c *gin.Context) {
	start := time.Now()
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		h.observe("login", start, rejectionOutcome(auth.RejectionValidation))
		c.JSON(http.StatusBadRequest, messageBody{Message: "Email and password are required"})
		return
	}

	result, err := h.authn.Login(c.Request.Context(), auth.Credential{Email: req.Email, Password: req.Password}, auth.LoginOptions{
		PresentedToken: h.cookies.token(c.Request),
		UserAgent:      c.Request.UserAgent(),
		IPAddress:      c.ClientIP(),
	})
	h.observe("login", start, outcome(err))
	if err != nil {
		if auth.IsRejection(err, auth.RejectionInvalidCredential) {
			c.JSON(http.StatusUnauthorized, messageBody{Message: "Invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorBody{Message: "Login error", Error: genericError})
		return
	}

	h.cookies.set(c.Writer, c.Request, result.Token)
	c.JSON(http.StatusOK, userResponse{Message: "Logged in successfully", User: newUserBody(result.Principal)})
}

func (h *handlers) logout(c *gin.Context) {
	start := time.Now()
	err := h.authn.Logout(c.Request.Context(), h.cookies.token(c.Request))
	h.observe("logout", start, outcome(err))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody{Message: "Logout failed", Error: genericError})
		return
	}

	h.cookies.clear(c.Writer, c.Request)
	c.JSON(http.StatusOK, messageBody{Message: "Logged out successfully"})
}

func (h *handlers) status(c *gin.Context) {
	p, ok := CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusOK, statusResponse{IsAuthenticated: false})
		return
	}
	user := newUserBody(p)
	c.JSON(http.StatusOK, statusResponse{IsAuthenticated: true, User: &user})
}

// me returns the principal behind the session. RequireAuth guarantees one.
func (h *handlers) me(c *gin.Context) {
	p, _ := CurrentPrincipal(c)
	c.JSON(http.StatusOK, gin.H{"user": newUserBody(p)})
}

func (h *handlers) observe(operation string, start time.Time, result string) {
	if h.metrics != nil {
		h.metrics.ObserveAuth(operation, result, time.Since(start))
	}
}

// outcome labels a result for metrics.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return rejectionOutcome(auth.KindOf(err))
}

func rejectionOutcome(kind auth.RejectionKind) string {
	switch kind {
	case auth.RejectionValidation:
		return "validation"
	case auth.RejectionInvalidCredential:
		return "invalid_credentials"
	case auth.RejectionDuplicateAccount:
		return "duplicate"
	case auth.RejectionStorage:
		return "storage_error"
	default:
		return "internal"
	}
}
