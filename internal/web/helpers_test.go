// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/memory"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/web"
)

const testCookie = "gatehouse_session"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stack is the set of collaborators behind a test router.
type stack struct {
	accounts auth.AccountRepository
	sessions auth.SessionStore
	verifier auth.CredentialVerifier
	secure   bool
}

type testServer struct {
	router    *gin.Engine
	metrics   *observability.Metrics
	registrar *auth.Registrar
}

func newTestServer(t *testing.T, s stack) *testServer {
	t.Helper()
	if s.accounts == nil {
		s.accounts = memory.NewAccountRepository()
	}
	if s.sessions == nil {
		s.sessions = memory.NewSessionStore()
	}

	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)

	if s.verifier == nil {
		s.verifier, err = auth.NewPasswordVerifierWithLogger(s.accounts, hasher, discardLogger())
		require.NoError(t, err)
	}
	registrar, err := auth.NewRegistrarWithLogger(s.accounts, hasher, discardLogger())
	require.NoError(t, err)
	authn, err := auth.NewAuthenticatorWithLogger(s.verifier, s.accounts, s.sessions, auth.DefaultAuthenticatorConfig(), discardLogger())
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	router, err := web.NewRouter(web.Dependencies{
		Registrar:      registrar,
		Authenticator:  authn,
		Cookies:        web.CookiePolicy{Name: testCookie, Secure: s.secure},
		AllowedOrigins: []string{"http://localhost:4200"},
		Metrics:        metrics,
		Logger:         discardLogger(),
	})
	require.NoError(t, err)

	return &testServer{router: router, metrics: metrics, registrar: registrar}
}

func (s *testServer) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, email, password string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/register", credentials(email, password))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// login returns the issued session cookie.
func (s *testServer) login(t *testing.T, email, password string, presented ...*http.Cookie) *http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/login", credentials(email, password), presented...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := sessionCookie(rec)
	require.NotNil(t, c, "login did not set a session cookie")
	return c
}

func credentials(email, password string) string {
	return `{"email":"` + email + `","password":"` + password + `"}`
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	return nil
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}
