// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

//go:build integration

package auth_test

import (
	"net/http"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	goredis "github.com/redis/go-redis/v9"

	"github.com/gatehouse/gatehouse/internal/auth"
	authpg "github.com/gatehouse/gatehouse/internal/auth/postgres"
	authredis "github.com/gatehouse/gatehouse/internal/auth/redis"
)

// sessionBackends returns a fresh session store per test.
var sessionBackends = map[string]func() auth.SessionStore{
	"postgres": func() auth.SessionStore {
		return authpg.NewSessionRepository(env.pool)
	},
	"redis": func() auth.SessionStore {
		mr := miniredis.RunT(GinkgoT())
		rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		DeferCleanup(rdb.Close)
		return authredis.NewSessionStore(rdb, "it:session")
	},
}

var _ = Describe("Authentication flow", func() {
	for name, newSessions := range sessionBackends {
		Context("with "+name+" sessions", func() {
			var browser *client

			BeforeEach(func() {
				env.truncate()
				browser = &client{router: newRouter(newSessions())}
			})

			It("registers, logs in, reports status and logs out", func() {
				rec := browser.do(http.MethodPost, "/register", credentials("alice@example.com", "pw"))
				Expect(rec.Code).To(Equal(http.StatusCreated))

				rec = browser.do(http.MethodPost, "/login", credentials("alice@example.com", "pw"))
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(browser.cookie).NotTo(BeNil())
				Expect(browser.cookie.HttpOnly).To(BeTrue())

				rec = browser.do(http.MethodGet, "/auth/status", "")
				Expect(rec.Body.String()).To(ContainSubstring(`"isAuthenticated":true`))
				Expect(rec.Body.String()).To(ContainSubstring(`"email":"alice@example.com"`))

				stale := browser.cookie
				rec = browser.do(http.MethodGet, "/logout", "")
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(browser.cookie).To(BeNil())

				// Replaying the old cookie after logout is anonymous.
				browser.cookie = stale
				rec = browser.do(http.MethodGet, "/auth/status", "")
				Expect(rec.Body.String()).To(MatchJSON(`{"isAuthenticated":false}`))

				rec = browser.do(http.MethodGet, "/logout", "")
				Expect(rec.Code).To(Equal(http.StatusOK))
			})

			It("answers unknown email and wrong password identically", func() {
				Expect(browser.do(http.MethodPost, "/register", credentials("bob@example.com", "right")).Code).
					To(Equal(http.StatusCreated))

				wrong := browser.do(http.MethodPost, "/login", credentials("bob@example.com", "wrong"))
				unknown := browser.do(http.MethodPost, "/login", credentials("carol@example.com", "right"))

				Expect(wrong.Code).To(Equal(http.StatusUnauthorized))
				Expect(unknown.Code).To(Equal(wrong.Code))
				Expect(unknown.Body.String()).To(Equal(wrong.Body.String()))
				Expect(browser.cookie).To(BeNil())
			})

			It("rotates the session on a second login", func() {
				Expect(browser.do(http.MethodPost, "/register", credentials("dan@example.com", "pw")).Code).
					To(Equal(http.StatusCreated))
				Expect(browser.do(http.MethodPost, "/login", credentials("dan@example.com", "pw")).Code).
					To(Equal(http.StatusOK))
				first := browser.cookie

				Expect(browser.do(http.MethodPost, "/login", credentials("dan@example.com", "pw")).Code).
					To(Equal(http.StatusOK))
				Expect(browser.cookie.Value).NotTo(Equal(first.Value))

				replay := &client{router: browser.router, cookie: first}
				Expect(replay.do(http.MethodGet, "/auth/status", "").Body.String()).
					To(MatchJSON(`{"isAuthenticated":false}`))
			})
		})
	}

	Context("registration races", func() {
		BeforeEach(func() {
			env.truncate()
		})

		It("accepts exactly one of many concurrent registrations", func() {
			router := newRouter(authpg.NewSessionRepository(env.pool))

			const n = 10
			codes := make(chan int, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(pw string) {
					defer GinkgoRecover()
					defer wg.Done()
					c := &client{router: router}
					codes <- c.do(http.MethodPost, "/register", credentials("race@example.com", pw)).Code
				}(time.Now().String())
			}
			wg.Wait()
			close(codes)

			created := 0
			for code := range codes {
				if code == http.StatusCreated {
					created++
				} else {
					Expect(code).To(Equal(http.StatusConflict))
				}
			}
			Expect(created).To(Equal(1))

			var count int
			Expect(env.pool.QueryRow(env.ctx, "SELECT count(*) FROM accounts WHERE email = $1", "race@example.com").Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1))
		})
	})

	Context("expired sessions", func() {
		BeforeEach(func() {
			env.truncate()
		})

		It("are anonymous on status and removed by the sweeper", func() {
			sessions := authpg.NewSessionRepository(env.pool)
			browser := &client{router: newRouter(sessions)}
			Expect(browser.do(http.MethodPost, "/register", credentials("erin@example.com", "pw")).Code).
				To(Equal(http.StatusCreated))
			Expect(browser.do(http.MethodPost, "/login", credentials("erin@example.com", "pw")).Code).
				To(Equal(http.StatusOK))

			_, err := env.pool.Exec(env.ctx, "UPDATE sessions SET expires_at = now() - interval '1 minute'")
			Expect(err).NotTo(HaveOccurred())

			Expect(browser.do(http.MethodGet, "/auth/status", "").Body.String()).
				To(MatchJSON(`{"isAuthenticated":false}`))

			sweeper, err := auth.NewSweeper(sessions, time.Minute, quietLogger(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(sweeper.SweepOnce(env.ctx)).To(Equal(int64(1)))
		})
	})
})
