// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"net/http"
	"time"
)

// CookiePolicy controls the session cookie attributes.
type CookiePolicy struct {
	Name string
	// Secure forces the Secure attribute. TLS requests always get it.
	Secure bool
	// MaxAge defaults to the authenticator's session lifetime.
	MaxAge time.Duration
}

func (p CookiePolicy) secure(r *http.Request) bool {
	return p.Secure || r.TLS != nil
}

// set issues the session cookie carrying token.
func (p CookiePolicy) set(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(p.MaxAge / time.Second),
		Expires:  time.Now().Add(p.MaxAge).UTC(),
		Secure:   p.secure(r),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clear instructs the client to drop the session cookie.
func (p CookiePolicy) clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		Secure:   p.secure(r),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// token returns the presented session token, or "".
func (p CookiePolicy) token(r *http.Request) string {
	c, err := r.Cookie(p.Name)
	if err != nil {
		return ""
	}
	return c.Value
}
