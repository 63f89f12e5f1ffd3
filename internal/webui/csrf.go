// ABOUTME: Double-submit CSRF protection for the chat UI forms
// ABOUTME: Token lives in a strict same-site cookie and is echoed in each form

package webui

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// CSRFCookieName is the name of the CSRF token cookie
const CSRFCookieName = "coven_chat_csrf"

// csrfTokenKey carries the page's CSRF token from handler to template
type csrfTokenKey struct{}

func csrfToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfTokenKey{}).(string)
	return token
}

// withCSRFToken reuses the browser's token or issues a new one, and makes it
// available to the page render.
func (u *UI) withCSRFToken(w http.ResponseWriter, r *http.Request) *http.Request {
	token := ""
	if c, err := r.Cookie(CSRFCookieName); err == nil {
		token = c.Value
	}

	if token == "" {
		var err error
		if token, err = randomToken(32); err != nil {
			// An empty token fails every check, so forms are refused rather than unprotected
			u.logger.Error("failed to generate CSRF token", "error", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     CSRFCookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteStrictMode,
		})
	}

	return r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, token))
}

// submittedCSRFToken reads the token a form field or script header echoed back
func submittedCSRFToken(r *http.Request) string {
	if v := r.FormValue("csrf_token"); v != "" {
		return v
	}
	return r.Header.Get("X-CSRF-Token")
}

// csrfTokenValid reports whether the submitted token matches the cookie
func csrfTokenValid(r *http.Request) bool {
	c, err := r.Cookie(CSRFCookieName)
	if err != nil || c.Value == "" {
		return false
	}
	sent := submittedCSRFToken(r)
	return sent != "" && subtle.ConstantTimeCompare([]byte(sent), []byte(c.Value)) == 1
}

// randomToken returns n random bytes, hex encoded
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
