// ABOUTME: Per-browser chat state carried in a signed cookie
// ABOUTME: HS256 JWT holding the active session id, keyed by HKDF over the configured secret

package webui

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// StateCookieName holds the signed active-session token
const StateCookieName = "coven_chat_state"

const stateKeyInfo = "coven-chat state cookie v1"

var errInvalidState = errors.New("invalid state token")

// stateCodec signs and verifies the active session id
type stateCodec struct {
	key []byte
	ttl time.Duration
}

// newStateCodec derives the signing key from secret. An empty secret gets a
// random one, which means cookies stop verifying after a restart.
func newStateCodec(secret string, ttl time.Duration) (*stateCodec, error) {
	ikm := []byte(secret)
	if len(ikm) == 0 {
		ikm = make([]byte, 32)
		if _, err := rand.Read(ikm); err != nil {
			return nil, fmt.Errorf("generating cookie secret: %w", err)
		}
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, []byte(stateKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving cookie key: %w", err)
	}

	return &stateCodec{key: key, ttl: ttl}, nil
}

func (c *stateCodec) encode(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(c.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

func (c *stateCodec) decode(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidState, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errInvalidState
	}

	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", errInvalidState
	}
	return sid, nil
}

// activeSession returns the session id this browser last selected, or "".
func (u *UI) activeSession(r *http.Request) string {
	cookie, err := r.Cookie(StateCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	sid, err := u.state.decode(cookie.Value)
	if err != nil {
		u.logger.Debug("ignoring state cookie", "error", err)
		return ""
	}
	return sid
}

// setActiveSession makes sessionID the active session, or clears the
// selection when sessionID is empty.
func (u *UI) setActiveSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if sessionID == "" {
		http.SetCookie(w, &http.Cookie{
			Name:     StateCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		return
	}

	token, err := u.state.encode(sessionID)
	if err != nil {
		u.logger.Error("failed to sign state cookie", "error", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(u.state.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
