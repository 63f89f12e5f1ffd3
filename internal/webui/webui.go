// ABOUTME: Browser chat UI: session sidebar, transcript, and message form
// ABOUTME: Post/Redirect/Get handlers over the chat service with per-browser state in a cookie

package webui

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/dedupe"
)

// User-facing banner text
const (
	msgStorage   = "Chat history could not be read or saved. Please try again."
	msgNotFound  = "That chat session no longer exists."
	msgResponder = "The assistant could not reply. Your message was saved; send it again to retry."
	msgEmpty     = "Type a message before sending."
	msgNoSelect  = "Select a chat session to load."
)

// Config holds chat UI configuration
type Config struct {
	Title string

	// CookieSecret signs the state cookie; empty means a per-process random key
	CookieSecret string

	// StateTTL is how long a browser remembers its active session
	StateTTL time.Duration

	SamplePrompts []string
}

// UI handles chat page routes
type UI struct {
	chat      *chat.Service
	config    Config
	state     *stateCodec
	templates *template.Template
	submits   *dedupe.Guard
	logger    *slog.Logger
}

// New creates a new UI handler
func New(svc *chat.Service, cfg Config, logger *slog.Logger) (*UI, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 30 * 24 * time.Hour
	}

	state, err := newStateCodec(cfg.CookieSecret, cfg.StateTTL)
	if err != nil {
		return nil, err
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	return &UI{
		chat:      svc,
		config:    cfg,
		state:     state,
		templates: tmpl,
		submits:   dedupe.New(dedupe.DefaultWindow, dedupe.DefaultCapacity),
		logger:    logger.With("component", "webui"),
	}, nil
}

// Close releases background resources held by the UI
func (u *UI) Close() {
	u.submits.Close()
}

// RegisterRoutes registers all chat routes on the given mux
func (u *UI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", u.handleIndex)
	mux.HandleFunc("POST /sessions", u.requireCSRF(u.handleNewSession))
	mux.HandleFunc("POST /sessions/load", u.requireCSRF(u.handleLoadSession))
	mux.HandleFunc("POST /sessions/{id}/messages", u.requireCSRF(u.handleSend))
	mux.HandleFunc("POST /sessions/{id}/delete", u.requireCSRF(u.handleDelete))

	u.logger.Info("chat routes registered")
}

// requireCSRF rejects form posts that do not echo the CSRF cookie
func (u *UI) requireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}
		if !csrfTokenValid(r) {
			u.logger.Warn("rejected request with bad CSRF token", "path", r.URL.Path)
			http.Error(w, "invalid or missing CSRF token, reload the page", http.StatusForbidden)
			return
		}
		next(w, u.withCSRFToken(w, r))
	}
}

func (u *UI) handleIndex(w http.ResponseWriter, r *http.Request) {
	r = u.withCSRFToken(w, r)
	u.renderPage(w, r, view{activeID: u.activeSession(r)})
}

func (u *UI) handleNewSession(w http.ResponseWriter, r *http.Request) {
	session, err := u.chat.NewSession(r.Context())
	if err != nil {
		u.fail(w, r, u.activeSession(r), err)
		return
	}

	u.setActiveSession(w, r, session.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (u *UI) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("session_id")
	if id == "" {
		u.renderPage(w, r, view{activeID: u.activeSession(r), status: http.StatusBadRequest, errMsg: msgNoSelect})
		return
	}

	if _, err := u.chat.Session(r.Context(), id); err != nil {
		u.fail(w, r, u.activeSession(r), err)
		return
	}

	u.setActiveSession(w, r, id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (u *UI) handleSend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// A refreshed or double-clicked form carries the same submit_id
	var claim string
	if submitID := r.FormValue("submit_id"); submitID != "" {
		claim = id + ":" + submitID
		if !u.submits.Claim(claim) {
			u.logger.Info("ignoring repeated message form", "session_id", id)
			u.setActiveSession(w, r, id)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}

	if _, err := u.chat.Send(r.Context(), id, r.FormValue("message")); err != nil {
		// If nothing was stored, resubmitting this form must go through
		if claim != "" && !chat.UserMessageSaved(err) {
			u.submits.Release(claim)
		}
		active := id
		if isNotFound(err) {
			active = ""
			u.setActiveSession(w, r, "")
		} else {
			u.setActiveSession(w, r, id)
		}
		u.fail(w, r, active, err)
		return
	}

	u.setActiveSession(w, r, id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (u *UI) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	active := u.activeSession(r)

	if err := u.chat.DeleteSession(r.Context(), id); err != nil {
		if isNotFound(err) && active == id {
			active = ""
			u.setActiveSession(w, r, "")
		}
		u.fail(w, r, active, err)
		return
	}

	// Selection moves to the newest remaining session
	if active == id {
		next := ""
		if sessions, err := u.chat.ListSessions(r.Context()); err == nil && len(sessions) > 0 {
			next = sessions[0].ID
		}
		u.setActiveSession(w, r, next)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// fail re-renders the page with a banner describing err
func (u *UI) fail(w http.ResponseWriter, r *http.Request, activeID string, err error) {
	status, msg := describeError(err)
	if status >= http.StatusInternalServerError {
		u.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		u.logger.Info("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	u.renderPage(w, r, view{activeID: activeID, status: status, errMsg: msg})
}

// describeError maps a chat error to an HTTP status and banner text
func describeError(err error) (int, string) {
	var respErr *chat.ResponderError
	var storeErr *chat.StorageError

	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, msgEmpty
	case isNotFound(err):
		return http.StatusNotFound, msgNotFound
	case errors.As(err, &respErr):
		return http.StatusBadGateway, msgResponder
	case errors.As(err, &storeErr):
		return http.StatusInternalServerError, msgStorage
	default:
		return http.StatusInternalServerError, "Something went wrong."
	}
}

func isNotFound(err error) bool {
	return chat.IsNotFound(err)
}
