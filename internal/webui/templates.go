// ABOUTME: Template data and rendering for the chat page
// ABOUTME: Markdown via goldmark for assistant replies, relative times via go-humanize

package webui

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/coven-chat/internal/store"
)

// Raw HTML in replies is dropped; goldmark only emits it with html.WithUnsafe.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var templateFuncs = template.FuncMap{
	"markdown": renderMarkdown,
	"ago":      humanize.Time,
	"plural": func(n int, singular, plural string) string {
		if n == 1 {
			return singular
		}
		return plural
	},
}

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return template.HTML(buf.String())
}

func parseTemplates() (*template.Template, error) {
	return template.New("base.html").Funcs(templateFuncs).ParseFS(templateFS,
		"templates/base.html",
		"templates/chat.html",
	)
}

type sessionItem struct {
	ID           string
	Title        string
	MessageCount int
	CreatedAt    time.Time
	Active       bool
}

type messageItem struct {
	Role      store.Role
	Content   string
	CreatedAt time.Time
}

// IsAssistant is used by the template to pick markdown rendering
func (m messageItem) IsAssistant() bool {
	return m.Role == store.RoleAssistant
}

type chatPageData struct {
	Title         string
	CSRFToken     string
	SubmitID      string
	Error         string
	Sessions      []sessionItem
	Active        *sessionItem
	Messages      []messageItem
	SamplePrompts []string
}

// view is what a single page render needs beyond the store contents
type view struct {
	activeID string
	status   int
	errMsg   string
}

// renderPage loads sessions and the active transcript and writes the page.
// Store failures during the render itself become a banner, never a blank page.
func (u *UI) renderPage(w http.ResponseWriter, r *http.Request, v view) {
	ctx := r.Context()
	if v.status == 0 {
		v.status = http.StatusOK
	}

	submitID, err := randomToken(16)
	if err != nil {
		u.logger.Error("failed to generate submit id", "error", err)
	}

	data := chatPageData{
		Title:         u.config.Title,
		CSRFToken:     csrfToken(r),
		SubmitID:      submitID,
		Error:         v.errMsg,
		Sessions:      []sessionItem{},
		SamplePrompts: u.config.SamplePrompts,
	}

	sessions, err := u.chat.ListSessions(ctx)
	if err != nil {
		u.logger.Error("failed to list sessions", "error", err)
		v.status, data.Error = worstOf(v.status, data.Error, http.StatusInternalServerError, msgStorage)
	}

	for _, s := range sessions {
		item := sessionItem{
			ID:           s.ID,
			Title:        sessionTitle(s),
			MessageCount: s.MessageCount,
			CreatedAt:    s.CreatedAt,
			Active:       s.ID == v.activeID,
		}
		data.Sessions = append(data.Sessions, item)
		if item.Active {
			active := item
			data.Active = &active
		}
	}

	if v.activeID != "" && err == nil {
		msgs, terr := u.chat.Transcript(ctx, v.activeID)
		switch {
		case terr == nil:
			for _, m := range msgs {
				data.Messages = append(data.Messages, messageItem{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
			}
			if data.Active == nil {
				// Created after the list query ran
				data.Active = &sessionItem{ID: v.activeID, Title: "New chat", Active: true}
			}
		case isNotFound(terr):
			u.setActiveSession(w, r, "")
			data.Active = nil
		default:
			u.logger.Error("failed to load transcript", "session_id", v.activeID, "error", terr)
			v.status, data.Error = worstOf(v.status, data.Error, http.StatusInternalServerError, msgStorage)
		}
	}

	var buf bytes.Buffer
	if err := u.templates.Execute(&buf, data); err != nil {
		u.logger.Error("failed to render chat page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(v.status)
	_, _ = buf.WriteTo(w)
}

// sessionTitle returns a display title for a session
func sessionTitle(s *store.Session) string {
	if strings.TrimSpace(s.Title) != "" {
		return s.Title
	}
	return "New chat"
}

// worstOf keeps whichever status is the more severe along with its message
func worstOf(status int, msg string, newStatus int, newMsg string) (int, string) {
	if msg == "" || newStatus > status {
		return newStatus, newMsg
	}
	return status, msg
}
