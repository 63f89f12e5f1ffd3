// ABOUTME: Tests for coven-chat command helpers
// ABOUTME: Config path resolution, logger setup, init output, CLI printing and the health probe

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/store"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("COVEN_CHAT_CONFIG", "/etc/coven-chat.yaml")
	assert.Equal(t, "/etc/coven-chat.yaml", getConfigPath())

	t.Setenv("COVEN_CHAT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "coven-chat", "config.yaml"), getConfigPath())
}

func TestGetDataPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg-data")
	assert.Equal(t, filepath.Join("/xdg-data", "coven-chat"), getDataPath())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, fromFile, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.False(t, fromFile)
	assert.Equal(t, config.ResponderEcho, cfg.Responder.Kind)
	assert.Equal(t, "chat.db", filepath.Base(cfg.Database.Path))
}

func TestLoadConfig_InvalidFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("responder:\n  kind: oracle\n"), 0600))

	_, _, err := loadConfig(path)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("chatty"))
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "store").Info("opened", "path", "/tmp/chat.db")
	logger.WithGroup("req").Warn("slow", "ms", 1200)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF opened component=store path=/tmp/chat.db")
	assert.Contains(t, out, "WRN slow req.ms=1200")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("hello", "session_id", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "abc", rec["session_id"])
}

func TestRunInit_WritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	configPath := filepath.Join(dir, "conf", "config.yaml")
	dbPath := filepath.Join(dir, "db", "chat.db")

	answers := strings.Join([]string{
		configPath,
		"127.0.0.1:9999",
		dbPath,
		"", // driver default
		"webhook",
		"http://localhost:9000/reply",
		"", // tailscale: no
		"debug",
		"json",
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(answers), &out))
	assert.Contains(t, out.String(), "Config written to "+configPath)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.HTTPAddr)
	assert.Equal(t, dbPath, cfg.Database.Path)
	assert.Equal(t, config.DefaultDriver, cfg.Database.Driver)
	assert.Equal(t, config.ResponderWebhook, cfg.Responder.Kind)
	assert.Equal(t, "http://localhost:9000/reply", cfg.Responder.URL)
	assert.Len(t, cfg.WebUI.CookieSecret, 64)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestRunInit_DeclineOverwrite(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("original"), 0600))

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(configPath+"\nno\n"), &out))
	assert.Contains(t, out.String(), "Aborted.")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestPrintSessions(t *testing.T) {
	var buf bytes.Buffer
	printSessions(&buf, nil)
	assert.Equal(t, "No chat sessions yet.\n", buf.String())

	buf.Reset()
	printSessions(&buf, []*store.Session{
		{ID: "s-2", Title: "Best cashback cards?", MessageCount: 3, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "s-1", MessageCount: 1, CreatedAt: time.Now().Add(-48 * time.Hour)},
	})
	out := buf.String()
	assert.Contains(t, out, "s-2  Best cashback cards?")
	assert.Contains(t, out, "3 messages · 2 hours ago")
	assert.Contains(t, out, "s-1  (empty)")
	assert.Contains(t, out, "1 message · 2 days ago")
	assert.Contains(t, out, "2 total")
}

func TestShowSession(t *testing.T) {
	ctx := context.Background()
	s := store.NewMockStore()

	session, err := s.CreateSession(ctx)
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, session.ID, store.RoleUser, "hi")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, session.ID, store.RoleAssistant, "hello")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, showSession(ctx, &buf, s, session.ID))

	out := buf.String()
	assert.Contains(t, out, session.ID)
	assert.Less(t, strings.Index(out, "you"), strings.Index(out, "assistant"))
	assert.Less(t, strings.Index(out, "hi\n"), strings.Index(out, "hello\n"))

	err = showSession(ctx, &buf, s, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte("OK"))
		case "/health/ready":
			_, _ = w.Write([]byte("ready (4 sessions)"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ready, err := checkHealth(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ready (4 sessions)", ready)
}

func TestCheckHealth_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health/ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	_, err := checkHealth(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
