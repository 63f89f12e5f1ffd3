// ABOUTME: Non-server subcommands: interactive init, session listing, transcript printing, health probe
// ABOUTME: Read-only commands open the same SQLite database the server uses

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"

	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/server"
	"github.com/2389/coven-chat/internal/store"
)

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "coven-chat configuration setup")
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !isYes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	cfg := config.Default(getDataPath())

	fmt.Fprintln(out, "\n--- Server ---")
	cfg.Server.HTTPAddr = prompt(reader, out, "HTTP address", cfg.Server.HTTPAddr)

	fmt.Fprintln(out, "\n--- Database ---")
	cfg.Database.Path = prompt(reader, out, "SQLite database path", cfg.Database.Path)
	cfg.Database.Driver = prompt(reader, out, "Driver (sqlite = pure Go, sqlite3 = cgo)", cfg.Database.Driver)

	fmt.Fprintln(out, "\n--- Responder ---")
	cfg.Responder.Kind = prompt(reader, out, "Responder (echo/openai/webhook)", cfg.Responder.Kind)
	switch cfg.Responder.Kind {
	case config.ResponderOpenAI:
		cfg.Responder.BaseURL = prompt(reader, out, "API base URL (empty for api.openai.com)", "")
		cfg.Responder.APIKey = prompt(reader, out, "API key", "${OPENAI_API_KEY}")
		cfg.Responder.Model = prompt(reader, out, "Model", "gpt-4o-mini")
		cfg.Responder.SystemPrompt = prompt(reader, out, "System prompt (optional)", "")
	case config.ResponderWebhook:
		cfg.Responder.URL = prompt(reader, out, "Webhook URL", "http://localhost:9000/reply")
	}

	fmt.Fprintln(out, "\n--- Tailscale ---")
	cfg.Tailscale.Enabled = isYes(prompt(reader, out, "Serve on a tailnet instead of a local port?", "no"))
	if cfg.Tailscale.Enabled {
		cfg.Tailscale.Hostname = prompt(reader, out, "Tailscale hostname", "coven-chat")
		cfg.Tailscale.AuthKey = prompt(reader, out, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		cfg.Tailscale.Ephemeral = isYes(prompt(reader, out, "Ephemeral node?", "no"))
		cfg.Tailscale.HTTPS = isYes(prompt(reader, out, "Serve HTTPS with Tailscale certs?", "yes"))
	}

	fmt.Fprintln(out, "\n--- Logging ---")
	cfg.Logging.Level = prompt(reader, out, "Log level (debug/info/warn/error)", cfg.Logging.Level)
	cfg.Logging.Format = prompt(reader, out, "Log format (text/json)", cfg.Logging.Format)

	secret, err := generateSecret(32)
	if err != nil {
		return fmt.Errorf("generating cookie secret: %w", err)
	}
	cfg.WebUI.CookieSecret = secret

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	header := "# coven-chat configuration\n# Generated by coven-chat init\n\n"
	// Contains the cookie secret and possibly an API key
	if err := os.WriteFile(outputFile, append([]byte(header), data...), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  coven-chat serve")

	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func generateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// openStoreFromConfig opens the database the server would use
func openStoreFromConfig() (*store.SQLiteStore, error) {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return nil, err
	}
	return server.OpenStore(cfg)
}

func runSessions(ctx context.Context, out io.Writer) error {
	s, err := openStoreFromConfig()
	if err != nil {
		return err
	}
	defer s.Close()

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	printSessions(out, sessions)
	return nil
}

func printSessions(out io.Writer, sessions []*store.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No chat sessions yet.")
		return
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(empty)"
		}
		cyan.Fprint(out, s.ID)
		fmt.Fprintf(out, "  %s\n", title)
		gray.Fprintf(out, "    %s · %s\n", pluralMessages(s.MessageCount), humanize.Time(s.CreatedAt))
	}
	gray.Fprintf(out, "\n%s total\n", humanize.Comma(int64(len(sessions))))
}

func pluralMessages(n int) string {
	if n == 1 {
		return "1 message"
	}
	return humanize.Comma(int64(n)) + " messages"
}

func runShow(ctx context.Context, out io.Writer, sessionID string) error {
	s, err := openStoreFromConfig()
	if err != nil {
		return err
	}
	defer s.Close()

	return showSession(ctx, out, s, sessionID)
}

func showSession(ctx context.Context, out io.Writer, s store.Store, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	msgs, err := s.LoadSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading transcript: %w", err)
	}

	printTranscript(out, session, msgs)
	return nil
}

func printTranscript(out io.Writer, session *store.Session, msgs []*store.Message) {
	bold := color.New(color.Bold)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen, color.Bold)
	blue := color.New(color.FgBlue, color.Bold)

	bold.Fprintf(out, "%s\n", session.ID)
	gray.Fprintf(out, "created %s\n\n", humanize.Time(session.CreatedAt))

	if len(msgs) == 0 {
		gray.Fprintln(out, "(no messages)")
		return
	}

	for _, m := range msgs {
		if m.Role == store.RoleUser {
			green.Fprint(out, "you")
		} else {
			blue.Fprint(out, "assistant")
		}
		gray.Fprintf(out, "  %s\n", m.CreatedAt.Local().Format(time.DateTime))
		fmt.Fprintf(out, "%s\n\n", m.Content)
	}
}

func runHealth(ctx context.Context, out io.Writer) error {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	ready, err := checkHealth(ctx, "http://"+cfg.Server.HTTPAddr)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "healthy")
	fmt.Fprintln(out, ready)
	return nil
}

// checkHealth probes /health and /health/ready and returns the readiness text.
func checkHealth(ctx context.Context, baseURL string) (string, error) {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)

	resp, err := client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("unhealthy: status %d", resp.StatusCode())
	}

	resp, err = client.R().SetContext(ctx).Get("/health/ready")
	if err != nil {
		return "", fmt.Errorf("readiness check failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("not ready: status %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.String(), nil
}
