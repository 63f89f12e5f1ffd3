// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML/TOML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8501"

database:
  path: "./test.db"
  driver: "sqlite3"

responder:
  kind: "openai"
  base_url: "https://api.example.com/v1"
  api_key: "sk-test"
  model: "gpt-4o-mini"
  system_prompt: "You are a financial advisor."
  timeout: "45s"

webui:
  title: "Finance Chat"
  cookie_secret: "s3cret"
  state_ttl: "24h"
  sample_prompts:
    - "Best cashback credit cards?"
    - "Low risk mutual funds"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8501" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8501")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite3")
	}
	if cfg.Responder.Kind != ResponderOpenAI {
		t.Errorf("Responder.Kind = %q, want %q", cfg.Responder.Kind, ResponderOpenAI)
	}
	if cfg.Responder.Model != "gpt-4o-mini" {
		t.Errorf("Responder.Model = %q, want %q", cfg.Responder.Model, "gpt-4o-mini")
	}
	if cfg.Responder.Timeout != 45*time.Second {
		t.Errorf("Responder.Timeout = %v, want %v", cfg.Responder.Timeout, 45*time.Second)
	}
	if cfg.WebUI.Title != "Finance Chat" {
		t.Errorf("WebUI.Title = %q, want %q", cfg.WebUI.Title, "Finance Chat")
	}
	if cfg.WebUI.StateTTL != 24*time.Hour {
		t.Errorf("WebUI.StateTTL = %v, want %v", cfg.WebUI.StateTTL, 24*time.Hour)
	}
	if len(cfg.WebUI.SamplePrompts) != 2 {
		t.Errorf("WebUI.SamplePrompts len = %d, want 2", len(cfg.WebUI.SamplePrompts))
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[server]
http_addr = "127.0.0.1:9000"

[database]
path = "./chat.db"

[responder]
kind = "webhook"
url = "http://localhost:9999/reply"
timeout = "5s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9000")
	}
	if cfg.Responder.Kind != ResponderWebhook {
		t.Errorf("Responder.Kind = %q, want %q", cfg.Responder.Kind, ResponderWebhook)
	}
	if cfg.Responder.URL != "http://localhost:9999/reply" {
		t.Errorf("Responder.URL = %q", cfg.Responder.URL)
	}
	if cfg.Responder.Timeout != 5*time.Second {
		t.Errorf("Responder.Timeout = %v, want %v", cfg.Responder.Timeout, 5*time.Second)
	}
	if cfg.Database.Driver != DefaultDriver {
		t.Errorf("Database.Driver = %q, want default %q", cfg.Database.Driver, DefaultDriver)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Responder.Kind != ResponderEcho {
		t.Errorf("Responder.Kind = %q, want %q", cfg.Responder.Kind, ResponderEcho)
	}
	if cfg.Responder.Timeout != DefaultResponderTimeout {
		t.Errorf("Responder.Timeout = %v, want %v", cfg.Responder.Timeout, DefaultResponderTimeout)
	}
	if cfg.WebUI.Title != DefaultTitle {
		t.Errorf("WebUI.Title = %q, want %q", cfg.WebUI.Title, DefaultTitle)
	}
	if cfg.WebUI.StateTTL != DefaultStateTTL {
		t.Errorf("WebUI.StateTTL = %v, want %v", cfg.WebUI.StateTTL, DefaultStateTTL)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if len(cfg.WebUI.SamplePrompts) != len(DefaultSamplePrompts) {
		t.Errorf("WebUI.SamplePrompts = %v, want %v", cfg.WebUI.SamplePrompts, DefaultSamplePrompts)
	}
}

func TestLoad_ZeroTimeoutKept(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
responder:
  timeout: 0s
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Responder.Timeout != 0 {
		t.Errorf("Responder.Timeout = %v, want 0", cfg.Responder.Timeout)
	}
}

func TestLoad_EmptySamplePromptsKept(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
webui:
  sample_prompts: []
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.WebUI.SamplePrompts) != 0 {
		t.Errorf("WebUI.SamplePrompts = %v, want none", cfg.WebUI.SamplePrompts)
	}
}

func TestDefault_HasSamplePrompts(t *testing.T) {
	cfg := Default(t.TempDir())
	if len(cfg.WebUI.SamplePrompts) == 0 {
		t.Fatal("Default() has no sample prompts")
	}
	if cfg.WebUI.SamplePrompts[0] != DefaultSamplePrompts[0] {
		t.Errorf("SamplePrompts[0] = %q, want %q", cfg.WebUI.SamplePrompts[0], DefaultSamplePrompts[0])
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")
	t.Setenv("TEST_COOKIE_SECRET", "cookie-from-env")

	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
responder:
  kind: "openai"
  model: "gpt-4o-mini"
  api_key: "${TEST_OPENAI_KEY}"
webui:
  cookie_secret: "${TEST_COOKIE_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Responder.APIKey != "sk-from-env" {
		t.Errorf("Responder.APIKey = %q, want %q", cfg.Responder.APIKey, "sk-from-env")
	}
	if cfg.WebUI.CookieSecret != "cookie-from-env" {
		t.Errorf("WebUI.CookieSecret = %q, want %q", cfg.WebUI.CookieSecret, "cookie-from-env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", "database: [unclosed")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
responder:
  timeout: "soon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "responder.timeout") {
		t.Errorf("Load() error = %q, want it to name responder.timeout", err.Error())
	}
}

func TestLoad_InvalidFields(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name: "missing database path",
			configContent: `
database:
  path: ""
`,
			wantErrSubstr: "database.path is required",
		},
		{
			name: "unknown driver",
			configContent: `
database:
  path: "./test.db"
  driver: "postgres"
`,
			wantErrSubstr: "database.driver must be",
		},
		{
			name: "unknown responder",
			configContent: `
database:
  path: "./test.db"
responder:
  kind: "oracle"
`,
			wantErrSubstr: "responder.kind must be",
		},
		{
			name: "openai without model",
			configContent: `
database:
  path: "./test.db"
responder:
  kind: "openai"
`,
			wantErrSubstr: "responder.model is required",
		},
		{
			name: "webhook without url",
			configContent: `
database:
  path: "./test.db"
responder:
  kind: "webhook"
`,
			wantErrSubstr: "responder.url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, "config.yaml", tt.configContent)

			_, err := Load(configPath)
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}

			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single env var", "${FOO}", "bar"},
		{"env var with surrounding text", "prefix-${FOO}-suffix", "prefix-bar-suffix"},
		{"multiple env vars", "${FOO}/${BAZ}", "bar/qux"},
		{"no env vars", "no-vars-here", "no-vars-here"},
		{"unset env var", "${UNSET_VAR_FOR_COVEN_CHAT}", ""},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidate_TailscaleConfig(t *testing.T) {
	base := func() Config {
		return Config{
			Database:  DatabaseConfig{Path: "./test.db", Driver: "sqlite"},
			Responder: ResponderConfig{Kind: ResponderEcho},
		}
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		wantErrSubstr string
	}{
		{
			name: "tailscale enabled allows empty server address",
			mutate: func(c *Config) {
				c.Tailscale = TailscaleConfig{Enabled: true, Hostname: "coven-chat"}
			},
		},
		{
			name: "tailscale enabled requires hostname",
			mutate: func(c *Config) {
				c.Tailscale = TailscaleConfig{Enabled: true}
			},
			wantErrSubstr: "tailscale.hostname is required",
		},
		{
			name:          "tailscale disabled requires server address",
			mutate:        func(c *Config) {},
			wantErrSubstr: "server.http_addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErrSubstr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestDefault_RoundTripsThroughMarshal(t *testing.T) {
	cfg := Default("/var/lib/coven-chat")

	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	parsed, err := Parse(data, FormatYAML)
	if err != nil {
		t.Fatalf("Parse() error = %v\n%s", err, data)
	}

	if parsed.Database.Path != filepath.Join("/var/lib/coven-chat", "chat.db") {
		t.Errorf("Database.Path = %q", parsed.Database.Path)
	}
	if parsed.Responder.Timeout != DefaultResponderTimeout {
		t.Errorf("Responder.Timeout = %v, want %v", parsed.Responder.Timeout, DefaultResponderTimeout)
	}
}
