// ABOUTME: Configuration loading and parsing for coven-chat
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Responder kinds
const (
	ResponderEcho    = "echo"
	ResponderOpenAI  = "openai"
	ResponderWebhook = "webhook"
)

// Defaults applied by Load before validation
const (
	DefaultHTTPAddr         = "127.0.0.1:8501"
	DefaultDriver           = "sqlite"
	DefaultResponderTimeout = 60 * time.Second
	DefaultStateTTL         = 30 * 24 * time.Hour
	DefaultTitle            = "Chatbot with Persistent Memory"
)

// DefaultSamplePrompts seed the sidebar and intro page when the config lists none
var DefaultSamplePrompts = []string{
	"Best credit cards for cashback",
	"Low risk mutual funds",
	"High interest fixed deposits",
	"Tax saving investment options",
	"Travel credit cards comparison",
}

// Config represents the complete coven-chat configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Responder ResponderConfig `yaml:"responder" toml:"responder"`
	WebUI     WebUIConfig     `yaml:"webui" toml:"webui"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
}

// ResponderConfig selects and configures the assistant reply backend
type ResponderConfig struct {
	Kind         string        `yaml:"kind" toml:"kind"` // echo, openai, webhook
	BaseURL      string        `yaml:"base_url" toml:"base_url"`
	APIKey       string        `yaml:"api_key" toml:"api_key"`
	Model        string        `yaml:"model" toml:"model"`
	SystemPrompt string        `yaml:"system_prompt" toml:"system_prompt"`
	URL          string        `yaml:"url" toml:"url"` // webhook endpoint
	Timeout      time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// WebUIConfig holds browser UI configuration
type WebUIConfig struct {
	Title string `yaml:"title" toml:"title"`

	// CookieSecret signs the per-browser state cookie. If empty a random
	// secret is generated at startup and browser state resets on restart.
	CookieSecret string `yaml:"cookie_secret" toml:"cookie_secret"`

	StateTTL    time.Duration `yaml:"-" toml:"-"`
	StateTTLRaw string        `yaml:"state_ttl" toml:"state_ttl"`

	// SamplePrompts are shown while no session is selected
	SamplePrompts []string `yaml:"sample_prompts" toml:"sample_prompts"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"` // Serve HTTPS on :443 using Tailscale certs
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data, formatFromPath(path))
}

// Format identifies a config file syntax
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func formatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes raw config bytes, applies defaults and validates the result.
func Parse(data []byte, format Format) (*Config, error) {
	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration that runs locally with the echo responder.
func Default(dataDir string) *Config {
	cfg := &Config{
		Database: DatabaseConfig{Path: filepath.Join(dataDir, "chat.db")},
	}
	cfg.ApplyDefaults()
	return cfg
}

// envVarPattern matches ${VAR_NAME}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ApplyDefaults fills in unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Responder.Kind == "" {
		c.Responder.Kind = ResponderEcho
	}
	// An explicit "0s" leaves the deadline to the caller
	if c.Responder.Timeout == 0 && c.Responder.TimeoutRaw == "" {
		c.Responder.Timeout = DefaultResponderTimeout
	}
	if c.WebUI.Title == "" {
		c.WebUI.Title = DefaultTitle
	}
	if c.WebUI.StateTTL == 0 {
		c.WebUI.StateTTL = DefaultStateTTL
	}
	if c.WebUI.SamplePrompts == nil {
		c.WebUI.SamplePrompts = append([]string(nil), DefaultSamplePrompts...)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	switch c.Responder.Kind {
	case ResponderEcho:
	case ResponderOpenAI:
		if c.Responder.Model == "" {
			return errors.New("responder.model is required for the openai responder")
		}
	case ResponderWebhook:
		if c.Responder.URL == "" {
			return errors.New("responder.url is required for the webhook responder")
		}
	default:
		return fmt.Errorf("responder.kind must be echo, openai or webhook, got %q", c.Responder.Kind)
	}

	if c.Responder.Timeout < 0 {
		return errors.New("responder.timeout must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Responder.TimeoutRaw != "" {
		cfg.Responder.Timeout, err = time.ParseDuration(cfg.Responder.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing responder.timeout %q: %w", cfg.Responder.TimeoutRaw, err)
		}
	}

	if cfg.WebUI.StateTTLRaw != "" {
		cfg.WebUI.StateTTL, err = time.ParseDuration(cfg.WebUI.StateTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing webui.state_ttl %q: %w", cfg.WebUI.StateTTLRaw, err)
		}
	}

	return nil
}

// Marshal renders the configuration as YAML, e.g. for `coven-chat init`.
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	if out.Responder.TimeoutRaw == "" {
		out.Responder.TimeoutRaw = c.Responder.Timeout.String()
	}
	if out.WebUI.StateTTLRaw == "" {
		out.WebUI.StateTTLRaw = c.WebUI.StateTTL.String()
	}
	return yaml.Marshal(&out)
}
