// Package config handles configuration loading for coven-chat.
//
// # Overview
//
// Configuration is loaded from YAML (or TOML, by .toml extension) files with
// environment variable expansion. Load applies defaults before validating,
// so a file containing only database.path is a working config.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_CHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven-chat/config.yaml
//  3. ~/.config/coven-chat/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	responder:
//	  api_key: "${OPENAI_API_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
// Server and database:
//
//	server:
//	  http_addr: "127.0.0.1:8501"
//	database:
//	  path: "~/.local/share/coven-chat/chat.db"
//	  driver: "sqlite"            # or "sqlite3" for the cgo driver
//
// Responder (who writes the assistant replies):
//
//	responder:
//	  kind: "openai"              # echo | openai | webhook
//	  base_url: "https://api.openai.com/v1"
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//	  system_prompt: "You are a helpful assistant."
//	  timeout: "60s"
//
// Web UI:
//
//	webui:
//	  title: "Chatbot with Persistent Memory"
//	  cookie_secret: "${COVEN_CHAT_COOKIE_SECRET}"
//	  state_ttl: "720h"
//	  sample_prompts: ["What can you help me with?"]
//
// Tailscale (serve the UI on a tailnet instead of server.http_addr):
//
//	tailscale:
//	  enabled: true
//	  hostname: "coven-chat"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//
// Logging:
//
//	logging:
//	  level: "info"               # debug | info | warn | error
//	  format: "text"              # text (colour) | json
package config
