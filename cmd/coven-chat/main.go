// ABOUTME: Entry point for coven-chat, a browser chat UI with persistent sessions
// ABOUTME: Dispatches serve/init/sessions/show/health subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                          _           _
  ___ _____   _____ _ __         ___| |__   __ _| |_
 / __/ _ \ \ / / _ \ '_ \ _____ / __| '_ \ / _' | __|
| (_| (_) \ V /  __/ | | |_____| (__| | | | (_| | |_
 \___\___/ \_/ \___|_| |_|      \___|_| |_|\__,_|\__|
`

// getConfigPath returns the path to the config file.
// Priority: COVEN_CHAT_CONFIG env var > XDG_CONFIG_HOME/coven-chat/config.yaml > ~/.config/coven-chat/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_CHAT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven-chat", "config.yaml")
}

// getDataPath returns the path to the data directory.
// Priority: XDG_DATA_HOME/coven-chat > ~/.local/share/coven-chat
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven-chat")
}

// loadConfig reads the config file, falling back to local defaults when none exists.
func loadConfig(path string) (cfg *config.Config, fromFile bool, err error) {
	cfg, err = config.Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(getDataPath()), false, nil
	}
	return nil, false, fmt.Errorf("loading config: %w", err)
}

func usage() {
	fmt.Println("Usage: coven-chat <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve        Start the chat web UI")
	fmt.Println("  init         Create a new config file interactively")
	fmt.Println("  sessions     List saved chat sessions")
	fmt.Println("  show <id>    Print the transcript of a session")
	fmt.Println("  health       Check that a running server is healthy")
	fmt.Println("  version      Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "sessions":
		err = runSessions(ctx, os.Stdout)
	case "show":
		if len(os.Args) < 3 {
			err = errors.New("usage: coven-chat show <session-id>")
			break
		}
		err = runShow(ctx, os.Stdout, os.Args[2])
	case "health":
		err = runHealth(ctx, os.Stdout)
	case "version", "--version", "-v":
		fmt.Println(version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if fromFile {
		fmt.Printf("Config:    %s\n", configPath)
	} else {
		fmt.Printf("Config:    ")
		yellow.Printf("defaults (no file at %s)\n", configPath)
	}
	green.Print("    ▶ ")
	dbPath := cfg.Database.Path
	if envPath := os.Getenv(server.DBPathEnv); envPath != "" {
		dbPath = envPath
	}
	fmt.Printf("Database:  %s (%s)\n", dbPath, cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Responder: %s\n", cfg.Responder.Kind)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("Open:      ")
		cyan.Printf("http://%s/\n", cfg.Server.HTTPAddr)
	}

	if cfg.WebUI.CookieSecret == "" {
		yellow.Println("    ! webui.cookie_secret not set; browsers forget their active chat on restart")
	}

	fmt.Println()

	logger.Info("starting coven-chat",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"responder", cfg.Responder.Kind,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}
