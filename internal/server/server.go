// ABOUTME: Server wires the store, responder, chat service and web UI into one HTTP process
// ABOUTME: Owns the database handle and listener lifecycle, including graceful shutdown

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/config"
	"github.com/2389/coven-chat/internal/responder"
	"github.com/2389/coven-chat/internal/store"
	"github.com/2389/coven-chat/internal/webui"
)

// DBPathEnv overrides database.path when set
const DBPathEnv = "COVEN_CHAT_DB_PATH"

// Server runs the chat web application.
type Server struct {
	config      *config.Config
	store       store.Store
	chat        *chat.Service
	ui          *webui.UI
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger
}

// OpenStore opens the session store named by config, honouring the
// COVEN_CHAT_DB_PATH override.
func OpenStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv(DBPathEnv); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStoreWithDriver(cfg.Database.Driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a Server with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	r, err := responder.New(cfg.Responder)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("initializing responder: %w", err)
	}

	return newServer(cfg, s, r, logger)
}

// newServer assembles the HTTP side around an already open store and responder.
func newServer(cfg *config.Config, s store.Store, r responder.Responder, logger *slog.Logger) (*Server, error) {
	chatService := chat.New(s, r, logger)

	ui, err := webui.New(chatService, webui.Config{
		Title:         cfg.WebUI.Title,
		CookieSecret:  cfg.WebUI.CookieSecret,
		StateTTL:      cfg.WebUI.StateTTL,
		SamplePrompts: cfg.WebUI.SamplePrompts,
	}, logger)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("initializing web UI: %w", err)
	}

	srv := &Server{
		config: cfg,
		store:  s,
		chat:   chatService,
		ui:     ui,
		logger: logger.With("component", "server"),
	}

	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("GET /health/ready", srv.handleReady)

	ui.RegisterRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           recoverPanics(logRequests(mux, srv.logger), srv.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv.logger.Info("chat server configured", "responder", r.Name(), "driver", cfg.Database.Driver)
	return srv, nil
}

// Handler returns the server's root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupListener creates the HTTP listener (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" && s.config.Server.HTTPAddr != config.DefaultHTTPAddr {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run starts the HTTP server and blocks until ctx is canceled or the server fails.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		if closeErr := s.gracefulShutdown(); closeErr != nil {
			s.logger.Error("cleanup after listener failure", "error", closeErr)
		}
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is canceled, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The caller's context is already canceled at this point.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases the database and tailnet node.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down chat server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	s.ui.Close()

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", s.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the session store answers queries.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.chat.ListSessions(r.Context())
	if err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d sessions)", len(sessions))
}
