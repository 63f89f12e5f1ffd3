// ABOUTME: Optional tsnet listener so the chat UI can be served only on a tailnet
// ABOUTME: Plain HTTP on :80, or HTTPS on :443 with certificates issued by Tailscale

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/coven-chat/internal/config"
)

// tailnetStateDir picks where the node keeps its keys. Unset means
// ~/.local/share/coven-chat/tailscale.
func tailnetStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no home directory for tailnet state, set tailscale.state_dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "coven-chat", "tailscale"), nil
}

// tailnetAuthKey prefers the configured key and falls back to TS_AUTHKEY.
func tailnetAuthKey(configured string) (string, error) {
	for _, key := range []string{configured, os.Getenv("TS_AUTHKEY")} {
		if key != "" {
			return key, nil
		}
	}
	return "", errors.New("tailscale needs an auth key: set tailscale.auth_key or TS_AUTHKEY")
}

func tailnetPort(https bool) string {
	if https {
		return ":443"
	}
	return ":80"
}

// newTailnetNode builds an unstarted tsnet node for the chat server.
func newTailnetNode(ts config.TailscaleConfig) (*tsnet.Server, error) {
	dir, err := tailnetStateDir(ts.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailnet state dir: %w", err)
	}

	key, err := tailnetAuthKey(ts.AuthKey)
	if err != nil {
		return nil, err
	}

	return &tsnet.Server{
		Hostname:  ts.Hostname,
		Dir:       dir,
		Ephemeral: ts.Ephemeral,
		AuthKey:   key,
	}, nil
}

// setupTailscaleListener joins the tailnet and listens for chat traffic on it.
// On failure the node is closed and forgotten, so Shutdown does not close it again.
func (s *Server) setupTailscaleListener(ctx context.Context) (ln net.Listener, err error) {
	ts := s.config.Tailscale

	node, err := newTailnetNode(ts)
	if err != nil {
		return nil, err
	}
	s.tsnetServer = node
	defer func() {
		if err != nil {
			_ = node.Close()
			s.tsnetServer = nil
		}
	}()

	s.logger.Info("joining tailnet", "hostname", ts.Hostname, "state_dir", node.Dir, "ephemeral", ts.Ephemeral)
	status, err := node.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logger.Info("tailnet node ready", tailnetStatusAttrs(ts.Hostname, status)...)

	port := tailnetPort(ts.HTTPS)
	ln, err = node.Listen("tcp", port)
	if err != nil {
		return nil, fmt.Errorf("listening on tailnet port %s: %w", port, err)
	}
	if !ts.HTTPS {
		return ln, nil
	}

	lc, err := node.LocalClient()
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	s.logger.Info("serving chat over HTTPS with tailnet certificates")
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// tailnetStatusAttrs turns a node status into log attributes. A node without
// an address yet logs an empty tailscale_ip.
func tailnetStatusAttrs(hostname string, status *ipnstate.Status) []any {
	attrs := []any{"hostname", hostname}
	if status == nil {
		return attrs
	}
	ip := ""
	if len(status.TailscaleIPs) > 0 {
		ip = status.TailscaleIPs[0].String()
	}
	attrs = append(attrs, "tailscale_ip", ip)
	if status.Self != nil {
		attrs = append(attrs, "dns_name", status.Self.DNSName)
	}
	return attrs
}
