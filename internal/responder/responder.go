// ABOUTME: Responder contract for generating assistant replies from a transcript
// ABOUTME: Selects an adapter from config and bounds every call with a timeout

package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2389/coven-chat/internal/config"
)

// ErrResponder wraps every failure of a reply backend
var ErrResponder = errors.New("responder failed")

// Turn is one message of the transcript handed to a responder
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Responder produces a single assistant reply for an ordered transcript.
type Responder interface {
	Respond(ctx context.Context, transcript []Turn) (string, error)
	Name() string
}

// New builds the responder selected by cfg.Kind, wrapped with the configured timeout.
func New(cfg config.ResponderConfig) (Responder, error) {
	var r Responder
	switch cfg.Kind {
	case config.ResponderEcho, "":
		r = NewEcho()
	case config.ResponderOpenAI:
		r = NewOpenAI(OpenAIConfig{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
		})
	case config.ResponderWebhook:
		r = NewWebhook(cfg.URL)
	default:
		return nil, fmt.Errorf("unknown responder kind %q", cfg.Kind)
	}

	return WithTimeout(r, cfg.Timeout), nil
}

// WithTimeout bounds each Respond call and normalises failures so that
// errors.Is(err, ErrResponder) holds for every error it returns.
// A zero timeout leaves the caller's deadline in charge.
func WithTimeout(r Responder, timeout time.Duration) Responder {
	return &guarded{next: r, timeout: timeout}
}

type guarded struct {
	next    Responder
	timeout time.Duration
}

func (g *guarded) Name() string {
	return g.next.Name()
}

func (g *guarded) Respond(ctx context.Context, transcript []Turn) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	reply, err := g.next.Respond(ctx, transcript)
	if err != nil {
		if errors.Is(err, ErrResponder) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", ErrResponder, g.next.Name(), err)
	}

	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%w: %s returned an empty reply", ErrResponder, g.next.Name())
	}

	return reply, nil
}

// lastUserTurn returns the content of the most recent user turn, if any.
func lastUserTurn(transcript []Turn) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == "user" {
			return transcript[i].Content
		}
	}
	return ""
}
