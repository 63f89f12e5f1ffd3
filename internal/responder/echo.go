// ABOUTME: Offline responder that echoes the latest user message
// ABOUTME: Default backend for local development and tests

package responder

import (
	"context"
	"fmt"
)

// Echo replies by quoting the most recent user turn.
type Echo struct{}

// NewEcho creates an echo responder
func NewEcho() *Echo {
	return &Echo{}
}

// Name implements Responder
func (e *Echo) Name() string {
	return "echo"
}

// Respond implements Responder
func (e *Echo) Respond(ctx context.Context, transcript []Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	last := lastUserTurn(transcript)
	if last == "" {
		return "", fmt.Errorf("transcript has no user message")
	}

	return fmt.Sprintf("You said: %s", last), nil
}
