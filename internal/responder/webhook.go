// ABOUTME: Responder that POSTs the transcript to an HTTP endpoint
// ABOUTME: Lets any external service produce replies with a two-field JSON contract

package responder

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// webhookRequest is the JSON body sent to the endpoint
type webhookRequest struct {
	Messages []Turn `json:"messages"`
}

// webhookResponse is the JSON body expected back
type webhookResponse struct {
	Reply string `json:"reply"`
}

// Webhook implements Responder over plain HTTP:
//
//	POST {url}  {"messages":[{"role":"user","content":"hi"}]}
//	200 OK      {"reply":"hello"}
type Webhook struct {
	client *resty.Client
	url    string
}

// NewWebhook creates a webhook responder for the given endpoint
func NewWebhook(url string) *Webhook {
	return &Webhook{
		client: resty.New().
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		url: url,
	}
}

// Name implements Responder
func (w *Webhook) Name() string {
	return "webhook"
}

// Respond implements Responder
func (w *Webhook) Respond(ctx context.Context, transcript []Turn) (string, error) {
	var out webhookResponse

	res, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookRequest{Messages: transcript}).
		SetResult(&out).
		Post(w.url)
	if err != nil {
		return "", fmt.Errorf("calling webhook: %w", err)
	}

	if !res.IsSuccess() {
		return "", fmt.Errorf("webhook returned status %d: %s", res.StatusCode(), truncate(res.String(), 200))
	}

	return out.Reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
