// ABOUTME: Responder backed by any OpenAI-compatible chat completions API
// ABOUTME: Sends the full transcript (plus optional system prompt) and returns the first choice

package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the OpenAI-compatible responder
type OpenAIConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
}

// OpenAI implements Responder for OpenAI, DeepSeek, Ollama and other
// servers that speak the chat completions protocol.
type OpenAI struct {
	client       openai.Client
	model        string
	systemPrompt string
}

// NewOpenAI creates an OpenAI-compatible responder.
// An empty APIKey falls back to the OPENAI_API_KEY environment variable.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	// Retries are left to the user; a failed reply is reported, not repeated
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAI{
		client:       openai.NewClient(opts...),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
	}
}

// Name implements Responder
func (o *OpenAI) Name() string {
	return "openai"
}

// Respond implements Responder
func (o *OpenAI) Respond(ctx context.Context, transcript []Turn) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: o.buildMessages(transcript),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) buildMessages(transcript []Turn) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript)+1)

	if o.systemPrompt != "" {
		params = append(params, openai.SystemMessage(o.systemPrompt))
	}

	for _, turn := range transcript {
		switch turn.Role {
		case "assistant":
			params = append(params, openai.AssistantMessage(turn.Content))
		default:
			params = append(params, openai.UserMessage(turn.Content))
		}
	}

	return params
}
