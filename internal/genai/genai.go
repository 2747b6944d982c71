// Package genai provides text generation for the assistant personas using the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// ClientInterface defines the generation operation persona generators depend on.
type ClientInterface interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string // OpenAI API key
	Model   string // model identifier
	BaseURL string // alternative model endpoint
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the model identifier used for completions.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithBaseURL points the client at an alternative OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) {
		o.BaseURL = url
	}
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a GenAI client, falling back to the OPENAI_API_KEY
// environment variable when no key option is provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		slog.Error("GenAI NewClient: API key not set")
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	slog.Debug("GenAI NewClient created", "model", cfg.Model, "baseURL_set", cfg.BaseURL != "")
	return &Client{client: openai.NewClient(reqOpts...), model: cfg.Model}, nil
}

// Generate produces a completion for the given system and user prompts.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	slog.Debug("GenAI Generate invoked", "model", c.model, "temperature", temperature, "systemPromptLength", len(systemPrompt), "userPromptLength", len(userPrompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		slog.Error("GenAI Generate failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI Generate returned no choices", "model", c.model)
		return "", fmt.Errorf("no choices returned")
	}

	content := resp.Choices[0].Message.Content
	slog.Debug("GenAI Generate succeeded", "model", c.model, "responseLength", len(content))
	return content, nil
}
