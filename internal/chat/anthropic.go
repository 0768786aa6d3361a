package chat

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ProviderAnthropicSDK selects the native Anthropic client in NewProvider.
const ProviderAnthropicSDK = "anthropic-sdk"

// Default Anthropic models
const (
	AnthropicModelSonnet = "claude-sonnet-4-5-20250929"
	AnthropicModelHaiku  = "claude-haiku-3-5-20241022"
	AnthropicModelOpus   = "claude-opus-4-5-20251101"
)

// AnthropicProvider implements the Provider interface using the Anthropic API.
type AnthropicProvider struct {
	client anthropic.Client
	apiKey string
	model  string
}

// NewAnthropicProvider creates a new Anthropic API provider.
// If the API key is empty, it will try environment variables in order:
// ANTHROPIC_API_KEY, CLAUDE_KEY
func NewAnthropicProvider(config ProviderConfig) *AnthropicProvider {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("CLAUDE_KEY")
	}

	model := config.Model
	if model == "" {
		model = AnthropicModelSonnet
	}

	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		apiKey: apiKey,
		model:  model,
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsConfigured returns true if the provider has an API key.
func (p *AnthropicProvider) IsConfigured() bool {
	return p.apiKey != ""
}

// Model returns the configured default model name.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Chat sends the conversation through the Messages API. System turns are
// joined into the request's system prompt.
func (p *AnthropicProvider) Chat(ctx context.Context, opts Options, messages []Message) (*Response, error) {
	if !p.IsConfigured() {
		return nil, ErrNoAPIKey
	}

	params := p.buildParams(opts, messages)

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	var resultText strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			resultText.WriteString(block.Text)
		}
	}

	return &Response{
		Content: strings.TrimSpace(resultText.String()),
		ID:      message.ID,
	}, nil
}

func (p *AnthropicProvider) buildParams(opts Options, messages []Message) anthropic.MessageNewParams {
	model := opts.Model
	if model == "" {
		model = p.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return params
}
