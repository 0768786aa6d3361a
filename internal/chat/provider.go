// Package chat sends user questions, with page context and per-tab history,
// to a chat-completion provider.
package chat

import (
	"context"
	"errors"
	"log"
	"sync"
)

// Common errors for providers
var (
	ErrNoAPIKey      = errors.New("API key not configured")
	ErrProviderError = errors.New("provider error")
	ErrUnknownModel  = errors.New("unknown model")
	ErrEmptyMessage  = errors.New("empty message")
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options are per-request generation settings.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Response is a provider completion.
type Response struct {
	// Content is the assistant's reply text.
	Content string `json:"content"`

	// ID is the provider's identifier for the completion, if any.
	ID string `json:"id,omitempty"`
}

// Provider represents an LLM provider that can continue a conversation.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "anthropic")
	Name() string

	// Chat sends the conversation and returns the assistant's reply.
	Chat(ctx context.Context, opts Options, messages []Message) (*Response, error)

	// IsConfigured returns true if the provider has necessary credentials.
	IsConfigured() bool
}

// ProviderConfig holds configuration for building a Provider.
type ProviderConfig struct {
	// Provider selects the backend: any registry name ("openai", "deepseek",
	// ...) or "anthropic-sdk" for the native Anthropic client.
	Provider string `json:"provider,omitempty"`

	// APIKey overrides environment variable lookup
	APIKey string `json:"api_key,omitempty"`

	// Model is the provider default model
	Model string `json:"model,omitempty"`

	// BaseURL overrides the default API endpoint (for proxies/self-hosted)
	BaseURL string `json:"base_url,omitempty"`
}

// NewProvider builds the provider named by cfg. A missing API key is not an
// error here: the returned provider reports IsConfigured() == false and Chat
// fails with ErrNoAPIKey until the key shows up in the environment, so it can
// be supplied later without restarting.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider == "" {
		cfg.Provider = string(ProviderOpenAI)
	}
	p, err := buildProvider(cfg)
	if errors.Is(err, ErrNoAPIKey) || (err == nil && !p.IsConfigured()) {
		return &deferredProvider{cfg: cfg}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func buildProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider == ProviderAnthropicSDK {
		return NewAnthropicProvider(cfg), nil
	}
	p, err := NewLangChainProvider(LangChainConfig{
		Provider: LLMProvider(cfg.Provider),
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// deferredProvider stands in for a provider whose API key is missing and
// builds the real one once the key appears in the environment.
type deferredProvider struct {
	cfg ProviderConfig

	mu sync.Mutex
	p  Provider
}

func (d *deferredProvider) resolve() Provider {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.p != nil {
		return d.p
	}
	p, err := buildProvider(d.cfg)
	if err != nil || !p.IsConfigured() {
		return nil
	}
	log.Printf("[INFO] chat: %s API key found", d.cfg.Provider)
	d.p = p
	return p
}

func (d *deferredProvider) Name() string       { return d.cfg.Provider }
func (d *deferredProvider) IsConfigured() bool { return d.resolve() != nil }

func (d *deferredProvider) Chat(ctx context.Context, opts Options, msgs []Message) (*Response, error) {
	p := d.resolve()
	if p == nil {
		return nil, ErrNoAPIKey
	}
	return p.Chat(ctx, opts, msgs)
}
