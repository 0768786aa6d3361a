package chat

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLMProvider represents a supported LLM provider type.
type LLMProvider string

const (
	ProviderOpenAI     LLMProvider = "openai"
	ProviderAnthropic  LLMProvider = "anthropic"
	ProviderGoogle     LLMProvider = "google"
	ProviderMistral    LLMProvider = "mistral"
	ProviderDeepSeek   LLMProvider = "deepseek"
	ProviderOpenRouter LLMProvider = "openrouter"
	ProviderTogether   LLMProvider = "together"
	ProviderGLM        LLMProvider = "glm"
)

// ProviderInfo contains configuration for a provider.
type ProviderInfo struct {
	// EnvKeys are environment variable names to check for API key (in order)
	EnvKeys []string
	// BaseURL for OpenAI-compatible providers
	BaseURL string
	// DefaultModel is the default model to use
	DefaultModel string
	// IsOpenAICompatible indicates if this uses the OpenAI API format
	IsOpenAICompatible bool
}

// providerRegistry maps providers to their configuration.
var providerRegistry = map[LLMProvider]ProviderInfo{
	ProviderOpenAI: {
		EnvKeys:            []string{"OPENAI_API_KEY", "OPENAI_KEY"},
		DefaultModel:       "gpt-3.5-turbo",
		IsOpenAICompatible: true,
	},
	ProviderAnthropic: {
		EnvKeys:      []string{"ANTHROPIC_API_KEY", "CLAUDE_KEY"},
		DefaultModel: "claude-sonnet-4-5-20250929",
	},
	ProviderGoogle: {
		EnvKeys:      []string{"GOOGLE_API_KEY", "GOOGLE_KEY"},
		DefaultModel: "gemini-1.5-flash",
	},
	ProviderMistral: {
		EnvKeys:      []string{"MISTRAL_API_KEY", "MISTRAL_KEY"},
		DefaultModel: "mistral-small-latest",
	},
	ProviderDeepSeek: {
		EnvKeys:            []string{"DEEPSEEK_API_KEY", "DEEP_SEEK_KEY"},
		BaseURL:            "https://api.deepseek.com/v1",
		DefaultModel:       "deepseek-chat",
		IsOpenAICompatible: true,
	},
	ProviderOpenRouter: {
		EnvKeys:            []string{"OPENROUTER_API_KEY", "OPEN_ROUTER_KEY"},
		BaseURL:            "https://openrouter.ai/api/v1",
		DefaultModel:       "openai/gpt-4o-mini",
		IsOpenAICompatible: true,
	},
	ProviderTogether: {
		EnvKeys:            []string{"TOGETHER_API_KEY", "TOGETHER_KEY"},
		BaseURL:            "https://api.together.xyz/v1",
		DefaultModel:       "meta-llama/Llama-3-70b-chat-hf",
		IsOpenAICompatible: true,
	},
	ProviderGLM: {
		EnvKeys:            []string{"GLM_API_KEY", "GLM_KEY"},
		BaseURL:            "https://open.bigmodel.cn/api/paas/v4",
		DefaultModel:       "glm-4-flash",
		IsOpenAICompatible: true,
	},
}

// LangChainProvider implements the Provider interface using langchaingo.
type LangChainProvider struct {
	llm      llms.Model
	provider LLMProvider
	model    string
	apiKey   string
}

// LangChainConfig configures a LangChain provider.
type LangChainConfig struct {
	// Provider is the LLM provider to use
	Provider LLMProvider
	// APIKey overrides environment variable lookup
	APIKey string
	// Model overrides the default model
	Model string
	// BaseURL overrides the registry endpoint (OpenAI-compatible providers only)
	BaseURL string
}

// NewLangChainProvider creates a new LangChain-based provider.
func NewLangChainProvider(config LangChainConfig) (*LangChainProvider, error) {
	info, ok := providerRegistry[config.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", config.Provider)
	}

	// Find API key
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = GetAPIKeyForProvider(config.Provider)
	}

	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key found for %s (tried: %v)", ErrNoAPIKey, config.Provider, info.EnvKeys)
	}

	// Determine model
	model := config.Model
	if model == "" {
		model = info.DefaultModel
	}

	baseURL := info.BaseURL
	if config.BaseURL != "" {
		baseURL = config.BaseURL
	}

	var llm llms.Model
	var err error

	if info.IsOpenAICompatible {
		opts := []openai.Option{
			openai.WithToken(apiKey),
			openai.WithModel(model),
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		llm, err = openai.New(opts...)
	} else {
		switch config.Provider {
		case ProviderAnthropic:
			llm, err = anthropic.New(
				anthropic.WithToken(apiKey),
				anthropic.WithModel(model),
			)
		case ProviderGoogle:
			llm, err = googleai.New(
				context.Background(),
				googleai.WithAPIKey(apiKey),
				googleai.WithDefaultModel(model),
			)
		case ProviderMistral:
			llm, err = mistral.New(
				mistral.WithAPIKey(apiKey),
				mistral.WithModel(model),
			)
		default:
			return nil, fmt.Errorf("provider %s not implemented", config.Provider)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s LLM: %w", config.Provider, err)
	}

	return &LangChainProvider{
		llm:      llm,
		provider: config.Provider,
		model:    model,
		apiKey:   apiKey,
	}, nil
}

// Name returns the provider name.
func (p *LangChainProvider) Name() string {
	return string(p.provider)
}

// IsConfigured returns true if the provider has an API key.
func (p *LangChainProvider) IsConfigured() bool {
	return p.apiKey != ""
}

// Model returns the configured default model name.
func (p *LangChainProvider) Model() string {
	return p.model
}

// Chat sends the conversation and returns the first choice.
func (p *LangChainProvider) Chat(ctx context.Context, opts Options, messages []Message) (*Response, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(messageType(m.Role), m.Content))
	}

	model := opts.Model
	if model == "" {
		model = p.model
	}
	callOpts := []llms.CallOption{llms.WithModel(model)}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	resp, err := p.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response choices", ErrProviderError)
	}

	return &Response{Content: resp.Choices[0].Content}, nil
}

func messageType(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// GetAPIKeyForProvider returns the API key for a provider from environment variables.
func GetAPIKeyForProvider(provider LLMProvider) string {
	info, ok := providerRegistry[provider]
	if !ok {
		return ""
	}
	for _, envKey := range info.EnvKeys {
		if key := os.Getenv(envKey); key != "" {
			return key
		}
	}
	return ""
}

// IsProviderConfigured checks if a provider has an API key available.
func IsProviderConfigured(provider LLMProvider) bool {
	return GetAPIKeyForProvider(provider) != ""
}

// KnownProviders returns the registry provider names in sorted order.
func KnownProviders() []LLMProvider {
	out := make([]LLMProvider, 0, len(providerRegistry))
	for p := range providerRegistry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
