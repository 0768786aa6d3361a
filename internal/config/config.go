// Package config contains configuration types for devchat.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/standardbeagle/devchat/internal/chat"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the complete devchat configuration.
type Config struct {
	// Version is the config file version.
	Version string `json:"version"`

	// Settings are server and loader settings.
	Settings Settings `json:"settings"`

	// Chat configures the chat provider and conversation window.
	Chat ChatConfig `json:"chat"`
}

// Settings holds server and page loading settings.
type Settings struct {
	// Listen is the bridge HTTP address.
	Listen string `json:"listen"`
	// Loader selects how pages are fetched: "http" or "chrome".
	Loader string `json:"loader"`
	// ChromeURL points the chrome loader at a running browser.
	ChromeURL string `json:"chrome_url,omitempty"`
	// LoadTimeout bounds a single page load.
	LoadTimeout time.Duration `json:"load_timeout"`
	// GracefulTimeout is the graceful shutdown timeout.
	GracefulTimeout time.Duration `json:"graceful_timeout"`
}

// ChatConfig holds chat provider settings. API keys come from the
// environment only.
type ChatConfig struct {
	// Provider names the backend ("openai", "deepseek", "anthropic-sdk", ...).
	Provider string `json:"provider"`
	// Model is the default model.
	Model string `json:"model"`
	// Models is the list offered to the panel.
	Models []string `json:"models"`
	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature"`
	// MaxTokens caps each reply.
	MaxTokens int `json:"max_tokens"`
	// HistoryLimit is the per-tab message window, system message included.
	HistoryLimit int `json:"history_limit"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `json:"base_url,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Settings: Settings{
			Listen:          "127.0.0.1:7878",
			Loader:          "http",
			LoadTimeout:     30 * time.Second,
			GracefulTimeout: 5 * time.Second,
		},
		Chat: ChatConfig{
			Provider:     "openai",
			Model:        chat.DefaultModel,
			Models:       append([]string(nil), chat.DefaultModels...),
			Temperature:  chat.DefaultTemperature,
			MaxTokens:    chat.DefaultMaxTokens,
			HistoryLimit: chat.DefaultHistoryLimit,
		},
	}
}

// Validate fills zero values with defaults and rejects settings that cannot
// work.
func (c *Config) Validate() error {
	def := DefaultConfig()
	if c.Settings.Listen == "" {
		c.Settings.Listen = def.Settings.Listen
	}
	if c.Settings.Loader == "" {
		c.Settings.Loader = def.Settings.Loader
	}
	if c.Settings.Loader != "http" && c.Settings.Loader != "chrome" {
		return fmt.Errorf("%w: loader must be \"http\" or \"chrome\", got %q", ErrInvalidConfig, c.Settings.Loader)
	}
	if c.Settings.LoadTimeout <= 0 {
		c.Settings.LoadTimeout = def.Settings.LoadTimeout
	}
	if c.Settings.GracefulTimeout <= 0 {
		c.Settings.GracefulTimeout = def.Settings.GracefulTimeout
	}

	if c.Chat.Provider == "" {
		c.Chat.Provider = def.Chat.Provider
	}
	if !knownProvider(c.Chat.Provider) {
		return fmt.Errorf("%w: unknown provider %q (known: %s, %s)", ErrInvalidConfig,
			c.Chat.Provider, providerList(), chat.ProviderAnthropicSDK)
	}
	if c.Chat.Model == "" {
		c.Chat.Model = def.Chat.Model
	}
	if len(c.Chat.Models) == 0 {
		c.Chat.Models = def.Chat.Models
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v out of range [0, 2]", ErrInvalidConfig, c.Chat.Temperature)
	}
	if c.Chat.Temperature == 0 {
		c.Chat.Temperature = def.Chat.Temperature
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = def.Chat.MaxTokens
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = def.Chat.HistoryLimit
	}
	if c.Chat.HistoryLimit < 2 {
		return fmt.Errorf("%w: history-limit must keep at least the system message and one turn", ErrInvalidConfig)
	}
	return nil
}

func knownProvider(name string) bool {
	if name == chat.ProviderAnthropicSDK {
		return true
	}
	for _, p := range chat.KnownProviders() {
		if string(p) == name {
			return true
		}
	}
	return false
}

func providerList() string {
	names := make([]string, 0, len(chat.KnownProviders()))
	for _, p := range chat.KnownProviders() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// Environment variables that override file settings.
const (
	EnvListen   = "DEVCHAT_LISTEN"
	EnvLoader   = "DEVCHAT_LOADER"
	EnvProvider = "DEVCHAT_PROVIDER"
	EnvModel    = "DEVCHAT_MODEL"
	EnvMaxTok   = "DEVCHAT_MAX_TOKENS"
)

// ApplyEnv overrides settings from DEVCHAT_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Settings.Listen = v
	}
	if v := os.Getenv(EnvLoader); v != "" {
		c.Settings.Loader = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		c.Chat.Provider = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv(EnvMaxTok); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chat.MaxTokens = n
		}
	}
}

// ServiceConfig converts the chat settings for chat.NewService.
func (c *ChatConfig) ServiceConfig() chat.ServiceConfig {
	return chat.ServiceConfig{
		Model:        c.Model,
		Models:       append([]string(nil), c.Models...),
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		HistoryLimit: c.HistoryLimit,
	}
}

// ProviderConfig converts the chat settings for chat.NewProvider.
func (c *ChatConfig) ProviderConfig() chat.ProviderConfig {
	return chat.ProviderConfig{
		Provider: c.Provider,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
	}
}
