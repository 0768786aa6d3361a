package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
)

// KDL configuration file names
const (
	GlobalConfigFile  = "config.kdl"
	ProjectConfigFile = ".devchat.kdl"
)

// KDLConfig represents the KDL configuration structure.
// Uses kdl struct tags for unmarshaling.
type KDLConfig struct {
	Version  string      `kdl:"version"`
	Settings KDLSettings `kdl:"settings"`
	Chat     KDLChat     `kdl:"chat"`
}

// KDLSettings holds server settings from KDL. Durations are in seconds.
type KDLSettings struct {
	Listen          string `kdl:"listen"`
	Loader          string `kdl:"loader"`
	ChromeURL       string `kdl:"chrome-url"`
	LoadTimeout     int    `kdl:"load-timeout"`
	GracefulTimeout int    `kdl:"graceful-timeout"`
}

// KDLChat holds chat settings from KDL.
type KDLChat struct {
	Provider     string   `kdl:"provider"`
	Model        string   `kdl:"model"`
	Models       []string `kdl:"models"`
	Temperature  float64  `kdl:"temperature"`
	MaxTokens    int      `kdl:"max-tokens"`
	HistoryLimit int      `kdl:"history-limit"`
	BaseURL      string   `kdl:"base-url"`
}

// Load builds the effective configuration: defaults, then the global file,
// then the nearest project file at or above dir, then the environment.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	if path := GlobalConfigPath(); path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if path := FindProjectConfigFile(dir); path != "" {
		log.Printf("[DEBUG] config: project file %s", path)
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var kdlCfg KDLConfig
	if err := kdl.Unmarshal(data, &kdlCfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	mergeKDL(cfg, &kdlCfg)
	return nil
}

// LoadConfigFile loads configuration from a specific file path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseKDLConfig(string(data))
}

// ParseKDLConfig parses KDL configuration data on top of the defaults.
func ParseKDLConfig(data string) (*Config, error) {
	var kdlCfg KDLConfig
	if err := kdl.Unmarshal([]byte(data), &kdlCfg); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	mergeKDL(cfg, &kdlCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeKDL copies every value set in kdlCfg over cfg.
func mergeKDL(cfg *Config, kdlCfg *KDLConfig) {
	if kdlCfg.Version != "" {
		cfg.Version = kdlCfg.Version
	}

	s := kdlCfg.Settings
	if s.Listen != "" {
		cfg.Settings.Listen = s.Listen
	}
	if s.Loader != "" {
		cfg.Settings.Loader = s.Loader
	}
	if s.ChromeURL != "" {
		cfg.Settings.ChromeURL = s.ChromeURL
	}
	if s.LoadTimeout > 0 {
		cfg.Settings.LoadTimeout = time.Duration(s.LoadTimeout) * time.Second
	}
	if s.GracefulTimeout > 0 {
		cfg.Settings.GracefulTimeout = time.Duration(s.GracefulTimeout) * time.Second
	}

	c := kdlCfg.Chat
	if c.Provider != "" {
		cfg.Chat.Provider = c.Provider
	}
	if c.Model != "" {
		cfg.Chat.Model = c.Model
	}
	if len(c.Models) > 0 {
		cfg.Chat.Models = c.Models
	}
	if c.Temperature != 0 {
		cfg.Chat.Temperature = c.Temperature
	}
	if c.MaxTokens > 0 {
		cfg.Chat.MaxTokens = c.MaxTokens
	}
	if c.HistoryLimit > 0 {
		cfg.Chat.HistoryLimit = c.HistoryLimit
	}
	if c.BaseURL != "" {
		cfg.Chat.BaseURL = c.BaseURL
	}
}

// FindProjectConfigFile searches for .devchat.kdl starting from dir and walking up.
func FindProjectConfigFile(dir string) string {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(absDir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			// Reached root
			break
		}
		absDir = parent
	}

	return ""
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "devchat", GlobalConfigFile)
}

// WriteDefaultConfig writes a default config file with documentation.
func WriteDefaultConfig(path string) error {
	defaultKDL := `// devchat Configuration
// API keys are read from the environment (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...)

version "1.0"

settings {
    // Bridge HTTP address
    listen "127.0.0.1:7878"
    // Page loader: "http" or "chrome" (headless browser)
    loader "http"
    // Page load timeout in seconds
    load-timeout 30
    // Graceful shutdown timeout in seconds
    graceful-timeout 5
}

chat {
    // Provider: openai, anthropic, google, mistral, deepseek, openrouter, together, glm, anthropic-sdk
    provider "openai"
    model "gpt-3.5-turbo"
    models "gpt-3.5-turbo" "gpt-4" "gpt-4-turbo-preview"
    temperature 0.7
    max-tokens 500
    // Messages kept per tab, system message included
    history-limit 10
}
`
	// Create directory if needed
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, []byte(strings.TrimSpace(defaultKDL)+"\n"), 0644)
}
