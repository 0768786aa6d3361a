package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/devchat/internal/bridge"
	"github.com/standardbeagle/devchat/internal/chat"
	"github.com/standardbeagle/devchat/internal/config"
	"github.com/standardbeagle/devchat/internal/page"
)

// loadConfig reads the file named by --config, or the layered global and
// project configuration when the flag is unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		return config.Load(wd)
	}

	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newState builds the chat service and page loader described by cfg and
// returns a bridge state using them.
func newState(cfg *config.Config) (*bridge.State, error) {
	provider, err := chat.NewProvider(cfg.Chat.ProviderConfig())
	if err != nil {
		return nil, err
	}
	if !provider.IsConfigured() {
		log.Printf("[WARN] devchat: no API key for provider %s, chat replies will report the error", provider.Name())
	}

	loader, err := page.NewLoader(page.LoaderConfig{
		Kind:      cfg.Settings.Loader,
		Timeout:   cfg.Settings.LoadTimeout,
		RemoteURL: cfg.Settings.ChromeURL,
	})
	if err != nil {
		return nil, err
	}

	return bridge.NewState(bridge.Config{
		Chat:   chat.NewService(provider, cfg.Chat.ServiceConfig()),
		Loader: loader,
	}), nil
}
