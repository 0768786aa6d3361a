package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/devchat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a documented default config file",
	Long: `Write a default config file. By default the global file is written
($XDG_CONFIG_HOME/devchat/config.kdl); with --project a .devchat.kdl is
written to the current directory instead.`,
	Run: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run:   runConfigShow,
}

var (
	configProject bool
	configForce   bool
)

func init() {
	configInitCmd.Flags().BoolVar(&configProject, "project", false, "Write .devchat.kdl in the current directory")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := config.GlobalConfigPath()
	if configProject {
		path = config.ProjectConfigFile
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: cannot determine config directory")
		os.Exit(1)
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", path)
		os.Exit(1)
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(cfg)
}
