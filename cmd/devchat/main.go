package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName    = "devchat"
	appVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "AI chat and element picking for web pages",
	Long: `Devchat is a devtools companion that provides:
  - A message bridge for devtools panels (HTTP and websocket)
  - An element picker that reports stable, unique selectors
  - Page info extraction and AI chat about the open page
  - An MCP server exposing the same operations to AI coding assistants`,
	Version: appVersion,
	// Default behavior: if stdin is not a terminal, run as MCP server
	Run: func(cmd *cobra.Command, args []string) {
		if !isTerminal(os.Stdin) {
			runMCP(cmd, args)
		} else {
			cmd.Help()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: global config.kdl plus nearest .devchat.kdl)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
