package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/standardbeagle/devchat/internal/bridge"
	"github.com/standardbeagle/devchat/internal/config"
	"github.com/standardbeagle/devchat/internal/server"
	"github.com/standardbeagle/devchat/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve [url|file...]",
	Short: "Run the devtools bridge",
	Long: `Run the HTTP and websocket bridge that devtools panels talk to.

Panels POST messages to /api/message and connect a long-lived port at
/api/connect?name=devtools-panel to receive element selections.
Any arguments are opened as tabs before serving.`,
	Run: runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP server",
	Long: `Run as an MCP (Model Context Protocol) server for AI coding assistants.

Pages, selector resolution, the element picker and chat are exposed as tools.
With --listen the devtools bridge is served alongside, sharing the same tabs.`,
	Run: runMCP,
}

var (
	serveListen string
	mcpListen   string
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config)")
	mcpCmd.Flags().StringVar(&mcpListen, "listen", "", "Also serve the devtools bridge on this address")
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatalf("[ERROR] devchat: %v", err)
	}
	if serveListen != "" {
		cfg.Settings.Listen = serveListen
	}

	state, err := newState(cfg)
	if err != nil {
		log.Fatalf("[ERROR] devchat: %v", err)
	}
	defer state.Close()

	for _, target := range args {
		if _, err := state.OpenTab(ctx, target); err != nil {
			log.Printf("[WARN] devchat: open %s: %v", target, err)
		}
	}

	srv, err := startBridge(ctx, cfg.Settings.Listen, state)
	if err != nil {
		log.Fatalf("[ERROR] devchat: %v", err)
	}
	log.Printf("Starting %s v%s on %s", appName, appVersion, srv.ListenAddr)

	<-ctx.Done()
	log.Println("Shutdown signal received...")
	stopBridge(cfg, srv)
	log.Println("Server shutdown complete")
}

func runMCP(cmd *cobra.Command, args []string) {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	// stdout carries the MCP protocol
	log.SetOutput(os.Stderr)

	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatalf("[ERROR] devchat: %v", err)
	}

	state, err := newState(cfg)
	if err != nil {
		log.Fatalf("[ERROR] devchat: %v", err)
	}
	defer state.Close()

	if mcpListen != "" {
		srv, err := startBridge(ctx, mcpListen, state)
		if err != nil {
			log.Fatalf("[ERROR] devchat: %v", err)
		}
		defer stopBridge(cfg, srv)
	}

	t := tools.New(state, bridge.Routes(state))
	defer t.Close()

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    appName,
			Version: appVersion,
		},
		&mcp.ServerOptions{
			HasTools: true,
			Instructions: `Devtools companion for inspecting web pages and chatting about them.

Tabs are held in memory for the life of the server; the most recently opened
or focused tab is the default target of every tool.

Available tools:
- page: Open, inspect, list and close tabs
- resolve_selector: Compute a stable, unique selector for an element
- picker: Toggle the element picker, hover and click to select
- ask: Ask the chat model about the active page (history kept per tab)`,
		},
	)
	t.Register(server)

	log.Printf("Starting %s v%s (mcp mode)", appName, appVersion)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if ctx.Err() == nil {
			log.Fatalf("Server error: %v", err)
		}
	}

	log.Println("MCP shutdown complete")
}

func startBridge(ctx context.Context, addr string, state *bridge.State) (*server.Server, error) {
	srv := server.New(server.Config{ListenAddr: addr}, state, bridge.Routes(state))
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}

func stopBridge(cfg *config.Config, srv *server.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Settings.GracefulTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Printf("[WARN] devchat: bridge shutdown: %v", err)
	}
}
