package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/devchat/internal/bridge"
	"github.com/standardbeagle/devchat/internal/chat"
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Ask the chat model about a page",
	Long: `Ask a one-off question. With --url the page is loaded first and its
title, HTML, scripts and stylesheets are sent as context.

Examples:
  devchat ask --url https://example.com "Why does the header wrap on mobile?"
  devchat ask --model gpt-4 "What does aria-live do?"`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAsk,
}

var (
	askURL   string
	askModel string
)

func init() {
	askCmd.Flags().StringVar(&askURL, "url", "", "Page (URL or file) to ask about")
	askCmd.Flags().StringVar(&askModel, "model", "", "Model name (default: configured model)")
}

func runAsk(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	state, err := newState(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer state.Close()

	reply, err := ask(cmd.Context(), state, askURL, askModel, strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}

// ask sends question through SEND_TO_AI, opening target as a tab first when
// it is set. Chat failures come back as "Error: ..." text, not as err.
func ask(ctx context.Context, state *bridge.State, target, model, question string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tab := 0
	if target != "" {
		t, err := state.OpenTab(ctx, target)
		if err != nil {
			return "", err
		}
		tab = t.ID
	}

	msg, err := bridge.NewMessage(bridge.KindSendToAI, tab, chat.Request{
		Message: question,
		Model:   model,
		TabID:   tab,
	})
	if err != nil {
		return "", err
	}
	out, err := bridge.Routes(state).Dispatch(ctx, msg)
	if err != nil {
		return "", err
	}
	reply, _ := out.(string)
	return reply, nil
}
