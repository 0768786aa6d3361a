package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/devchat/internal/bridge"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url|file>",
	Short: "Print a stable selector for an element",
	Long: `Load a page, pick the first element matching --target and print the most
stable unique selector for it.

Examples:
  devchat resolve index.html --target "main li:nth-child(3)"
  devchat resolve https://example.com --target "a" --json`,
	Args: cobra.ExactArgs(1),
	Run:  runResolve,
}

var (
	resolveTarget string
	resolvePath   []int
	resolveJSON   bool
)

func init() {
	resolveCmd.Flags().StringVar(&resolveTarget, "target", "", "CSS selector of the element to resolve (first match)")
	resolveCmd.Flags().IntSliceVar(&resolvePath, "path", nil, "Element path from the document root, used instead of --target")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the result as JSON")
}

func runResolve(cmd *cobra.Command, args []string) {
	if resolveTarget == "" && len(resolvePath) == 0 {
		fmt.Fprintln(os.Stderr, "Error: --target or --path required")
		os.Exit(1)
	}

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

	res, err := resolveElement(cmd.Context(), state, args[0], bridge.PointerData{Path: resolvePath, Target: resolveTarget})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := printResolve(os.Stdout, res, resolveJSON); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveElement opens target as a tab and resolves the element named by
// ptr through the bridge.
func resolveElement(ctx context.Context, state *bridge.State, target string, ptr bridge.PointerData) (bridge.ResolveResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tab, err := state.OpenTab(ctx, target)
	if err != nil {
		return bridge.ResolveResult{}, err
	}
	msg, err := bridge.NewMessage(bridge.KindResolveSelector, tab.ID, ptr)
	if err != nil {
		return bridge.ResolveResult{}, err
	}
	out, err := bridge.Routes(state).Dispatch(ctx, msg)
	if err != nil {
		return bridge.ResolveResult{}, err
	}
	return out.(bridge.ResolveResult), nil
}

func printResolve(w io.Writer, res bridge.ResolveResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprintf(w, "selector: %s\nstrategy: %s\nunique:   %t\n", res.Selector, res.Strategy, res.Unique)
	return err
}
