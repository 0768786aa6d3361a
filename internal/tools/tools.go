// Package tools exposes the bridge as MCP tools.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/net/html"

	"github.com/standardbeagle/devchat/internal/bridge"
	"github.com/standardbeagle/devchat/internal/dom"
	"github.com/standardbeagle/devchat/internal/page"
	"github.com/standardbeagle/devchat/internal/picker"
	"github.com/standardbeagle/devchat/internal/selector"
)

// SelectionTimeout bounds how long a picker click waits for its selection.
const SelectionTimeout = 2 * time.Second

// Tools serves MCP tool calls through a bridge router.
type Tools struct {
	state  *bridge.State
	router *bridge.Router
	port   *selectionPort
}

// New creates the tool set and registers its selection port with state.
func New(state *bridge.State, router *bridge.Router) *Tools {
	t := &Tools{
		state:  state,
		router: router,
		port:   &selectionPort{ch: make(chan bridge.Reply, 8)},
	}
	state.Connect(t.port)
	return t
}

// Close unregisters the selection port.
func (t *Tools) Close() {
	t.state.Disconnect(t.port.ID())
}

// selectionPort collects ELEMENT_SELECTED pushes for picker clicks.
type selectionPort struct {
	ch chan bridge.Reply
}

func (p *selectionPort) ID() string { return "mcp-tools" }

func (p *selectionPort) Send(r bridge.Reply) error {
	if r.Type != bridge.KindElementSelected {
		return nil
	}
	select {
	case p.ch <- r:
	default:
	}
	return nil
}

func (p *selectionPort) drain() {
	for {
		select {
		case <-p.ch:
		default:
			return
		}
	}
}

func (p *selectionPort) wait(ctx context.Context, tab int) (picker.Selection, bool) {
	timer := time.NewTimer(SelectionTimeout)
	defer timer.Stop()
	for {
		select {
		case r := <-p.ch:
			if sel, ok := r.Data.(picker.Selection); ok && r.TabID == tab {
				return sel, true
			}
		case <-timer.C:
			return picker.Selection{}, false
		case <-ctx.Done():
			return picker.Selection{}, false
		}
	}
}

// PageInput defines input for the page tool.
type PageInput struct {
	Action string `json:"action" jsonschema:"Action: open, info, close, list"`
	URL    string `json:"url,omitempty" jsonschema:"For open: http(s) URL or local file path"`
	HTML   string `json:"html,omitempty" jsonschema:"For open: inline HTML used instead of loading url"`
	TabID  int    `json:"tab_id,omitempty" jsonschema:"Tab ID (defaults to the active tab)"`
}

// PageOutput defines output for page.
type PageOutput struct {
	Tab  *bridge.TabInfo  `json:"tab,omitempty"`
	Tabs []bridge.TabInfo `json:"tabs,omitempty"`
	Info *page.Info       `json:"info,omitempty"`
	Ack  *picker.Ack      `json:"ack,omitempty"`
}

// ResolveInput defines input for the resolve_selector tool.
type ResolveInput struct {
	Target string `json:"target" jsonschema:"CSS selector of the element to resolve (first match)"`
	Path   []int  `json:"path,omitempty" jsonschema:"Element path from the document root, used instead of target"`
	HTML   string `json:"html,omitempty" jsonschema:"Inline HTML to resolve against instead of a tab"`
	TabID  int    `json:"tab_id,omitempty" jsonschema:"Tab ID (defaults to the active tab)"`
}

// PickerInput defines input for the picker tool.
type PickerInput struct {
	Action string `json:"action" jsonschema:"Action: toggle, move, click"`
	Target string `json:"target,omitempty" jsonschema:"For move/click: CSS selector of the element under the pointer"`
	TabID  int    `json:"tab_id,omitempty" jsonschema:"Tab ID (defaults to the active tab)"`
}

// PickerOutput defines output for picker.
type PickerOutput struct {
	Success   bool                `json:"success,omitempty"`
	Event     *bridge.EventResult `json:"event,omitempty"`
	Selection *picker.Selection   `json:"selection,omitempty"`
}

// AskInput defines input for the ask tool.
type AskInput struct {
	Message string `json:"message" jsonschema:"Question about the page"`
	Model   string `json:"model,omitempty" jsonschema:"Model name (defaults to the configured model)"`
	TabID   int    `json:"tab_id,omitempty" jsonschema:"Tab ID (defaults to the active tab)"`
}

// AskOutput defines output for ask.
type AskOutput struct {
	Reply string `json:"reply"`
}

// Register adds the page, resolve_selector, picker and ask tools to server.
func (t *Tools) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "page",
		Description: `Open and inspect pages held by the bridge.
Examples:
  page {action: "open", url: "https://example.com"}
  page {action: "open", html: "<button id=go>Go</button>"}
  page {action: "info"}
  page {action: "list"}
  page {action: "close", tab_id: 2}`,
	}, t.handlePage)

	mcp.AddTool(server, &mcp.Tool{
		Name: "resolve_selector",
		Description: `Compute a stable, unique selector for an element.
Strategies are tried in order: id, data attributes, ARIA role, specific classes, unique text, ancestor path.
Examples:
  resolve_selector {target: "main li:nth-child(3)"}
  resolve_selector {html: "<ul><li>a</li><li>b</li></ul>", target: "li + li"}`,
	}, t.handleResolve)

	mcp.AddTool(server, &mcp.Tool{
		Name: "picker",
		Description: `Drive the element picker on a tab.
toggle enters or leaves pick mode; move highlights an element; click selects it and returns the selection.
Examples:
  picker {action: "toggle"}
  picker {action: "move", target: "#buy"}
  picker {action: "click", target: "#buy"}`,
	}, t.handlePicker)

	mcp.AddTool(server, &mcp.Tool{
		Name: "ask",
		Description: `Ask the chat model about the active page. Conversation history is kept per tab.
Examples:
  ask {message: "Why is the header overlapping the nav?"}`,
	}, t.handleAsk)
}

func (t *Tools) dispatch(ctx context.Context, kind bridge.Kind, tab int, data any) (any, error) {
	msg, err := bridge.NewMessage(kind, tab, data)
	if err != nil {
		return nil, err
	}
	return t.router.Dispatch(ctx, msg)
}

func (t *Tools) handlePage(ctx context.Context, req *mcp.CallToolRequest, input PageInput) (*mcp.CallToolResult, PageOutput, error) {
	switch input.Action {
	case "open":
		out, err := t.dispatch(ctx, bridge.KindOpenTab, 0, bridge.OpenTabData{URL: input.URL, HTML: input.HTML})
		if err != nil {
			return errorResult(fmt.Sprintf("open failed: %v", err)), PageOutput{}, nil
		}
		info := out.(bridge.TabInfo)
		return nil, PageOutput{Tab: &info}, nil

	case "info":
		out, err := t.dispatch(ctx, bridge.KindGetPageInfo, input.TabID, nil)
		if err != nil {
			return errorResult(err.Error()), PageOutput{}, nil
		}
		info := out.(page.Info)
		return nil, PageOutput{Info: &info}, nil

	case "close":
		out, err := t.dispatch(ctx, bridge.KindCloseTab, input.TabID, nil)
		if err != nil {
			return errorResult(err.Error()), PageOutput{}, nil
		}
		ack := out.(picker.Ack)
		return nil, PageOutput{Ack: &ack}, nil

	case "list":
		tabs := t.state.Tabs()
		out := PageOutput{Tabs: make([]bridge.TabInfo, 0, len(tabs))}
		for _, tab := range tabs {
			out.Tabs = append(out.Tabs, tab.Describe())
		}
		return nil, out, nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q. Use: open, info, close, list", input.Action)), PageOutput{}, nil
	}
}

func (t *Tools) handleResolve(ctx context.Context, req *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, bridge.ResolveResult, error) {
	if input.Target == "" && input.Path == nil {
		return errorResult("target or path required"), bridge.ResolveResult{}, nil
	}

	if input.HTML != "" {
		doc, err := dom.ParseString(input.HTML)
		if err != nil {
			return errorResult(fmt.Sprintf("parse html: %v", err)), bridge.ResolveResult{}, nil
		}
		target, err := inlineTarget(doc, input)
		if err != nil {
			return errorResult(err.Error()), bridge.ResolveResult{}, nil
		}
		return nil, bridge.NewResolveResult(selector.Resolve(doc, target)), nil
	}

	out, err := t.dispatch(ctx, bridge.KindResolveSelector, input.TabID, bridge.PointerData{Path: input.Path, Target: input.Target})
	if err != nil {
		return errorResult(err.Error()), bridge.ResolveResult{}, nil
	}
	return nil, out.(bridge.ResolveResult), nil
}

func (t *Tools) handlePicker(ctx context.Context, req *mcp.CallToolRequest, input PickerInput) (*mcp.CallToolResult, PickerOutput, error) {
	switch input.Action {
	case "toggle":
		out, err := t.dispatch(ctx, bridge.KindToggleElementPicker, input.TabID, nil)
		if err != nil {
			return errorResult(err.Error()), PickerOutput{}, nil
		}
		return nil, PickerOutput{Success: out.(picker.Ack).Success}, nil

	case "move", "click":
		if input.Target == "" {
			return errorResult(input.Action + " requires target"), PickerOutput{}, nil
		}
		kind := bridge.KindPointerMove
		if input.Action == "click" {
			kind = bridge.KindClick
			t.port.drain()
		}
		out, err := t.dispatch(ctx, kind, input.TabID, bridge.PointerData{Target: input.Target})
		if err != nil {
			return errorResult(err.Error()), PickerOutput{}, nil
		}
		ev := out.(bridge.EventResult)
		result := PickerOutput{Success: true, Event: &ev}
		if kind == bridge.KindClick && ev.DefaultPrevented {
			tab := input.TabID
			if tab == 0 {
				tab = t.state.ActiveTab()
			}
			if sel, ok := t.port.wait(ctx, tab); ok {
				result.Selection = &sel
			}
		}
		return nil, result, nil

	default:
		return errorResult(fmt.Sprintf("unknown action %q. Use: toggle, move, click", input.Action)), PickerOutput{}, nil
	}
}

func (t *Tools) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if input.Message == "" {
		return errorResult("message required"), AskOutput{}, nil
	}
	out, err := t.dispatch(ctx, bridge.KindSendToAI, input.TabID, map[string]any{
		"message": input.Message,
		"model":   input.Model,
	})
	if err != nil {
		return errorResult(err.Error()), AskOutput{}, nil
	}
	reply, _ := out.(string)
	return nil, AskOutput{Reply: reply}, nil
}

func inlineTarget(doc *dom.Document, input ResolveInput) (*html.Node, error) {
	if input.Path != nil {
		return doc.NodeAt(input.Path)
	}
	if n := doc.Query(input.Target); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%q matches nothing", input.Target)
}

// errorResult creates an error result.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
