package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/standardbeagle/devchat/internal/chat"
	"github.com/standardbeagle/devchat/internal/dom"
	"github.com/standardbeagle/devchat/internal/page"
	"github.com/standardbeagle/devchat/internal/picker"
	"github.com/standardbeagle/devchat/internal/selector"
)

// Routes returns a router with every bridge kind bound to s.
func Routes(s *State) *Router {
	r := NewRouter()
	r.Register(KindOpenTab, s.handleOpenTab)
	r.Register(KindCloseTab, s.handleCloseTab)
	r.Register(KindOpenDevtools, s.handleOpenDevtools)
	r.Register(KindGetPageInfo, s.handleGetPageInfo)
	r.Register(KindGetAvailableModels, s.handleGetAvailableModels)
	r.Register(KindSendToAI, s.handleSendToAI)
	r.Register(KindToggleElementPicker, s.handleTogglePicker)
	r.Register(KindElementSelected, s.handleElementSelected)
	r.Register(KindPointerMove, s.pointerHandler(dom.EventMouseMove))
	r.Register(KindClick, s.pointerHandler(dom.EventClick))
	r.Register(KindResolveSelector, s.handleResolveSelector)
	return r
}

// CheckRemote rejects messages that would make the bridge read local files.
// Transports reachable from a browser call it before dispatch; local paths
// are only accepted from the CLI and MCP tools.
func CheckRemote(msg Message) error {
	if msg.Type != KindOpenTab {
		return nil
	}
	var d OpenTabData
	if err := msg.Decode(&d); err != nil {
		return err
	}
	target := strings.TrimSpace(d.URL)
	if d.HTML != "" || target == "" || page.IsRemote(target) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrLocalTarget, d.URL)
}

func (s *State) handleOpenTab(ctx context.Context, msg Message) (any, error) {
	var d OpenTabData
	if err := msg.Decode(&d); err != nil {
		return nil, err
	}
	if d.HTML != "" {
		doc, err := dom.ParseString(d.HTML)
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		url := d.URL
		if url == "" {
			url = "about:blank"
		}
		return s.AddTab(url, doc).Describe(), nil
	}
	target := strings.TrimSpace(d.URL)
	if target == "" {
		return nil, fmt.Errorf("%w: url or html required", ErrBadPayload)
	}
	t, err := s.OpenTab(ctx, target)
	if err != nil {
		return nil, err
	}
	return t.Describe(), nil
}

func (s *State) handleCloseTab(_ context.Context, msg Message) (any, error) {
	if err := s.CloseTab(msg.TabID); err != nil {
		return nil, err
	}
	return picker.Ack{Success: true}, nil
}

func (s *State) handleOpenDevtools(_ context.Context, msg Message) (any, error) {
	t, err := s.Tab(msg.TabID)
	if err != nil {
		return nil, err
	}
	if err := s.SetActive(t.ID); err != nil {
		return nil, err
	}
	return t.Describe(), nil
}

func (s *State) handleGetPageInfo(_ context.Context, msg Message) (any, error) {
	t, err := s.Tab(msg.TabID)
	if err != nil {
		return nil, err
	}
	return t.Info(), nil
}

func (s *State) handleGetAvailableModels(context.Context, Message) (any, error) {
	if s.chat == nil {
		return append([]string(nil), chat.DefaultModels...), nil
	}
	return s.chat.Models(), nil
}

// handleSendToAI always answers with text; failures become "Error: ..."
// replies rather than bridge errors.
func (s *State) handleSendToAI(ctx context.Context, msg Message) (any, error) {
	var req chat.Request
	if err := msg.Decode(&req); err != nil {
		return chat.ErrorText(err), nil
	}
	if req.TabID == 0 {
		req.TabID = msg.TabID
	}
	if req.TabID == 0 {
		req.TabID = s.ActiveTab()
	}
	if req.PageInfo.URL == "" {
		if t, err := s.Tab(req.TabID); err == nil {
			req.PageInfo = t.Info()
		}
	}
	if s.chat == nil {
		return chat.ErrorText(chat.ErrNoAPIKey), nil
	}
	reply, err := s.chat.Ask(ctx, req)
	if err != nil {
		return chat.ErrorText(err), nil
	}
	return reply, nil
}

func (s *State) handleTogglePicker(_ context.Context, msg Message) (any, error) {
	t, err := s.Tab(msg.TabID)
	if err != nil {
		return nil, err
	}
	var ack picker.Ack
	t.with(func(_ *dom.Document, p *picker.Picker) {
		ack = p.Toggle()
	})
	return ack, nil
}

// handleElementSelected relays a selection made outside the bridge to the
// connected panels.
func (s *State) handleElementSelected(_ context.Context, msg Message) (any, error) {
	var sel picker.Selection
	if err := msg.Decode(&sel); err != nil {
		return nil, err
	}
	if sel.Selector == "" {
		return nil, fmt.Errorf("%w: selector required", ErrBadPayload)
	}
	s.enqueue(msg.TabID, sel)
	return picker.Ack{Success: true}, nil
}

func (s *State) pointerHandler(eventType string) Handler {
	return func(_ context.Context, msg Message) (any, error) {
		var d PointerData
		if err := msg.Decode(&d); err != nil {
			return nil, err
		}
		t, err := s.Tab(msg.TabID)
		if err != nil {
			return nil, err
		}
		var res EventResult
		err = t.Do(func(doc *dom.Document, _ *picker.Picker) error {
			target, err := locate(doc, d)
			if err != nil {
				return err
			}
			ev := dom.NewEvent(eventType, target)
			doc.Dispatch(ev)
			res = EventResult{
				DefaultPrevented:   ev.DefaultPrevented(),
				PropagationStopped: ev.PropagationStopped(),
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return res, nil
	}
}

func (s *State) handleResolveSelector(_ context.Context, msg Message) (any, error) {
	var d PointerData
	if err := msg.Decode(&d); err != nil {
		return nil, err
	}
	t, err := s.Tab(msg.TabID)
	if err != nil {
		return nil, err
	}
	var res ResolveResult
	err = t.Do(func(doc *dom.Document, _ *picker.Picker) error {
		target, err := locate(doc, d)
		if err != nil {
			return err
		}
		res = NewResolveResult(selector.Resolve(doc, target))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// NewResolveResult flattens a candidate for the wire.
func NewResolveResult(c selector.Candidate) ResolveResult {
	return ResolveResult{
		Selector: c.Expression(),
		Query:    c.Query,
		Kind:     string(c.Kind),
		Strategy: string(c.Strategy),
		Unique:   c.Unique,
	}
}
