// Package picker implements the interactive element picker: a page-wide
// selection mode that highlights the hovered element and, on click, emits a
// resolved selector for it exactly once per activation.
package picker

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/standardbeagle/devchat/internal/dom"
	"github.com/standardbeagle/devchat/internal/selector"
)

// State is the picker mode.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// Highlight and cursor styling applied while picking.
const (
	HighlightOutline       = "2px solid #ff0000"
	HighlightOutlineOffset = "-2px"
	PickCursor             = "crosshair"

	// MaxSelectionText bounds Selection.Text, in characters.
	MaxSelectionText = 50
)

// Selection describes a picked element.
type Selection struct {
	Selector string   `json:"selector"`
	TagName  string   `json:"tagName"`
	Classes  []string `json:"classes"`
	ID       string   `json:"id"`
	Text     string   `json:"text"`

	// Candidate is the resolved selector behind Selector.
	Candidate selector.Candidate `json:"candidate"`
}

// Emitter receives selections. Emit must not block; delivery is
// fire-and-forget.
type Emitter interface {
	Emit(Selection)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Selection)

// Emit calls f(s).
func (f EmitterFunc) Emit(s Selection) { f(s) }

// Ack acknowledges a toggle request.
type Ack struct {
	Success bool `json:"success"`
}

// Picker is the selection state machine for one document.
//
// Picker is not safe for concurrent use. Events must be delivered one at a
// time, which the owning tab guarantees.
type Picker struct {
	doc      *dom.Document
	resolver *selector.Resolver
	emitter  Emitter

	active  bool
	hovered *html.Node
	moveID  dom.ListenerID
	clickID dom.ListenerID
}

// New creates an idle picker for doc that reports selections to emitter.
func New(doc *dom.Document, emitter Emitter) *Picker {
	return &Picker{
		doc:      doc,
		resolver: selector.New(doc),
		emitter:  emitter,
	}
}

// State returns the current mode.
func (p *Picker) State() State {
	if p.active {
		return Active
	}
	return Idle
}

// Hovered returns the element under the pointer while active, or nil.
func (p *Picker) Hovered() *html.Node {
	return p.hovered
}

// Toggle flips between Idle and Active.
func (p *Picker) Toggle() Ack {
	if p.active {
		p.Deactivate()
	} else {
		p.Activate()
	}
	return Ack{Success: true}
}

// Activate enters selection mode. Activating an active picker is a no-op.
func (p *Picker) Activate() {
	if p.active {
		return
	}
	p.active = true
	dom.SetStyle(p.doc.Body(), "cursor", PickCursor)
	p.moveID = p.doc.AddEventListener(dom.EventMouseMove, p.handleMouseMove)
	p.clickID = p.doc.AddEventListener(dom.EventClick, p.handleClick)
}

// Deactivate leaves selection mode, clearing the cursor, any highlight, and
// the event listeners. Deactivating an idle picker is a no-op.
func (p *Picker) Deactivate() {
	if !p.active {
		return
	}
	p.active = false
	dom.SetStyle(p.doc.Body(), "cursor", "")
	if p.hovered != nil {
		removeHighlight(p.hovered)
		p.hovered = nil
	}
	p.doc.RemoveEventListener(dom.EventMouseMove, p.moveID)
	p.doc.RemoveEventListener(dom.EventClick, p.clickID)
	p.moveID, p.clickID = 0, 0
}

func (p *Picker) handleMouseMove(e *dom.Event) {
	if !p.active {
		return
	}
	if p.hovered != nil {
		removeHighlight(p.hovered)
	}
	p.hovered = e.Target
	highlight(p.hovered)
	e.StopPropagation()
}

func (p *Picker) handleClick(e *dom.Event) {
	if !p.active {
		return
	}
	e.PreventDefault()
	e.StopPropagation()

	target := e.Target
	for target != nil && target.Type != html.ElementNode {
		target = target.Parent
	}

	// Clear the highlight before resolving so styling never leaks into the
	// selection.
	if p.hovered != nil {
		removeHighlight(p.hovered)
		p.hovered = nil
	}

	if target != nil {
		sel := p.describe(target)
		if p.emitter != nil {
			p.emitter.Emit(sel)
		}
	}
	p.Deactivate()
}

func (p *Picker) describe(n *html.Node) Selection {
	c := p.resolver.Resolve(n)
	classes := dom.Classes(n)
	if classes == nil {
		classes = []string{}
	}
	return Selection{
		Selector:  c.Expression(),
		TagName:   dom.TagName(n),
		Classes:   classes,
		ID:        dom.ID(n),
		Text:      truncate(strings.TrimSpace(dom.TextContent(n)), MaxSelectionText),
		Candidate: c,
	}
}

func highlight(n *html.Node) {
	if !dom.IsElement(n) || n.DataAtom == atom.Body || n.DataAtom == atom.Html {
		return
	}
	dom.SetStyle(n, "outline", HighlightOutline)
	dom.SetStyle(n, "outline-offset", HighlightOutlineOffset)
}

func removeHighlight(n *html.Node) {
	dom.SetStyle(n, "outline", "")
	dom.SetStyle(n, "outline-offset", "")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
