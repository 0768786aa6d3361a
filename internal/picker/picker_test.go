package picker

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/standardbeagle/devchat/internal/dom"
)

const page = `<html><head><title>t</title></head><body>
<div id="a" class="card">Alpha</div>
<div id="b" class="card wrapper">Bravo <i>text</i></div>
<a href="/x">Link</a>
</body></html>`

type recorder struct {
	selections []Selection
}

func (r *recorder) Emit(s Selection) {
	r.selections = append(r.selections, s)
}

func setup(t *testing.T) (*dom.Document, *Picker, *recorder) {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	rec := &recorder{}
	return doc, New(doc, rec), rec
}

func move(doc *dom.Document, n *html.Node) *dom.Event {
	ev := dom.NewEvent(dom.EventMouseMove, n)
	doc.Dispatch(ev)
	return ev
}

func click(doc *dom.Document, n *html.Node) *dom.Event {
	ev := dom.NewEvent(dom.EventClick, n)
	doc.Dispatch(ev)
	return ev
}

func isHighlighted(n *html.Node) bool {
	return dom.StyleValue(n, "outline") != "" || dom.StyleValue(n, "outline-offset") != ""
}

// assertClean checks that no element carries picker styling.
func assertClean(t *testing.T, doc *dom.Document) {
	t.Helper()
	for _, n := range doc.QueryAll("*") {
		if isHighlighted(n) {
			t.Errorf("Residual highlight on <%s>", dom.TagName(n))
		}
	}
	if got := dom.StyleValue(doc.Body(), "cursor"); got != "" {
		t.Errorf("Residual cursor %q on body", got)
	}
	if doc.ListenerCount(dom.EventMouseMove) != 0 || doc.ListenerCount(dom.EventClick) != 0 {
		t.Error("Event listeners still attached")
	}
}

func TestPicker_RestoresPageStyles(t *testing.T) {
	const bg = `background:url('data:image/png;base64,AAAA')`
	doc, err := dom.ParseString(`<html><body style="color: #333;"><p style="` + html.EscapeString(bg) + `">x</p><p>y</p></body></html>`)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	p := New(doc, &recorder{})
	first := doc.QueryAll("p")[0]

	p.Toggle()
	move(doc, first)
	move(doc, doc.QueryAll("p")[1])
	p.Toggle()

	if got := dom.Attr(first, "style"); got != bg {
		t.Errorf("Page style changed: got %q, want %q", got, bg)
	}
	if got := dom.Attr(doc.Body(), "style"); got != "color: #333;" {
		t.Errorf("Body style changed: got %q", got)
	}
	assertClean(t, doc)
}

func TestPicker_ToggleActivates(t *testing.T) {
	doc, p, _ := setup(t)

	if p.State() != Idle {
		t.Fatalf("Expected idle, got %s", p.State())
	}

	ack := p.Toggle()
	if !ack.Success {
		t.Error("Expected successful ack")
	}
	if p.State() != Active {
		t.Errorf("Expected active, got %s", p.State())
	}
	if got := dom.StyleValue(doc.Body(), "cursor"); got != PickCursor {
		t.Errorf("Expected crosshair cursor, got %q", got)
	}
	if doc.ListenerCount(dom.EventMouseMove) != 1 || doc.ListenerCount(dom.EventClick) != 1 {
		t.Error("Expected one mousemove and one click listener")
	}
}

func TestPicker_ToggleTwiceLeavesNoResidue(t *testing.T) {
	doc, p, rec := setup(t)

	p.Toggle()
	move(doc, doc.Query("#a"))
	ack := p.Toggle()

	if !ack.Success {
		t.Error("Expected successful ack")
	}
	if p.State() != Idle {
		t.Errorf("Expected idle, got %s", p.State())
	}
	if p.Hovered() != nil {
		t.Error("Expected hovered cleared")
	}
	assertClean(t, doc)
	if len(rec.selections) != 0 {
		t.Errorf("Cancellation must not emit, got %d selections", len(rec.selections))
	}
}

func TestPicker_HoverMovesHighlight(t *testing.T) {
	doc, p, _ := setup(t)
	a, b := doc.Query("#a"), doc.Query("#b")

	p.Toggle()
	ev := move(doc, a)
	if !ev.PropagationStopped() {
		t.Error("Expected mousemove propagation stopped")
	}
	if !isHighlighted(a) {
		t.Error("Expected A highlighted")
	}

	move(doc, b)
	if isHighlighted(a) {
		t.Error("Expected A highlight removed")
	}
	if !isHighlighted(b) {
		t.Error("Expected B highlighted")
	}
	if p.Hovered() != b {
		t.Error("Expected B hovered")
	}
}

func TestPicker_BodyNotHighlighted(t *testing.T) {
	doc, p, _ := setup(t)

	p.Toggle()
	move(doc, doc.Body())
	move(doc, doc.DocumentElement())

	if isHighlighted(doc.Body()) || isHighlighted(doc.DocumentElement()) {
		t.Error("Body and document element must not be highlighted")
	}
	if p.Hovered() != doc.DocumentElement() {
		t.Error("Hovered should still track the document element")
	}
}

func TestPicker_ClickSelectsOnce(t *testing.T) {
	doc, p, rec := setup(t)
	a, b := doc.Query("#a"), doc.Query("#b")

	p.Toggle()
	move(doc, a)
	move(doc, b)
	ev := click(doc, b)

	if !ev.DefaultPrevented() || !ev.PropagationStopped() {
		t.Error("Expected click default prevented and propagation stopped")
	}
	if len(rec.selections) != 1 {
		t.Fatalf("Expected 1 selection, got %d", len(rec.selections))
	}

	sel := rec.selections[0]
	if sel.Selector != "document.querySelector('#b')" {
		t.Errorf("Unexpected selector %q", sel.Selector)
	}
	if sel.TagName != "div" {
		t.Errorf("Expected tag 'div', got %q", sel.TagName)
	}
	if sel.ID != "b" {
		t.Errorf("Expected id 'b', got %q", sel.ID)
	}
	if len(sel.Classes) != 2 || sel.Classes[0] != "card" || sel.Classes[1] != "wrapper" {
		t.Errorf("Unexpected classes %v", sel.Classes)
	}
	if sel.Text != "Bravo text" {
		t.Errorf("Expected text 'Bravo text', got %q", sel.Text)
	}

	if p.State() != Idle {
		t.Errorf("Expected idle after selection, got %s", p.State())
	}
	assertClean(t, doc)

	// Further clicks reach nobody.
	click(doc, a)
	if len(rec.selections) != 1 {
		t.Errorf("Expected no further selections, got %d", len(rec.selections))
	}
}

func TestPicker_ClickWithoutID(t *testing.T) {
	doc, p, rec := setup(t)
	link := doc.Query("a")

	p.Activate()
	click(doc, link)

	if len(rec.selections) != 1 {
		t.Fatalf("Expected 1 selection, got %d", len(rec.selections))
	}
	sel := rec.selections[0]
	if sel.ID != "" {
		t.Errorf("Expected empty id, got %q", sel.ID)
	}
	if sel.Classes == nil || len(sel.Classes) != 0 {
		t.Errorf("Expected empty non-nil classes, got %#v", sel.Classes)
	}
	if sel.Selector == "" {
		t.Error("Expected non-empty selector")
	}
}

func TestPicker_TextTruncated(t *testing.T) {
	long := strings.Repeat("é", 80)
	doc, err := dom.ParseString(`<body><p>` + long + `</p></body>`)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	p := New(doc, rec)

	p.Activate()
	click(doc, doc.Query("p"))

	if len(rec.selections) != 1 {
		t.Fatalf("Expected 1 selection, got %d", len(rec.selections))
	}
	if n := len([]rune(rec.selections[0].Text)); n != MaxSelectionText {
		t.Errorf("Expected %d chars, got %d", MaxSelectionText, n)
	}
}

func TestPicker_IdempotentActivation(t *testing.T) {
	doc, p, _ := setup(t)

	p.Activate()
	p.Activate()
	if doc.ListenerCount(dom.EventClick) != 1 {
		t.Errorf("Expected 1 click listener, got %d", doc.ListenerCount(dom.EventClick))
	}

	p.Deactivate()
	p.Deactivate()
	assertClean(t, doc)
}

func TestPicker_Reenter(t *testing.T) {
	doc, p, rec := setup(t)

	for i := 0; i < 3; i++ {
		p.Toggle()
		click(doc, doc.Query("#a"))
	}
	if len(rec.selections) != 3 {
		t.Errorf("Expected 3 selections, got %d", len(rec.selections))
	}
	assertClean(t, doc)
}

func TestPicker_EventsIgnoredWhenIdle(t *testing.T) {
	doc, p, rec := setup(t)
	a := doc.Query("#a")

	ev := click(doc, a)
	move(doc, a)

	if ev.DefaultPrevented() {
		t.Error("Idle picker must not intercept clicks")
	}
	if isHighlighted(a) || p.Hovered() != nil || len(rec.selections) != 0 {
		t.Error("Idle picker must not react to events")
	}
}
