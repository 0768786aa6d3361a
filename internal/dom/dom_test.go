package dom

import (
	"testing"

	"golang.org/x/net/html"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<head><title> Sample Page </title></head>
<body>
  <div id="main" class="container app app">
    <ul>
      <li>one</li>
      <li class="x">two</li>
      <li>three</li>
    </ul>
    <p data-test="a" style="color: red">Hello <b>world</b></p>
  </div>
</body>
</html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s)
	if err != nil {
		t.Fatalf("ParseString failed: %v", err)
	}
	return doc
}

func TestDocument_Structure(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	if doc.DocumentElement() == nil || TagName(doc.DocumentElement()) != "html" {
		t.Fatal("Expected <html> document element")
	}
	if TagName(doc.Body()) != "body" {
		t.Errorf("Expected <body>, got %q", TagName(doc.Body()))
	}
	if got := doc.Title(); got != "Sample Page" {
		t.Errorf("Expected title 'Sample Page', got %q", got)
	}
}

func TestDocument_QueryAll(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	tests := []struct {
		selector string
		want     int
	}{
		{"li", 3},
		{"#main", 1},
		{"ul > li:nth-of-type(2)", 1},
		{`[data-test="a"]`, 1},
		{".app", 1},
		{"li.x", 1},
		{"[[[", 0},
		{"#", 0},
	}

	for _, tt := range tests {
		if got := doc.Count(tt.selector); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.selector, got, tt.want)
		}
	}
}

func TestClasses_Deduplicates(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	main := doc.Query("#main")

	got := Classes(main)
	want := []string{"container", "app"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Class %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestTextContent(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	p := doc.Query("p")

	if got := TextContent(p); got != "Hello world" {
		t.Errorf("Expected 'Hello world', got %q", got)
	}
}

func TestTypeIndex(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	second := doc.Query("li.x")

	idx, total := TypeIndex(second)
	if idx != 2 || total != 3 {
		t.Errorf("Expected 2 of 3, got %d of %d", idx, total)
	}

	p := doc.Query("p")
	idx, total = TypeIndex(p)
	if idx != 1 || total != 1 {
		t.Errorf("Expected 1 of 1, got %d of %d", idx, total)
	}
}

func TestPathOf_RoundTrip(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	for _, n := range doc.QueryAll("li, p, b, body") {
		path := PathOf(n)
		got, err := doc.NodeAt(path)
		if err != nil {
			t.Fatalf("NodeAt(%v) failed: %v", path, err)
		}
		if got != n {
			t.Errorf("NodeAt(PathOf(<%s>)) returned a different node", TagName(n))
		}
	}
}

func TestNodeAt_Invalid(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	if _, err := doc.NodeAt([]int{0, 9, 9}); err == nil {
		t.Error("Expected error for out-of-range path")
	}
	if _, err := doc.NodeAt(nil); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestSetStyle(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	p := doc.Query("p")

	SetStyle(p, "outline", "2px solid #ff0000")
	if got := StyleValue(p, "outline"); got != "2px solid #ff0000" {
		t.Errorf("Expected outline set, got %q", got)
	}
	if got := StyleValue(p, "color"); got != "red" {
		t.Errorf("Existing declaration lost, got %q", got)
	}

	SetStyle(p, "outline", "")
	if got := StyleValue(p, "outline"); got != "" {
		t.Errorf("Expected outline removed, got %q", got)
	}
	if got := Attr(p, "style"); got != "color: red" {
		t.Errorf("Expected original style 'color: red', got %q", got)
	}

	li := doc.Query("li")
	SetStyle(li, "cursor", "crosshair")
	SetStyle(li, "cursor", "")
	if _, ok := LookupAttr(li, "style"); ok {
		t.Error("Expected empty style attribute to be removed")
	}
}

func TestSetStyle_KeepsPageDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		style string
	}{
		{"data url", `background:url('data:image/png;base64,AAAA')`},
		{"quoted content", `content: "a;b"; color: blue;`},
		{"escaped semicolon", `font-family: a\;b`},
		{"trailing separator", `color: red;`},
		{"nested parens", `width: calc(100% - var(--gap;x));margin:0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, `<div style="`+html.EscapeString(tt.style)+`">x</div>`)
			div := doc.Query("div")

			SetStyle(div, "outline", "2px solid #ff0000")
			SetStyle(div, "outline-offset", "-2px")
			if got := StyleValue(div, "outline-offset"); got != "-2px" {
				t.Errorf("Expected outline-offset set, got %q", got)
			}
			SetStyle(div, "outline", "")
			SetStyle(div, "outline-offset", "")

			if got := Attr(div, "style"); got != tt.style {
				t.Errorf("Style not restored: got %q, want %q", got, tt.style)
			}
		})
	}

	doc := mustParse(t, `<div style="background:url('data:image/png;base64,AAAA')">x</div>`)
	if got := StyleValue(doc.Query("div"), "background"); got != "url('data:image/png;base64,AAAA')" {
		t.Errorf("Unexpected background %q", got)
	}
}

func TestDispatch(t *testing.T) {
	doc := mustParse(t, sampleHTML)
	target := doc.Query("b")

	var calls []string
	first := doc.AddEventListener(EventClick, func(e *Event) {
		calls = append(calls, "first")
	})
	doc.AddEventListener(EventClick, func(e *Event) {
		calls = append(calls, "second")
		e.StopPropagation()
	})
	doc.AddEventListener(EventClick, func(e *Event) {
		calls = append(calls, "third")
	})

	ev := NewEvent(EventClick, target)
	doc.Dispatch(ev)

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("Unexpected call order: %v", calls)
	}
	if !ev.PropagationStopped() {
		t.Error("Expected propagation stopped")
	}

	doc.RemoveEventListener(EventClick, first)
	if got := doc.ListenerCount(EventClick); got != 2 {
		t.Errorf("Expected 2 listeners, got %d", got)
	}
}

func TestDispatch_SelfRemoval(t *testing.T) {
	doc := mustParse(t, sampleHTML)

	var id ListenerID
	calls := 0
	id = doc.AddEventListener(EventMouseMove, func(e *Event) {
		calls++
		doc.RemoveEventListener(EventMouseMove, id)
	})

	doc.Dispatch(NewEvent(EventMouseMove, doc.Body()))
	doc.Dispatch(NewEvent(EventMouseMove, doc.Body()))

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if doc.ListenerCount(EventMouseMove) != 0 {
		t.Error("Expected no listeners left")
	}
}
