// Package dom provides a live, mutable HTML document with CSS querying,
// inline style mutation, and a document-level event listener registry.
//
// The tree is a golang.org/x/net/html node tree. The document owns every node;
// Parent pointers are back-references used only for traversal.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML document.
//
// A Document is not safe for concurrent use; callers serialize access
// (the bridge holds a per-tab lock).
type Document struct {
	root      *html.Node
	listeners map[string][]listenerEntry
	nextID    ListenerID
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root, listeners: make(map[string][]listenerEntry)}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

// Body returns the <body> element, or nil when the document has none.
func (d *Document) Body() *html.Node {
	doc := d.DocumentElement()
	if doc == nil {
		return nil
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			return c
		}
	}
	return nil
}

// Title returns the trimmed text of the first <title> element.
func (d *Document) Title() string {
	titles := d.ElementsByTag("title")
	if len(titles) == 0 {
		return ""
	}
	return strings.TrimSpace(TextContent(titles[0]))
}

// QueryAll returns all elements matching a CSS selector, in document order.
// A selector that does not compile matches nothing.
func (d *Document) QueryAll(selector string) []*html.Node {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	return sel.MatchAll(d.root)
}

// Query returns the first element matching a CSS selector, or nil.
func (d *Document) Query(selector string) *html.Node {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil
	}
	return sel.MatchFirst(d.root)
}

// Count returns the number of elements matching a CSS selector.
func (d *Document) Count(selector string) int {
	return len(d.QueryAll(selector))
}

// ElementsByTag returns all elements with the given lowercase tag name.
func (d *Document) ElementsByTag(tag string) []*html.Node {
	var out []*html.Node
	walkElements(d.root, func(n *html.Node) {
		if n.Data == tag {
			out = append(out, n)
		}
	})
	return out
}

// OuterHTML renders the <html> element including its children.
func (d *Document) OuterHTML() string {
	n := d.DocumentElement()
	if n == nil {
		n = d.root
	}
	return Render(n)
}

// Render serializes n and its subtree.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}
