package dom

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ErrNodeNotFound is returned when an element path does not resolve.
var ErrNodeNotFound = errors.New("node not found")

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// TagName returns the lowercase tag name of an element.
func TagName(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns the value of an attribute, or "" when absent.
func Attr(n *html.Node, key string) string {
	v, _ := LookupAttr(n, key)
	return v
}

// LookupAttr returns the value of an attribute and whether it is present.
func LookupAttr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, replacing an existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute if present.
func RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// ID returns the id attribute.
func ID(n *html.Node) string {
	return Attr(n, "id")
}

// Classes returns the class list in order with duplicates removed.
func Classes(n *html.Node) []string {
	fields := strings.Fields(Attr(n, "class"))
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, c := range fields {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// DataAttributes returns the data-* attributes of n in document order.
func DataAttributes(n *html.Node) []html.Attribute {
	if n == nil {
		return nil
	}
	var out []html.Attribute
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.HasPrefix(a.Key, "data-") {
			out = append(out, a)
		}
	}
	return out
}

// TextContent concatenates all descendant text nodes of n.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return sb.String()
}

// ElementChildren returns the element children of n.
func ElementChildren(n *html.Node) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// TypeIndex returns the 1-based position of n among its parent's element
// children with the same tag, and the number of such siblings (n included).
func TypeIndex(n *html.Node) (index, total int) {
	if !IsElement(n) {
		return 0, 0
	}
	if n.Parent == nil {
		return 1, 1
	}
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != n.Data {
			continue
		}
		total++
		if c == n {
			index = total
		}
	}
	return index, total
}

// PathOf returns the element path from the document root to n: the index of
// each element among its parent's element children.
func PathOf(n *html.Node) []int {
	var path []int
	for c := n; c != nil && c.Parent != nil; c = c.Parent {
		if c.Type != html.ElementNode {
			continue
		}
		i := 0
		for s := c.Parent.FirstChild; s != nil && s != c; s = s.NextSibling {
			if s.Type == html.ElementNode {
				i++
			}
		}
		path = append(path, i)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// NodeAt resolves an element path produced by PathOf.
func (d *Document) NodeAt(path []int) (*html.Node, error) {
	n := d.root
	for depth, i := range path {
		children := ElementChildren(n)
		if i < 0 || i >= len(children) {
			return nil, fmt.Errorf("%w: path %v fails at depth %d", ErrNodeNotFound, path, depth)
		}
		n = children[i]
	}
	if !IsElement(n) {
		return nil, fmt.Errorf("%w: empty path", ErrNodeNotFound)
	}
	return n, nil
}
