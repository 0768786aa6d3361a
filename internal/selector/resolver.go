package selector

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/standardbeagle/devchat/internal/dom"
)

// MaxTextLength bounds the text strategy: text must be shorter than this many
// characters to be used as a locator.
const MaxTextLength = 50

// genericClasses are layout class names too common to identify an element.
var genericClasses = map[string]bool{
	"container": true,
	"wrapper":   true,
	"row":       true,
	"col":       true,
	"section":   true,
	"content":   true,
	"header":    true,
	"footer":    true,
	"main":      true,
}

// Resolver generates selectors against a single document.
//
// Resolution only reads the document. The returned selector is unique at the
// time of the call; later mutations may invalidate it.
type Resolver struct {
	doc        *dom.Document
	strategies []strategy
}

type strategy func(r *Resolver, target *html.Node) (Candidate, bool)

// New creates a Resolver for doc.
func New(doc *dom.Document) *Resolver {
	return &Resolver{
		doc: doc,
		strategies: []strategy{
			(*Resolver).byID,
			(*Resolver).byDataAttributes,
			(*Resolver).byRole,
			(*Resolver).byClasses,
			(*Resolver).byText,
		},
	}
}

// Resolve is shorthand for New(doc).Resolve(target).
func Resolve(doc *dom.Document, target *html.Node) Candidate {
	return New(doc).Resolve(target)
}

// Resolve returns a selector for target. Strategies run from most to least
// stable; the first one whose selector matches only target wins. When none
// does, an ancestor path is returned even if it is not unique. A non-element
// target resolves its nearest element ancestor; nil yields the zero Candidate.
func (r *Resolver) Resolve(target *html.Node) Candidate {
	for target != nil && target.Type != html.ElementNode {
		target = target.Parent
	}
	if target == nil {
		return Candidate{}
	}

	for _, s := range r.strategies {
		if c, ok := s(r, target); ok {
			return c
		}
	}
	return r.byPath(target)
}

// matchesOnly reports whether a CSS selector matches exactly target.
func (r *Resolver) matchesOnly(sel string, target *html.Node) bool {
	matches := r.doc.QueryAll(sel)
	return len(matches) == 1 && matches[0] == target
}

func (r *Resolver) css(sel string, target *html.Node, s Strategy) (Candidate, bool) {
	if !r.matchesOnly(sel, target) {
		return Candidate{}, false
	}
	return Candidate{Query: sel, Kind: KindCSS, Strategy: s, Unique: true}, true
}

func (r *Resolver) byID(target *html.Node) (Candidate, bool) {
	id := dom.ID(target)
	if id == "" {
		return Candidate{}, false
	}
	return r.css("#"+escapeIdent(id), target, StrategyID)
}

func (r *Resolver) byDataAttributes(target *html.Node) (Candidate, bool) {
	attrs := dom.DataAttributes(target)
	if len(attrs) == 0 {
		return Candidate{}, false
	}
	var sb strings.Builder
	for _, a := range attrs {
		sb.WriteString(attributeSelector(a.Key, a.Val))
	}
	return r.css(sb.String(), target, StrategyData)
}

func (r *Resolver) byRole(target *html.Node) (Candidate, bool) {
	role, ok := dom.LookupAttr(target, "role")
	if !ok || role == "" {
		return Candidate{}, false
	}
	return r.css(attributeSelector("role", role), target, StrategyRole)
}

func (r *Resolver) byClasses(target *html.Node) (Candidate, bool) {
	classes := specificClasses(target)
	if len(classes) == 0 {
		return Candidate{}, false
	}
	return r.css(classSelector(classes), target, StrategyClass)
}

func (r *Resolver) byText(target *html.Node) (Candidate, bool) {
	raw := dom.TextContent(target)
	text := strings.TrimSpace(raw)
	if text == "" || utf8.RuneCountInString(text) >= MaxTextLength {
		return Candidate{}, false
	}

	// The trimmed-text match decides uniqueness; the match under XPath
	// normalize-space, which only collapses space, tab, CR and LF, keeps
	// the emitted expression selecting exactly what was counted.
	normalized := normalizeSpace(raw)
	exact, loose := 0, 0
	for _, n := range r.doc.ElementsByTag(target.Data) {
		t := dom.TextContent(n)
		if strings.TrimSpace(t) == text {
			exact++
		}
		if normalizeSpace(t) == normalized {
			loose++
		}
	}
	if exact != 1 || loose != 1 {
		return Candidate{}, false
	}

	query := fmt.Sprintf("//%s[normalize-space(.)=%s]", dom.TagName(target), xpathLiteral(normalized))
	return Candidate{Query: query, Kind: KindXPath, Strategy: StrategyText, Unique: true}, true
}

// normalizeSpace mirrors XPath 1.0 normalize-space(): only XML whitespace
// is stripped and collapsed, so U+00A0 and other Unicode spaces stay.
func normalizeSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, isXMLSpace), " ")
}

func isXMLSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

// byPath climbs from target toward the root, prepending one segment per
// level, and stops once the path selects only target.
func (r *Resolver) byPath(target *html.Node) Candidate {
	var path []string
	unique := false

	for n := target; dom.IsElement(n); n = n.Parent {
		seg := escapeIdent(dom.TagName(n))

		if classes := specificClasses(n); len(classes) > 0 {
			seg += classSelector(classes)
			if r.matchesOnly(seg, n) {
				path = append([]string{seg}, path...)
				unique = r.matchesOnly(strings.Join(path, " > "), target)
				break
			}
		}

		if idx, total := dom.TypeIndex(n); total > 1 {
			seg += fmt.Sprintf(":nth-of-type(%d)", idx)
		}

		path = append([]string{seg}, path...)
		if r.matchesOnly(strings.Join(path, " > "), target) {
			unique = true
			break
		}
	}

	return Candidate{
		Query:    strings.Join(path, " > "),
		Kind:     KindCSS,
		Strategy: StrategyPath,
		Unique:   unique,
	}
}

func specificClasses(n *html.Node) []string {
	var out []string
	for _, c := range dom.Classes(n) {
		if !genericClasses[c] {
			out = append(out, c)
		}
	}
	return out
}

func classSelector(classes []string) string {
	var sb strings.Builder
	for _, c := range classes {
		sb.WriteByte('.')
		sb.WriteString(escapeIdent(c))
	}
	return sb.String()
}

func attributeSelector(name, val string) string {
	return "[" + escapeIdent(name) + "=" + quoteCSS(val) + "]"
}
