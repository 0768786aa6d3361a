package dom

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// styleDecl is one segment of an inline style attribute. start and end
// delimit the segment text between separators; prop is empty for segments
// that are not declarations.
type styleDecl struct {
	prop       string
	val        string
	start, end int
}

// splitStyle splits an inline style on semicolons that sit outside quotes,
// parentheses and escapes, so values like url('data:a;b') stay whole. The
// segments cover s with one separator between neighbors.
func splitStyle(s string) []styleDecl {
	var decls []styleDecl
	var quote rune
	depth, start := 0, 0
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			decls = append(decls, newStyleDecl(s, start, i))
			start = i + 1
		}
	}
	return append(decls, newStyleDecl(s, start, len(s)))
}

func newStyleDecl(s string, start, end int) styleDecl {
	d := styleDecl{start: start, end: end}
	prop, val, ok := strings.Cut(s[start:end], ":")
	if ok {
		d.prop = strings.ToLower(strings.TrimSpace(prop))
		d.val = strings.TrimSpace(val)
	}
	return d
}

// StyleValue returns an inline style property of n. The last declaration
// of prop wins.
func StyleValue(n *html.Node, prop string) string {
	prop = strings.ToLower(prop)
	val := ""
	for _, d := range splitStyle(Attr(n, "style")) {
		if d.prop == prop {
			val = d.val
		}
	}
	return val
}

// SetStyle sets an inline style property on n. An empty value removes the
// property, like assigning "" to element.style in a browser. Other
// declarations keep their original text, so setting and then removing a
// property restores the attribute. The style attribute is dropped once no
// declarations remain.
func SetStyle(n *html.Node, prop, val string) {
	if !IsElement(n) {
		return
	}
	prop = strings.ToLower(prop)
	s := Attr(n, "style")
	decls := splitStyle(s)

	last := -1
	for i, d := range decls {
		if d.prop == prop {
			last = i
		}
	}

	switch {
	case val == "":
		for i := len(decls) - 1; i >= 0; i-- {
			if decls[i].prop == prop {
				s = cutStyleDecl(s, decls, i)
			}
		}
	case last >= 0:
		d := decls[last]
		text := s[d.start:d.end]
		lead := text[:len(text)-len(strings.TrimLeftFunc(text, unicode.IsSpace))]
		s = s[:d.start] + lead + prop + ": " + val + s[d.end:]
	default:
		decl := prop + ": " + val
		switch {
		case strings.TrimSpace(s) == "":
			s = decl + ";"
		case strings.HasSuffix(strings.TrimRightFunc(s, unicode.IsSpace), ";"):
			s += " " + decl + ";"
		default:
			s += "; " + decl
		}
	}

	if strings.TrimSpace(s) == "" {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", s)
}

// cutStyleDecl removes segment i of s together with one neighboring
// separator: the one before it when there is one, else the one after.
func cutStyleDecl(s string, decls []styleDecl, i int) string {
	switch {
	case i > 0:
		return s[:decls[i-1].end] + s[decls[i].end:]
	case len(decls) > 1:
		return s[:decls[0].start] + s[decls[1].start:]
	default:
		return ""
	}
}
