// Package selector resolves a unique selector for a DOM element.
package selector

import (
	"fmt"
	"strings"
)

// Strategy names the heuristic that produced a Candidate.
type Strategy string

const (
	StrategyNone  Strategy = ""
	StrategyID    Strategy = "id"
	StrategyData  Strategy = "data-attribute"
	StrategyRole  Strategy = "aria-role"
	StrategyClass Strategy = "class"
	StrategyText  Strategy = "text"
	StrategyPath  Strategy = "path"
)

// Kind is the query language of a Candidate.
type Kind string

const (
	KindCSS   Kind = "css"
	KindXPath Kind = "xpath"
)

// Candidate is a resolved selector.
type Candidate struct {
	// Query is the raw CSS selector or XPath expression.
	Query string `json:"query"`

	// Kind tells how Query is evaluated.
	Kind Kind `json:"kind"`

	// Strategy is the heuristic that produced Query.
	Strategy Strategy `json:"strategy"`

	// Unique records whether Query matched only the target when resolved.
	// Only the path fallback can produce a non-unique candidate.
	Unique bool `json:"unique"`
}

// IsZero reports whether c is the empty candidate.
func (c Candidate) IsZero() bool {
	return c.Query == ""
}

// Expression returns a JavaScript expression that evaluates to the element.
func (c Candidate) Expression() string {
	switch c.Kind {
	case KindXPath:
		return fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", jsString(c.Query))
	case KindCSS:
		return fmt.Sprintf("document.querySelector(%s)", jsString(c.Query))
	default:
		return ""
	}
}

// String returns the Expression.
func (c Candidate) String() string {
	return c.Expression()
}

// jsString quotes s as a single-quoted JavaScript string literal.
func jsString(s string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			sb.WriteString(`\'`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\u2028':
			sb.WriteString(`\u2028`)
		case '\u2029':
			sb.WriteString(`\u2029`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
