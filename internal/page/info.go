// Package page extracts page context from loaded documents and loads pages
// over HTTP or through a headless browser.
package page

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/standardbeagle/devchat/internal/dom"
)

// Info is the page context sent alongside chat requests.
type Info struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	HTML    string   `json:"html"`
	Scripts []string `json:"scripts"`
	Styles  []string `json:"styles"`
}

// Extract builds Info for doc loaded from pageURL. Script and stylesheet
// references are resolved to absolute URLs; inline scripts and styles have no
// URL and are omitted.
func Extract(doc *dom.Document, pageURL string) Info {
	base, _ := url.Parse(pageURL)

	info := Info{
		URL:     pageURL,
		Title:   doc.Title(),
		HTML:    doc.OuterHTML(),
		Scripts: []string{},
		Styles:  []string{},
	}

	for _, n := range doc.ElementsByTag("script") {
		if src := strings.TrimSpace(dom.Attr(n, "src")); src != "" {
			info.Scripts = append(info.Scripts, absolute(base, src))
		}
	}
	for _, n := range doc.ElementsByTag("link") {
		href := strings.TrimSpace(dom.Attr(n, "href"))
		if href == "" || !isStylesheet(n) {
			continue
		}
		info.Styles = append(info.Styles, absolute(base, href))
	}
	return info
}

func isStylesheet(n *html.Node) bool {
	for _, rel := range strings.Fields(strings.ToLower(dom.Attr(n, "rel"))) {
		if rel == "stylesheet" {
			return true
		}
	}
	return false
}

func absolute(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// Summary is the short description of a page used in the chat system prompt.
func (i Info) Summary() string {
	return "Current page: " + i.URL + "\nTitle: " + i.Title
}
