package bridge

import (
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/standardbeagle/devchat/internal/dom"
	"github.com/standardbeagle/devchat/internal/page"
	"github.com/standardbeagle/devchat/internal/picker"
)

// Tab is a loaded page with its picker. All document access goes through
// Do, which delivers work one call at a time.
type Tab struct {
	ID  int
	URL string

	mu     sync.Mutex
	doc    *dom.Document
	picker *picker.Picker
}

func newTab(id int, url string, doc *dom.Document, emit func(int, picker.Selection)) *Tab {
	t := &Tab{ID: id, URL: url, doc: doc}
	t.picker = picker.New(doc, picker.EmitterFunc(func(s picker.Selection) {
		emit(id, s)
	}))
	return t
}

// Do runs fn with exclusive access to the tab's document and picker.
func (t *Tab) Do(fn func(doc *dom.Document, p *picker.Picker) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.doc, t.picker)
}

// with is Do for work that cannot fail.
func (t *Tab) with(fn func(doc *dom.Document, p *picker.Picker)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.doc, t.picker)
}

// Info extracts the page info of the current document.
func (t *Tab) Info() page.Info {
	var info page.Info
	t.with(func(doc *dom.Document, _ *picker.Picker) {
		info = page.Extract(doc, t.URL)
	})
	return info
}

// Describe returns the tab summary.
func (t *Tab) Describe() TabInfo {
	var title string
	t.with(func(doc *dom.Document, _ *picker.Picker) {
		title = doc.Title()
	})
	return TabInfo{ID: t.ID, URL: t.URL, Title: title}
}

// close leaves picker mode so no listener outlives the tab.
func (t *Tab) close() {
	t.with(func(_ *dom.Document, p *picker.Picker) {
		p.Deactivate()
	})
}

// locate finds the element addressed by d. The caller holds the tab lock.
func locate(doc *dom.Document, d PointerData) (*html.Node, error) {
	if d.Path != nil {
		n, err := doc.NodeAt(d.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoTarget, err)
		}
		return n, nil
	}
	if d.Target != "" {
		if n := doc.Query(d.Target); n != nil {
			return n, nil
		}
		return nil, fmt.Errorf("%w: %q matches nothing", ErrNoTarget, d.Target)
	}
	return nil, ErrNoTarget
}
