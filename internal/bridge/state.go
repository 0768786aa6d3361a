package bridge

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/standardbeagle/devchat/internal/chat"
	"github.com/standardbeagle/devchat/internal/dom"
	"github.com/standardbeagle/devchat/internal/page"
	"github.com/standardbeagle/devchat/internal/picker"
)

// DefaultOutboxSize is the selection outbox capacity.
const DefaultOutboxSize = 64

// Port is a long-lived panel connection that receives pushes.
type Port interface {
	ID() string
	Send(Reply) error
}

// Config configures a State.
type Config struct {
	// Chat answers SEND_TO_AI. Required for chat messages.
	Chat *chat.Service

	// Loader fetches remote pages for OPEN_TAB (default: HTTP loader).
	Loader page.Loader

	// OutboxSize is the selection outbox capacity (default: 64).
	OutboxSize int
}

// pending is a selection waiting in the outbox.
type pending struct {
	tab int
	sel picker.Selection
}

// State is the process-wide bridge state: open tabs, panel ports and the
// selection outbox. It is created at startup and never persisted.
type State struct {
	mu      sync.RWMutex
	tabs    map[int]*Tab
	nextTab int
	active  int
	ports   map[string]Port

	chat   *chat.Service
	loader page.Loader

	outbox    chan pending
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewState creates the bridge state and starts the outbox drainer.
func NewState(cfg Config) *State {
	if cfg.Loader == nil {
		cfg.Loader = page.NewHTTPLoader(0)
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = DefaultOutboxSize
	}
	s := &State{
		tabs:   make(map[int]*Tab),
		ports:  make(map[string]Port),
		chat:   cfg.Chat,
		loader: cfg.Loader,
		outbox: make(chan pending, cfg.OutboxSize),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.drain()
	return s
}

// Close stops the outbox drainer and deactivates every picker. Selections
// still queued are dropped.
func (s *State) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()

		s.mu.RLock()
		tabs := make([]*Tab, 0, len(s.tabs))
		for _, t := range s.tabs {
			tabs = append(tabs, t)
		}
		s.mu.RUnlock()
		for _, t := range tabs {
			t.close()
		}
	})
}

// Chat returns the chat service, or nil.
func (s *State) Chat() *chat.Service {
	return s.chat
}

// AddTab registers doc as a new tab and makes it active.
func (s *State) AddTab(url string, doc *dom.Document) *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTab++
	t := newTab(s.nextTab, url, doc, s.enqueue)
	s.tabs[t.ID] = t
	s.active = t.ID
	return t
}

// OpenTab loads target and registers it as a new tab. Remote targets go
// through the configured loader, anything else is read from disk.
func (s *State) OpenTab(ctx context.Context, target string) (*Tab, error) {
	var loader page.Loader = page.FileLoader{}
	if page.IsRemote(target) {
		loader = s.loader
	}
	snap, err := loader.Load(ctx, target)
	if err != nil {
		return nil, err
	}
	doc, err := dom.ParseString(snap.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", snap.URL, err)
	}
	t := s.AddTab(snap.URL, doc)
	log.Printf("[INFO] bridge: opened tab %d: %s", t.ID, t.URL)
	return t, nil
}

// Tab returns the tab with id, or the active tab when id is zero.
func (s *State) Tab(id int) (*Tab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == 0 {
		id = s.active
	}
	t, ok := s.tabs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTabNotFound, id)
	}
	return t, nil
}

// Tabs returns every open tab ordered by id.
func (s *State) Tabs() []*Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Tab, 0, len(s.tabs))
	for _, t := range s.tabs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveTab returns the active tab id, zero when no tab is open.
func (s *State) ActiveTab() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive makes id the active tab.
func (s *State) SetActive(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[id]; !ok {
		return fmt.Errorf("%w: %d", ErrTabNotFound, id)
	}
	s.active = id
	return nil
}

// CloseTab removes the tab and its chat history.
func (s *State) CloseTab(id int) error {
	s.mu.Lock()
	if id == 0 {
		id = s.active
	}
	t, ok := s.tabs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrTabNotFound, id)
	}
	delete(s.tabs, id)
	if s.active == id {
		s.active = 0
	}
	s.mu.Unlock()

	t.close()
	if s.chat != nil {
		s.chat.History().Drop(id)
	}
	log.Printf("[INFO] bridge: closed tab %d", id)
	return nil
}

// Connect registers a panel port.
func (s *State) Connect(p Port) {
	s.mu.Lock()
	s.ports[p.ID()] = p
	s.mu.Unlock()
	log.Printf("[DEBUG] bridge: panel %s connected", p.ID())
}

// Disconnect removes a panel port.
func (s *State) Disconnect(id string) {
	s.mu.Lock()
	delete(s.ports, id)
	s.mu.Unlock()
	log.Printf("[DEBUG] bridge: panel %s disconnected", id)
}

// Ports returns the number of connected panels.
func (s *State) Ports() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ports)
}

// Broadcast sends msg to every connected panel and returns how many
// accepted it.
func (s *State) Broadcast(msg Reply) int {
	s.mu.RLock()
	ports := make([]Port, 0, len(s.ports))
	for _, p := range s.ports {
		ports = append(ports, p)
	}
	s.mu.RUnlock()

	sent := 0
	for _, p := range ports {
		if err := p.Send(msg); err != nil {
			log.Printf("[WARN] bridge: push to %s failed: %v", p.ID(), err)
			continue
		}
		sent++
	}
	return sent
}

// enqueue hands a selection to the outbox without blocking. A full or
// closed outbox drops it.
func (s *State) enqueue(tab int, sel picker.Selection) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.outbox <- pending{tab: tab, sel: sel}:
	default:
		log.Printf("[WARN] bridge: outbox full, dropped selection %s", sel.Selector)
	}
}

func (s *State) drain() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case p := <-s.outbox:
			s.Broadcast(Reply{Type: KindElementSelected, TabID: p.tab, OK: true, Data: p.sel})
		}
	}
}
