package chat

import (
	"sync"
)

// DefaultHistoryLimit is the number of messages kept per tab, system message
// included.
const DefaultHistoryLimit = 10

// Conversation is the bounded message window of one tab. Callers hold the
// lock for the duration of a request so turns from the same tab never
// interleave.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	limit    int
}

// Lock serializes requests on the conversation.
func (c *Conversation) Lock() { c.mu.Lock() }

// Unlock releases the conversation.
func (c *Conversation) Unlock() { c.mu.Unlock() }

// Messages returns a copy of the window. The caller must hold the lock.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the window size. The caller must hold the lock.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Append adds m to the window. The caller must hold the lock.
func (c *Conversation) Append(m Message) {
	c.messages = append(c.messages, m)
}

// DropLast removes the newest message. The caller must hold the lock.
func (c *Conversation) DropLast() {
	if len(c.messages) > 0 {
		c.messages = c.messages[:len(c.messages)-1]
	}
}

// Trim drops the oldest non-system messages until the window fits the limit.
// The caller must hold the lock.
func (c *Conversation) Trim() {
	if c.limit <= 0 || len(c.messages) <= c.limit {
		return
	}
	var head []Message
	rest := c.messages
	if len(rest) > 0 && rest[0].Role == RoleSystem {
		head = rest[:1]
		rest = rest[1:]
	}
	keep := c.limit - len(head)
	if keep < 0 {
		keep = 0
	}
	if len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}
	trimmed := make([]Message, 0, len(head)+len(rest))
	trimmed = append(trimmed, head...)
	trimmed = append(trimmed, rest...)
	c.messages = trimmed
}

// History holds one Conversation per tab.
type History struct {
	mu    sync.Mutex
	tabs  map[int]*Conversation
	limit int
}

// NewHistory creates a History that keeps at most limit messages per tab.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		tabs:  make(map[int]*Conversation),
		limit: limit,
	}
}

// Conversation returns the conversation for tab, creating it if needed.
func (h *History) Conversation(tab int) *Conversation {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.tabs[tab]
	if !ok {
		c = &Conversation{limit: h.limit}
		h.tabs[tab] = c
	}
	return c
}

// Drop forgets the conversation for tab.
func (h *History) Drop(tab int) {
	h.mu.Lock()
	delete(h.tabs, tab)
	h.mu.Unlock()
}

// Len returns the number of tabs with a conversation.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tabs)
}
