package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler answers one message kind.
type Handler func(ctx context.Context, msg Message) (any, error)

// Router dispatches messages to the handler registered for their kind.
type Router struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[Kind]Handler)}
}

// Register installs h for kind, replacing any previous handler.
func (r *Router) Register(kind Kind, h Handler) {
	r.mu.Lock()
	r.handlers[kind] = h
	r.mu.Unlock()
}

// Dispatch runs the handler for msg.Type.
func (r *Router) Dispatch(ctx context.Context, msg Message) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Type)
	}
	return h(ctx, msg)
}

// Handle dispatches msg and wraps the outcome in a Reply.
func (r *Router) Handle(ctx context.Context, msg Message) Reply {
	data, err := r.Dispatch(ctx, msg)
	return NewReply(msg, data, err)
}

// Kinds returns the registered kinds in sorted order.
func (r *Router) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
